package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/earlyreg-backend/internal/model"
)

// schemaSQL bootstraps the three tables. load_order keeps listings in insertion order.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS students (
	student_id     VARCHAR(32) PRIMARY KEY,
	title          VARCHAR(32)  NOT NULL DEFAULT '',
	first_name     VARCHAR(100) NOT NULL DEFAULT '',
	last_name      VARCHAR(100) NOT NULL DEFAULT '',
	birth_date     DATE         NOT NULL,
	current_school VARCHAR(200) NOT NULL DEFAULT '',
	email          VARCHAR(200) NOT NULL DEFAULT '',
	load_order     BIGSERIAL
);

CREATE TABLE IF NOT EXISTS subjects (
	subject_id              VARCHAR(64) PRIMARY KEY,
	subject_name            VARCHAR(200) NOT NULL,
	credits                 INT          NOT NULL,
	instructor              VARCHAR(200) NOT NULL DEFAULT '',
	prerequisite_subject_id VARCHAR(64),
	max_capacity            INT          NOT NULL DEFAULT -1,
	current_enrollment      INT          NOT NULL DEFAULT 0,
	load_order              BIGSERIAL
);

CREATE TABLE IF NOT EXISTS registrations (
	student_id VARCHAR(32) NOT NULL,
	subject_id VARCHAR(64) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	load_order BIGSERIAL,
	PRIMARY KEY (student_id, subject_id)
);
`

// PostgresGateway stores the three collections in PostgreSQL.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

// NewPostgresGateway creates a new PostgresGateway.
func NewPostgresGateway(pool *pgxpool.Pool) *PostgresGateway {
	return &PostgresGateway{pool: pool}
}

// EnsureSchema creates the tables if they do not exist yet.
func (g *PostgresGateway) EnsureSchema(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadStudents retrieves all students in insertion order.
func (g *PostgresGateway) LoadStudents(ctx context.Context) (LoadResult[model.Student], error) {
	var result LoadResult[model.Student]

	rows, err := g.pool.Query(ctx,
		`SELECT student_id, title, first_name, last_name, birth_date, current_school, email
		 FROM students ORDER BY load_order`)
	if err != nil {
		return result, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	line := 0
	for rows.Next() {
		line++
		var s model.Student
		if err := rows.Scan(&s.ID, &s.Title, &s.FirstName, &s.LastName, &s.BirthDate, &s.CurrentSchool, &s.Email); err != nil {
			result.Rejects = append(result.Rejects, RowError{Collection: CollectionStudents, Line: line, Err: err})
			continue
		}
		if s.ID == "" {
			result.Rejects = append(result.Rejects, RowError{Collection: CollectionStudents, Line: line, Err: ErrEmptyField})
			continue
		}
		result.Records = append(result.Records, s)
	}
	return result, rows.Err()
}

// LoadSubjects retrieves all subjects in insertion order.
func (g *PostgresGateway) LoadSubjects(ctx context.Context) (LoadResult[model.Subject], error) {
	var result LoadResult[model.Subject]

	rows, err := g.pool.Query(ctx,
		`SELECT subject_id, subject_name, credits, instructor, prerequisite_subject_id, max_capacity, current_enrollment
		 FROM subjects ORDER BY load_order`)
	if err != nil {
		return result, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	line := 0
	for rows.Next() {
		line++
		var (
			s      model.Subject
			prereq *string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Credits, &s.Instructor, &prereq, &s.MaxCapacity, &s.CurrentEnrollment); err != nil {
			result.Rejects = append(result.Rejects, RowError{Collection: CollectionSubjects, Line: line, Err: err})
			continue
		}
		if prereq != nil {
			s.PrerequisiteID = *prereq
		}
		if err := s.Validate(); err != nil {
			result.Rejects = append(result.Rejects, RowError{Collection: CollectionSubjects, Line: line, Err: err})
			continue
		}
		result.Records = append(result.Records, s)
	}
	return result, rows.Err()
}

// LoadRegistrations retrieves all registration pairs in insertion order.
func (g *PostgresGateway) LoadRegistrations(ctx context.Context) (LoadResult[model.Registration], error) {
	var result LoadResult[model.Registration]

	rows, err := g.pool.Query(ctx, `SELECT student_id, subject_id FROM registrations ORDER BY load_order`)
	if err != nil {
		return result, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	line := 0
	for rows.Next() {
		line++
		var r model.Registration
		if err := rows.Scan(&r.StudentID, &r.SubjectID); err != nil {
			result.Rejects = append(result.Rejects, RowError{Collection: CollectionRegistrations, Line: line, Err: err})
			continue
		}
		result.Records = append(result.Records, r)
	}
	return result, rows.Err()
}

// AppendRegistration inserts a registration pair. Re-inserting an existing pair is a no-op.
func (g *PostgresGateway) AppendRegistration(ctx context.Context, reg model.Registration) error {
	_, err := g.pool.Exec(ctx,
		`INSERT INTO registrations (student_id, subject_id) VALUES ($1, $2)
		 ON CONFLICT (student_id, subject_id) DO NOTHING`,
		reg.StudentID, reg.SubjectID,
	)
	return err
}

// UpdateSubjectEnrollment overwrites the stored enrollment count of one subject.
func (g *PostgresGateway) UpdateSubjectEnrollment(ctx context.Context, subjectID string, enrollment int) error {
	tag, err := g.pool.Exec(ctx,
		`UPDATE subjects SET current_enrollment = $1 WHERE subject_id = $2`,
		enrollment, subjectID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSubjectRowNotFound, subjectID)
	}
	return nil
}

// Import bulk-copies the given collections into empty tables in a single transaction.
// When truncate is set, existing rows are removed first.
func (g *PostgresGateway) Import(
	ctx context.Context,
	students []model.Student,
	subjects []model.Subject,
	registrations []model.Registration,
	truncate bool,
) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	if truncate {
		if _, err := tx.Exec(ctx, `TRUNCATE registrations, subjects, students RESTART IDENTITY`); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"students"},
		[]string{"student_id", "title", "first_name", "last_name", "birth_date", "current_school", "email"},
		pgx.CopyFromSlice(len(students), func(i int) ([]any, error) {
			s := students[i]
			return []any{s.ID, s.Title, s.FirstName, s.LastName, s.BirthDate, s.CurrentSchool, s.Email}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy students: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"subjects"},
		[]string{"subject_id", "subject_name", "credits", "instructor", "prerequisite_subject_id", "max_capacity", "current_enrollment"},
		pgx.CopyFromSlice(len(subjects), func(i int) ([]any, error) {
			s := subjects[i]
			var prereq *string
			if s.HasPrerequisite() {
				prereq = &s.PrerequisiteID
			}
			return []any{s.ID, s.Name, s.Credits, s.Instructor, prereq, s.MaxCapacity, s.CurrentEnrollment}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy subjects: %w", err)
	}

	now := time.Now()
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"registrations"},
		[]string{"student_id", "subject_id", "created_at"},
		pgx.CopyFromSlice(len(registrations), func(i int) ([]any, error) {
			r := registrations[i]
			return []any{r.StudentID, r.SubjectID, now}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy registrations: %w", err)
	}

	return tx.Commit(ctx)
}
