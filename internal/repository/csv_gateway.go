package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/earlyreg-backend/internal/model"
)

const (
	studentsFile      = "students.csv"
	subjectsFile      = "subjects.csv"
	registrationsFile = "registrations.csv"

	studentFields      = 7
	subjectFields      = 7
	registrationFields = 2

	registrationsHeader = "studentId,subjectId"
)

// CSVGateway stores the three collections as comma-separated files in one directory.
type CSVGateway struct {
	studentsPath      string
	subjectsPath      string
	registrationsPath string

	// mu serializes writers; subjects.csv is rewritten in place.
	mu sync.Mutex
}

// NewCSVGateway creates a CSVGateway reading students.csv, subjects.csv and
// registrations.csv from dir.
func NewCSVGateway(dir string) *CSVGateway {
	return &CSVGateway{
		studentsPath:      filepath.Join(dir, studentsFile),
		subjectsPath:      filepath.Join(dir, subjectsFile),
		registrationsPath: filepath.Join(dir, registrationsFile),
	}
}

// LoadStudents reads students.csv.
func (g *CSVGateway) LoadStudents(ctx context.Context) (LoadResult[model.Student], error) {
	return readRows(ctx, g.studentsPath, CollectionStudents, studentFields, parseStudent)
}

// LoadSubjects reads subjects.csv.
func (g *CSVGateway) LoadSubjects(ctx context.Context) (LoadResult[model.Subject], error) {
	return readRows(ctx, g.subjectsPath, CollectionSubjects, subjectFields, parseSubject)
}

// LoadRegistrations reads registrations.csv.
func (g *CSVGateway) LoadRegistrations(ctx context.Context) (LoadResult[model.Registration], error) {
	return readRows(ctx, g.registrationsPath, CollectionRegistrations, registrationFields, parseRegistration)
}

// AppendRegistration appends one row to registrations.csv, creating the file
// with its header when it does not exist yet. A pair already in the file is
// not written again.
func (g *CSVGateway) AppendRegistration(ctx context.Context, reg model.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := os.ReadFile(g.registrationsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read registrations: %w", err)
	}
	if hasRegistration(raw, reg) {
		return nil
	}

	var prefix string
	switch {
	case len(raw) == 0:
		prefix = registrationsHeader + "\n"
	case raw[len(raw)-1] != '\n':
		prefix = "\n"
	}

	f, err := os.OpenFile(g.registrationsPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open registrations: %w", err)
	}
	defer f.Close()

	row := prefix + encodeLine([]string{reg.StudentID, reg.SubjectID}) + "\n"
	if _, err := f.WriteString(row); err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	return f.Sync()
}

// UpdateSubjectEnrollment rewrites subjects.csv with a new currentEnrollment for
// one subject. The header and all other lines are written back unchanged.
func (g *CSVGateway) UpdateSubjectEnrollment(ctx context.Context, subjectID string, enrollment int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := os.ReadFile(g.subjectsPath)
	if err != nil {
		return fmt.Errorf("read subjects: %w", err)
	}

	lines := strings.SplitAfter(string(raw), "\n")
	found := false
	for i := 1; i < len(lines); i++ {
		body, ending := splitLineEnding(lines[i])
		if strings.TrimSpace(body) == "" {
			continue
		}

		// Only the row the loader accepts for this id may be rewritten.
		fields, err := parseLine(body)
		if err != nil || len(fields) != subjectFields {
			continue
		}
		trimmed := make([]string, len(fields))
		for j, f := range fields {
			trimmed[j] = strings.TrimSpace(f)
		}
		if trimmed[0] != subjectID {
			continue
		}
		if _, err := parseSubject(trimmed); err != nil {
			continue
		}

		fields[6] = strconv.Itoa(enrollment)
		lines[i] = encodeLine(fields) + ending
		found = true
		break
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrSubjectRowNotFound, subjectID)
	}

	return writeFileAtomic(g.subjectsPath, []byte(strings.Join(lines, "")))
}

// ─── Parsing ───────────────────────────────────────────────────────────

func readRows[T any](
	ctx context.Context,
	path string,
	collection Collection,
	fields int,
	parse func([]string) (T, error),
) (LoadResult[T], error) {
	var result LoadResult[T]

	f, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open %s: %w", collection, err)
	}
	defer f.Close()

	r := newReader(f)
	header := true
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Rejects = append(result.Rejects, RowError{Collection: collection, Line: perr.Line, Err: err})
				header = false
				continue
			}
			return result, fmt.Errorf("read %s: %w", collection, err)
		}

		if header {
			header = false
			continue
		}

		line, _ := r.FieldPos(0)
		if len(record) != fields {
			result.Rejects = append(result.Rejects, RowError{
				Collection: collection,
				Line:       line,
				Err:        fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(record), fields),
			})
			continue
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		rec, err := parse(record)
		if err != nil {
			result.Rejects = append(result.Rejects, RowError{Collection: collection, Line: line, Err: err})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

func parseStudent(f []string) (model.Student, error) {
	if f[0] == "" {
		return model.Student{}, fmt.Errorf("%w: studentId", ErrEmptyField)
	}

	birth, err := time.Parse(model.DateLayout, f[4])
	if err != nil {
		return model.Student{}, fmt.Errorf("birthDate %q: %w", f[4], err)
	}

	return model.Student{
		ID:            f[0],
		Title:         f[1],
		FirstName:     f[2],
		LastName:      f[3],
		BirthDate:     birth,
		CurrentSchool: f[5],
		Email:         f[6],
	}, nil
}

func parseSubject(f []string) (model.Subject, error) {
	credits, err := strconv.Atoi(f[2])
	if err != nil {
		return model.Subject{}, fmt.Errorf("credits %q: %w", f[2], err)
	}
	maxCap, err := strconv.Atoi(f[5])
	if err != nil {
		return model.Subject{}, fmt.Errorf("maxCapacity %q: %w", f[5], err)
	}
	current, err := strconv.Atoi(f[6])
	if err != nil {
		return model.Subject{}, fmt.Errorf("currentEnrollment %q: %w", f[6], err)
	}

	s := model.Subject{
		ID:                f[0],
		Name:              f[1],
		Credits:           credits,
		Instructor:        f[3],
		PrerequisiteID:    f[4],
		MaxCapacity:       maxCap,
		CurrentEnrollment: current,
	}
	if err := s.Validate(); err != nil {
		return model.Subject{}, err
	}
	return s, nil
}

func parseRegistration(f []string) (model.Registration, error) {
	if f[0] == "" || f[1] == "" {
		return model.Registration{}, fmt.Errorf("%w: studentId/subjectId", ErrEmptyField)
	}
	return model.Registration{StudentID: f[0], SubjectID: f[1]}, nil
}

// hasRegistration reports whether raw, the contents of registrations.csv,
// already holds the pair.
func hasRegistration(raw []byte, reg model.Registration) bool {
	r := newReader(bytes.NewReader(raw))
	header := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				header = false
				continue
			}
			return false
		}
		if header {
			header = false
			continue
		}
		if len(record) == registrationFields &&
			strings.TrimSpace(record[0]) == reg.StudentID &&
			strings.TrimSpace(record[1]) == reg.SubjectID {
			return true
		}
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

func parseLine(line string) ([]string, error) {
	return newReader(strings.NewReader(line)).Read()
}

func encodeLine(fields []string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimSuffix(sb.String(), "\n")
}

func splitLineEnding(line string) (body, ending string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmpName, path)
}
