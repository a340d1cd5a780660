// Package store holds the canonical in-memory enrollment state: students,
// subjects and the registration pair set. A Store is an owned value; build one
// per process (or per test) and hand it to the rule evaluator and committer.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStorageUnreadable means no collection could be read at all.
	ErrStorageUnreadable = errors.New("storage unreadable")
	// ErrMalformedRecord is returned by a strict load for any skipped row.
	ErrMalformedRecord = errors.New("malformed stored record")

	ErrStudentNotFound   = errors.New("student not found")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrAlreadyRegistered = errors.New("student already registered for subject")
	ErrCapacityReached   = errors.New("subject capacity reached")
)

type pair struct {
	studentID string
	subjectID string
}

// Store is safe for concurrent use. Readers receive copies, never references
// into the store's own records.
type Store struct {
	gateway repository.Gateway
	strict  bool
	log     zerolog.Logger

	mu            sync.RWMutex
	students      map[string]model.Student
	subjects      map[string]*model.Subject
	subjectOrder  []string
	registrations map[pair]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithStrictLoad makes LoadAll fail on the first unreadable collection or bad row.
func WithStrictLoad(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// New creates an empty Store backed by gateway.
func New(gateway repository.Gateway, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		gateway:       gateway,
		log:           log.With().Str("component", "entity_store").Logger(),
		students:      make(map[string]model.Student),
		subjects:      make(map[string]*model.Subject),
		registrations: make(map[pair]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadReport summarizes a LoadAll run.
type LoadReport struct {
	Students      int
	Subjects      int
	Registrations int
	Skipped       int
	Unreadable    []repository.Collection
}

// LoadAll replaces the store's contents with everything the gateway returns.
//
// By default a collection that cannot be read is logged and treated as empty,
// and each malformed or duplicate row is logged and skipped. Only when every
// collection is unreadable does LoadAll fail, with ErrStorageUnreadable.
// With WithStrictLoad any such condition is returned as an error.
func (s *Store) LoadAll(ctx context.Context) (LoadReport, error) {
	var (
		students      repository.LoadResult[model.Student]
		subjects      repository.LoadResult[model.Subject]
		registrations repository.LoadResult[model.Registration]

		studentsErr, subjectsErr, registrationsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, studentsErr = s.gateway.LoadStudents(gctx)
		return s.strictReadErr(repository.CollectionStudents, studentsErr)
	})
	g.Go(func() error {
		subjects, subjectsErr = s.gateway.LoadSubjects(gctx)
		return s.strictReadErr(repository.CollectionSubjects, subjectsErr)
	})
	g.Go(func() error {
		registrations, registrationsErr = s.gateway.LoadRegistrations(gctx)
		return s.strictReadErr(repository.CollectionRegistrations, registrationsErr)
	})
	if err := g.Wait(); err != nil {
		return LoadReport{}, err
	}

	var report LoadReport
	for _, read := range []struct {
		coll repository.Collection
		err  error
	}{
		{repository.CollectionStudents, studentsErr},
		{repository.CollectionSubjects, subjectsErr},
		{repository.CollectionRegistrations, registrationsErr},
	} {
		if read.err != nil {
			s.log.Error().Err(read.err).Str("collection", string(read.coll)).Msg("Collection unreadable, continuing without it")
			report.Unreadable = append(report.Unreadable, read.coll)
		}
	}
	if len(report.Unreadable) == 3 {
		return report, fmt.Errorf("%w: %w", ErrStorageUnreadable, errors.Join(studentsErr, subjectsErr, registrationsErr))
	}

	rejects := make([]repository.RowError, 0, len(students.Rejects)+len(subjects.Rejects)+len(registrations.Rejects))
	rejects = append(rejects, students.Rejects...)
	rejects = append(rejects, subjects.Rejects...)
	rejects = append(rejects, registrations.Rejects...)
	if s.strict && len(rejects) > 0 {
		return report, fmt.Errorf("%w: %w", ErrMalformedRecord, rejects[0])
	}
	for _, rej := range rejects {
		s.log.Warn().
			Err(rej.Err).
			Str("collection", string(rej.Collection)).
			Int("line", rej.Line).
			Msg("Skipping malformed record")
	}
	report.Skipped = len(rejects)

	studentMap := make(map[string]model.Student, len(students.Records))
	for _, st := range students.Records {
		if _, dup := studentMap[st.ID]; dup {
			if s.strict {
				return report, fmt.Errorf("%w: duplicate student %s", ErrMalformedRecord, st.ID)
			}
			s.log.Warn().Str("student_id", st.ID).Msg("Duplicate student id, keeping first")
			report.Skipped++
			continue
		}
		studentMap[st.ID] = st
	}

	subjectMap := make(map[string]*model.Subject, len(subjects.Records))
	order := make([]string, 0, len(subjects.Records))
	for _, sub := range subjects.Records {
		if _, dup := subjectMap[sub.ID]; dup {
			if s.strict {
				return report, fmt.Errorf("%w: duplicate subject %s", ErrMalformedRecord, sub.ID)
			}
			s.log.Warn().Str("subject_id", sub.ID).Msg("Duplicate subject id, keeping first")
			report.Skipped++
			continue
		}
		if !sub.Unlimited() && sub.CurrentEnrollment > sub.MaxCapacity {
			s.log.Warn().
				Str("subject_id", sub.ID).
				Int("enrollment", sub.CurrentEnrollment).
				Int("max_capacity", sub.MaxCapacity).
				Msg("Stored enrollment exceeds capacity")
		}
		subjectMap[sub.ID] = &sub
		order = append(order, sub.ID)
	}

	pairs := make(map[pair]struct{}, len(registrations.Records))
	for _, reg := range registrations.Records {
		pairs[pair{reg.StudentID, reg.SubjectID}] = struct{}{}
	}

	s.mu.Lock()
	s.students = studentMap
	s.subjects = subjectMap
	s.subjectOrder = order
	s.registrations = pairs
	s.mu.Unlock()

	report.Students = len(studentMap)
	report.Subjects = len(subjectMap)
	report.Registrations = len(pairs)

	s.log.Info().
		Int("students", report.Students).
		Int("subjects", report.Subjects).
		Int("registrations", report.Registrations).
		Int("skipped", report.Skipped).
		Msg("Enrollment state loaded")

	return report, nil
}

func (s *Store) strictReadErr(coll repository.Collection, err error) error {
	if err == nil || !s.strict {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnreadable, coll, err)
}

// GetStudent returns a student by id.
func (s *Store) GetStudent(id string) (model.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	return st, ok
}

// GetSubject returns a snapshot of a subject by id.
func (s *Store) GetSubject(id string) (model.Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[id]
	if !ok {
		return model.Subject{}, false
	}
	return *sub, true
}

// AllSubjects returns snapshots of every subject in load order.
func (s *Store) AllSubjects() []model.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Subject, 0, len(s.subjectOrder))
	for _, id := range s.subjectOrder {
		out = append(out, *s.subjects[id])
	}
	return out
}

// IsRegistered reports whether the pair is already in the registration set.
func (s *Store) IsRegistered(studentID, subjectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registrations[pair{studentID, subjectID}]
	return ok
}

// RegisteredSubjects returns the subjects a student is enrolled in, in load order.
func (s *Store) RegisteredSubjects(studentID string) []model.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Subject
	for _, id := range s.subjectOrder {
		if _, ok := s.registrations[pair{studentID, id}]; ok {
			out = append(out, *s.subjects[id])
		}
	}
	return out
}

// Register inserts the pair and increments the subject's enrollment by one.
// It never lets a finite-capacity subject exceed its maximum and never
// records a pair twice. Returns the subject as it stands after the change.
func (s *Store) Register(studentID, subjectID string) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[studentID]; !ok {
		return model.Subject{}, ErrStudentNotFound
	}
	sub, ok := s.subjects[subjectID]
	if !ok {
		return model.Subject{}, ErrSubjectNotFound
	}

	key := pair{studentID, subjectID}
	if _, dup := s.registrations[key]; dup {
		return *sub, ErrAlreadyRegistered
	}
	if !sub.HasSeat() {
		return *sub, ErrCapacityReached
	}

	s.registrations[key] = struct{}{}
	sub.CurrentEnrollment++
	return *sub, nil
}
