package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/earlyreg-backend/internal/model"
)

var (
	// ErrFieldCount is reported for a row with the wrong number of fields.
	ErrFieldCount = errors.New("wrong field count")
	// ErrEmptyField is reported when a key field is blank.
	ErrEmptyField = errors.New("required field is empty")
	// ErrSubjectRowNotFound is returned when an enrollment update targets an unknown subject.
	ErrSubjectRowNotFound = errors.New("subject row not found")
)

// Collection names one of the three durable collections.
type Collection string

const (
	CollectionStudents      Collection = "students"
	CollectionSubjects      Collection = "subjects"
	CollectionRegistrations Collection = "registrations"
)

// RowError describes a single stored record that could not be loaded.
type RowError struct {
	Collection Collection
	Line       int
	Err        error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Collection, e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// LoadResult carries the records that parsed plus the ones that were skipped.
type LoadResult[T any] struct {
	Records []T
	Rejects []RowError
}

// Gateway reads and writes the durable student, subject and registration collections.
// A non-nil error from a Load method means the whole collection was unreadable;
// individual bad rows are reported through LoadResult.Rejects instead.
type Gateway interface {
	LoadStudents(ctx context.Context) (LoadResult[model.Student], error)
	LoadSubjects(ctx context.Context) (LoadResult[model.Subject], error)
	LoadRegistrations(ctx context.Context) (LoadResult[model.Registration], error)

	// AppendRegistration stores a pair once; appending a stored pair is a no-op.
	AppendRegistration(ctx context.Context, reg model.Registration) error
	UpdateSubjectEnrollment(ctx context.Context, subjectID string, enrollment int) error
}
