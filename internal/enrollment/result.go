package enrollment

import (
	"errors"
	"fmt"

	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/rules"
)

// Status is the overall outcome of a Register call.
type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonStudentNotFound   Reason = "STUDENT_NOT_FOUND"
	ReasonSubjectNotFound   Reason = "SUBJECT_NOT_FOUND"
	ReasonUnderage          Reason = "UNDERAGE"
	ReasonAlreadyRegistered Reason = "ALREADY_REGISTERED"
	ReasonCapacityFull      Reason = "CAPACITY_FULL"
	ReasonPrerequisiteUnmet Reason = "PREREQUISITE_UNMET"
	ReasonPersistenceFailed Reason = "PERSISTENCE_FAILED"
)

// Kind groups rejection reasons into the engine's error taxonomy.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "NOT_FOUND"
	KindRuleViolation      Kind = "RULE_VIOLATION"
	KindPersistenceFailure Kind = "PERSISTENCE_FAILURE"
)

// Sentinel errors matching each Kind, for callers that prefer errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrRuleViolation = errors.New("registration rule violated")
	ErrPersistence   = errors.New("persistence failed")
)

// Kind returns the taxonomy bucket of a reason.
func (r Reason) Kind() Kind {
	switch r {
	case ReasonNone:
		return KindNone
	case ReasonStudentNotFound, ReasonSubjectNotFound:
		return KindNotFound
	case ReasonPersistenceFailed:
		return KindPersistenceFailure
	default:
		return KindRuleViolation
	}
}

func reasonFromRule(r rules.Reason) Reason {
	switch r {
	case rules.StudentNotFound:
		return ReasonStudentNotFound
	case rules.SubjectNotFound:
		return ReasonSubjectNotFound
	case rules.Underage:
		return ReasonUnderage
	case rules.AlreadyRegistered:
		return ReasonAlreadyRegistered
	case rules.CapacityFull:
		return ReasonCapacityFull
	default:
		return ReasonNone
	}
}

// Result is the typed outcome of Register. It is never a panic or a bare error.
type Result struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
	// Subject is the subject as it stands after the call.
	Subject model.Subject `json:"subject"`
	// Persisted is false when an accepted registration could not be written
	// to durable storage (memory-first mode only).
	Persisted bool `json:"persisted"`
}

// Accepted reports whether the registration went through.
func (r Result) Accepted() bool {
	return r.Status == StatusAccepted
}

// Err returns nil for an accepted result, otherwise an error wrapping the
// sentinel for the reason's Kind.
func (r Result) Err() error {
	if r.Accepted() {
		return nil
	}
	switch r.Reason.Kind() {
	case KindNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Reason)
	case KindPersistenceFailure:
		return fmt.Errorf("%w: %s", ErrPersistence, r.Reason)
	default:
		return fmt.Errorf("%w: %s", ErrRuleViolation, r.Reason)
	}
}
