// Package rules decides whether a (student, subject) registration may proceed.
// Everything here is read-only: evaluation never reserves capacity, so callers
// that act on a verdict must hold the subject's commit lock while doing so.
package rules

import (
	"github.com/stemsi/earlyreg-backend/internal/model"
)

// Reason identifies the first rule a registration attempt fails.
type Reason string

const (
	Eligible          Reason = ""
	StudentNotFound   Reason = "STUDENT_NOT_FOUND"
	SubjectNotFound   Reason = "SUBJECT_NOT_FOUND"
	Underage          Reason = "UNDERAGE"
	AlreadyRegistered Reason = "ALREADY_REGISTERED"
	CapacityFull      Reason = "CAPACITY_FULL"
)

// View is the read access the evaluator needs. *store.Store implements it.
type View interface {
	GetStudent(id string) (model.Student, bool)
	GetSubject(id string) (model.Subject, bool)
	IsRegistered(studentID, subjectID string) bool
}

// Verdict is the outcome of evaluating one pair.
type Verdict struct {
	Reason  Reason
	Student model.Student
	Subject model.Subject
}

// Eligible reports whether every rule passed.
func (v Verdict) Eligible() bool {
	return v.Reason == Eligible
}

// Evaluator evaluates registration rules against a View.
type Evaluator struct {
	view  View
	clock Clock
}

// NewEvaluator creates an Evaluator. A nil clock means the system clock.
func NewEvaluator(view View, clock Clock) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Evaluator{view: view, clock: clock}
}

// Check runs the rules in order (existence, age, duplicate, capacity) and
// reports the first failure. Unknown ids are an ordinary outcome, not an error.
func (e *Evaluator) Check(studentID, subjectID string) Verdict {
	v := e.checkIdentity(studentID, subjectID)
	if !v.Eligible() {
		return v
	}
	if !v.Subject.HasSeat() {
		v.Reason = CapacityFull
	}
	return v
}

// CanRegisterCapacityBound reports whether the pair can register right now:
// both ids exist, the student is old enough, the pair is new and the subject
// has a free seat (or no ceiling).
func (e *Evaluator) CanRegisterCapacityBound(studentID, subjectID string) bool {
	return e.Check(studentID, subjectID).Eligible()
}

// CanRegisterUnlimitedOnly is CanRegisterCapacityBound with the capacity rule
// replaced by "the subject has no ceiling at all".
func (e *Evaluator) CanRegisterUnlimitedOnly(studentID, subjectID string) bool {
	v := e.checkIdentity(studentID, subjectID)
	return v.Eligible() && v.Subject.Unlimited()
}

func (e *Evaluator) checkIdentity(studentID, subjectID string) Verdict {
	var v Verdict

	st, ok := e.view.GetStudent(studentID)
	if !ok {
		v.Reason = StudentNotFound
		return v
	}
	v.Student = st

	sub, ok := e.view.GetSubject(subjectID)
	if !ok {
		v.Reason = SubjectNotFound
		return v
	}
	v.Subject = sub

	if !st.MeetsAgeRequirement(e.clock.Now()) {
		v.Reason = Underage
		return v
	}
	if e.view.IsRegistered(studentID, subjectID) {
		v.Reason = AlreadyRegistered
	}
	return v
}
