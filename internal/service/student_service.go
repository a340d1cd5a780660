package service

import (
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/store"
)

// StudentService handles student profile lookups.
type StudentService struct {
	store *store.Store
	clock rules.Clock
}

// NewStudentService creates a new StudentService. A nil clock means the system clock.
func NewStudentService(st *store.Store, clock rules.Clock) *StudentService {
	if clock == nil {
		clock = rules.SystemClock{}
	}
	return &StudentService{store: st, clock: clock}
}

// Profile returns the student's identity, current age and registered subjects.
func (s *StudentService) Profile(studentID string) (model.StudentProfile, error) {
	student, ok := s.store.GetStudent(studentID)
	if !ok {
		return model.StudentProfile{}, ErrStudentNotFound
	}

	registered := s.store.RegisteredSubjects(studentID)
	if registered == nil {
		registered = []model.Subject{}
	}

	return model.StudentProfile{
		Student:            student,
		FullName:           student.FullName(),
		Age:                student.AgeOn(s.clock.Now()),
		RegisteredSubjects: registered,
	}, nil
}
