package service

import (
	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/store"
)

// SubjectStatus is the registration page label for a subject.
type SubjectStatus string

const (
	StatusAvailable      SubjectStatus = "Available"
	StatusFull           SubjectStatus = "FULL"
	StatusCannotRegister SubjectStatus = "Cannot Register"
)

// SubjectService serves the read-only subject catalog.
type SubjectService struct {
	store *store.Store
	rules *rules.Evaluator
	log   zerolog.Logger
}

// NewSubjectService creates a new SubjectService.
func NewSubjectService(st *store.Store, evaluator *rules.Evaluator, log zerolog.Logger) *SubjectService {
	return &SubjectService{
		store: st,
		rules: evaluator,
		log:   log.With().Str("component", "subject_service").Logger(),
	}
}

// Details returns every subject with its capacity line, in load order.
func (s *SubjectService) Details() []model.SubjectDetail {
	subjects := s.store.AllSubjects()
	out := make([]model.SubjectDetail, 0, len(subjects))
	for _, sub := range subjects {
		out = append(out, model.NewSubjectDetail(sub))
	}
	return out
}

// RegistrationOptions lists the subjects the student is not yet registered
// for, each labelled with whether it can be taken right now.
func (s *SubjectService) RegistrationOptions(studentID string) []model.RegistrationOption {
	subjects := s.store.AllSubjects()
	out := make([]model.RegistrationOption, 0, len(subjects))
	for _, sub := range subjects {
		if s.store.IsRegistered(studentID, sub.ID) {
			continue
		}
		out = append(out, model.RegistrationOption{
			SubjectDetail: model.NewSubjectDetail(sub),
			Status:        string(s.status(studentID, sub)),
		})
	}
	return out
}

func (s *SubjectService) status(studentID string, sub model.Subject) SubjectStatus {
	if !sub.HasSeat() {
		return StatusFull
	}
	if s.rules.CanRegisterCapacityBound(studentID, sub.ID) || s.rules.CanRegisterUnlimitedOnly(studentID, sub.ID) {
		return StatusAvailable
	}
	return StatusCannotRegister
}
