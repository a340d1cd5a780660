package service

import (
	"context"
	"strings"

	"github.com/stemsi/earlyreg-backend/internal/enrollment"
)

// RegistrationService is the HTTP-facing entry to the enrollment committer.
type RegistrationService struct {
	committer *enrollment.Committer
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(committer *enrollment.Committer) *RegistrationService {
	return &RegistrationService{committer: committer}
}

// Register enrolls the authenticated student in a subject.
// Subject ids are matched exactly after trimming surrounding whitespace.
func (s *RegistrationService) Register(ctx context.Context, studentID, subjectID string) enrollment.Result {
	return s.committer.Register(ctx, studentID, strings.TrimSpace(subjectID))
}
