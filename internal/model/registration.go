package model

// Registration is the fact that a student is enrolled in a subject.
type Registration struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
}

// RegisterRequest is the payload a logged-in student sends to enroll.
type RegisterRequest struct {
	SubjectID string `json:"subject_id" binding:"required,max=64"`
}

// EnrollmentEvent is published after every accepted registration.
type EnrollmentEvent struct {
	StudentID         string `json:"student_id"`
	SubjectID         string `json:"subject_id"`
	CurrentEnrollment int    `json:"current_enrollment"`
	MaxCapacity       int    `json:"max_capacity"`
	Full              bool   `json:"full"`
	OccurredAt        string `json:"occurred_at"`
}

// RegistrationOption is a subject the student has not registered for yet,
// with the status shown on the registration page.
type RegistrationOption struct {
	SubjectDetail
	Status string `json:"status"`
}
