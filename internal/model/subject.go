package model

import (
	"errors"
	"fmt"
)

// UnlimitedCapacity is the MaxCapacity sentinel for subjects without a ceiling.
const UnlimitedCapacity = -1

// Subject shape errors, reported by loaders for rows that cannot be accepted.
var (
	ErrEmptySubjectID     = errors.New("subject id is empty")
	ErrNonPositiveCredits = errors.New("credits must be positive")
	ErrInvalidCapacity    = errors.New("max capacity must be -1 or non-negative")
	ErrNegativeEnrollment = errors.New("current enrollment must be non-negative")
)

// Subject represents a course students can register for.
type Subject struct {
	ID                string `json:"subject_id"`
	Name              string `json:"subject_name"`
	Credits           int    `json:"credits"`
	Instructor        string `json:"instructor"`
	PrerequisiteID    string `json:"prerequisite_subject_id,omitempty"`
	MaxCapacity       int    `json:"max_capacity"`
	CurrentEnrollment int    `json:"current_enrollment"`
}

// Unlimited reports whether the subject has no enrollment ceiling.
func (s Subject) Unlimited() bool {
	return s.MaxCapacity == UnlimitedCapacity
}

// HasPrerequisite reports whether the subject declares a prerequisite subject.
func (s Subject) HasPrerequisite() bool {
	return s.PrerequisiteID != ""
}

// HasSeat reports whether one more student can be enrolled.
func (s Subject) HasSeat() bool {
	if s.Unlimited() {
		return true
	}
	return s.CurrentEnrollment < s.MaxCapacity
}

// CapacityInfo renders the enrollment line shown next to a subject.
func (s Subject) CapacityInfo() string {
	if s.Unlimited() {
		return fmt.Sprintf("Enrolled: %d students (Unlimited)", s.CurrentEnrollment)
	}
	return fmt.Sprintf("Enrolled: %d/%d students", s.CurrentEnrollment, s.MaxCapacity)
}

// Validate checks the shape constraints every stored subject must satisfy.
func (s Subject) Validate() error {
	switch {
	case s.ID == "":
		return ErrEmptySubjectID
	case s.Credits <= 0:
		return ErrNonPositiveCredits
	case s.MaxCapacity < UnlimitedCapacity:
		return ErrInvalidCapacity
	case s.CurrentEnrollment < 0:
		return ErrNegativeEnrollment
	}
	return nil
}

// SubjectDetail is the catalog rendering of a subject.
type SubjectDetail struct {
	Subject
	CapacityInfo string `json:"capacity_info"`
}

// NewSubjectDetail wraps a subject with its rendered capacity line.
func NewSubjectDetail(s Subject) SubjectDetail {
	return SubjectDetail{Subject: s, CapacityInfo: s.CapacityInfo()}
}
