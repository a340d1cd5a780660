package model

import "time"

// MinimumAge is the youngest age, in whole years, allowed to register.
const MinimumAge = 15

// StudentIDLength and StudentIDPrefix describe the login id format.
const (
	StudentIDLength = 8
	StudentIDPrefix = "69"
)

// DateLayout is the ISO-8601 calendar date layout used for birth dates.
const DateLayout = "2006-01-02"

// Student represents an enrolled student record. Students are immutable after load.
type Student struct {
	ID            string    `json:"student_id"`
	Title         string    `json:"title"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	BirthDate     time.Time `json:"birth_date"`
	CurrentSchool string    `json:"current_school"`
	Email         string    `json:"email"`
}

// FullName returns "Title FirstName LastName".
func (s Student) FullName() string {
	return s.Title + " " + s.FirstName + " " + s.LastName
}

// AgeOn returns the student's age in whole elapsed years on the given day.
// A birthday falling on that day counts as already reached.
func (s Student) AgeOn(now time.Time) int {
	by, bm, bd := s.BirthDate.Date()
	ny, nm, nd := now.Date()

	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// MeetsAgeRequirement reports whether the student is at least MinimumAge on the given day.
func (s Student) MeetsAgeRequirement(now time.Time) bool {
	return s.AgeOn(now) >= MinimumAge
}

// ValidStudentID reports whether id has the login format: exactly eight
// ASCII digits starting with "69".
func ValidStudentID(id string) bool {
	if len(id) != StudentIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return id[:len(StudentIDPrefix)] == StudentIDPrefix
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	StudentID string `json:"student_id" binding:"required,student_id"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// StudentProfile is the student's own view: identity, age and current registrations.
type StudentProfile struct {
	Student            Student   `json:"student"`
	FullName           string    `json:"full_name"`
	Age                int       `json:"age"`
	RegisteredSubjects []Subject `json:"registered_subjects"`
}
