package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestStudentAgeOn(t *testing.T) {
	st := Student{BirthDate: date(2010, time.June, 1)}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day before birthday", date(2025, time.May, 31), 14},
		{"birthday today counts", date(2025, time.June, 1), 15},
		{"day after birthday", date(2025, time.June, 2), 15},
		{"earlier month", date(2025, time.January, 20), 14},
		{"later month", date(2025, time.December, 1), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, st.AgeOn(tt.now))
		})
	}
}

func TestStudentAgeOnLeapDay(t *testing.T) {
	st := Student{BirthDate: date(2008, time.February, 29)}

	assert.Equal(t, 14, st.AgeOn(date(2023, time.February, 28)))
	assert.Equal(t, 15, st.AgeOn(date(2023, time.March, 1)))
	assert.Equal(t, 16, st.AgeOn(date(2024, time.February, 29)))
}

func TestStudentMeetsAgeRequirement(t *testing.T) {
	st := Student{BirthDate: date(2010, time.June, 1)}

	assert.False(t, st.MeetsAgeRequirement(date(2025, time.May, 31)))
	assert.True(t, st.MeetsAgeRequirement(date(2025, time.June, 1)))
}

func TestStudentFullName(t *testing.T) {
	st := Student{Title: "Ms.", FirstName: "Suda", LastName: "Rakthai"}
	assert.Equal(t, "Ms. Suda Rakthai", st.FullName())
}

func TestValidStudentID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"69012345", true},
		{"69000000", true},
		{"12345678", false},
		{"6901234", false},
		{"690123456", false},
		{"69a12345", false},
		{"", false},
		{"６9012345", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStudentID(tt.id))
		})
	}
}

func TestSubjectCapacity(t *testing.T) {
	bounded := Subject{MaxCapacity: 30, CurrentEnrollment: 29}
	full := Subject{MaxCapacity: 20, CurrentEnrollment: 20}
	unlimited := Subject{MaxCapacity: UnlimitedCapacity, CurrentEnrollment: 500}

	assert.True(t, bounded.HasSeat())
	assert.False(t, full.HasSeat())
	assert.True(t, unlimited.HasSeat())
	assert.True(t, unlimited.Unlimited())
	assert.False(t, bounded.Unlimited())

	assert.Equal(t, "Enrolled: 29/30 students", bounded.CapacityInfo())
	assert.Equal(t, "Enrolled: 500 students (Unlimited)", unlimited.CapacityInfo())
	assert.Equal(t, "Enrolled: 29/30 students", NewSubjectDetail(bounded).CapacityInfo)
}

func TestSubjectValidate(t *testing.T) {
	valid := Subject{ID: "CS101", Credits: 3, MaxCapacity: 30}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Subject)
		want   error
	}{
		{"empty id", func(s *Subject) { s.ID = "" }, ErrEmptySubjectID},
		{"zero credits", func(s *Subject) { s.Credits = 0 }, ErrNonPositiveCredits},
		{"capacity below sentinel", func(s *Subject) { s.MaxCapacity = -2 }, ErrInvalidCapacity},
		{"negative enrollment", func(s *Subject) { s.CurrentEnrollment = -1 }, ErrNegativeEnrollment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), tt.want)
		})
	}

	unlimited := valid
	unlimited.MaxCapacity = UnlimitedCapacity
	assert.NoError(t, unlimited.Validate())
}
