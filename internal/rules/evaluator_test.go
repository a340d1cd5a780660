package rules

import (
	"testing"
	"time"

	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

type fakeView struct {
	students map[string]model.Student
	subjects map[string]model.Subject
	regs     map[[2]string]bool
}

func (v fakeView) GetStudent(id string) (model.Student, bool) {
	st, ok := v.students[id]
	return st, ok
}

func (v fakeView) GetSubject(id string) (model.Subject, bool) {
	sub, ok := v.subjects[id]
	return sub, ok
}

func (v fakeView) IsRegistered(studentID, subjectID string) bool {
	return v.regs[[2]string{studentID, subjectID}]
}

var today = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.Local)

func newView() fakeView {
	return fakeView{
		students: map[string]model.Student{
			"69012345": {ID: "69012345", BirthDate: time.Date(2007, time.May, 14, 0, 0, 0, 0, time.Local)},
			"69099999": {ID: "69099999", BirthDate: time.Date(2010, time.June, 1, 0, 0, 0, 0, time.Local)},
			"69031010": {ID: "69031010", BirthDate: time.Date(2010, time.March, 10, 0, 0, 0, 0, time.Local)},
		},
		subjects: map[string]model.Subject{
			"CS101":   {ID: "CS101", MaxCapacity: 30, CurrentEnrollment: 29},
			"CS102":   {ID: "CS102", MaxCapacity: 20, CurrentEnrollment: 20},
			"MATH999": {ID: "MATH999", MaxCapacity: model.UnlimitedCapacity, CurrentEnrollment: 1000},
		},
		regs: map[[2]string]bool{
			{"69012345", "MATH999"}: true,
		},
	}
}

func TestEvaluatorCheck(t *testing.T) {
	ev := NewEvaluator(newView(), NewFixedClock(today))

	tests := []struct {
		name      string
		studentID string
		subjectID string
		want      Reason
	}{
		{"eligible with free seat", "69012345", "CS101", Eligible},
		{"unknown student", "12345678", "CS101", StudentNotFound},
		{"unknown student wins over unknown subject", "12345678", "NOPE", StudentNotFound},
		{"unknown subject", "69012345", "NOPE", SubjectNotFound},
		{"underage", "69099999", "CS101", Underage},
		{"birthday today is old enough", "69031010", "CS101", Eligible},
		{"already registered", "69012345", "MATH999", AlreadyRegistered},
		{"full subject", "69012345", "CS102", CapacityFull},
		{"underage wins over full", "69099999", "CS102", Underage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ev.Check(tt.studentID, tt.subjectID)
			assert.Equal(t, tt.want, v.Reason)
			assert.Equal(t, tt.want == Eligible, v.Eligible())
		})
	}
}

func TestCanRegisterCapacityBound(t *testing.T) {
	ev := NewEvaluator(newView(), NewFixedClock(today))

	assert.True(t, ev.CanRegisterCapacityBound("69012345", "CS101"))
	assert.False(t, ev.CanRegisterCapacityBound("69012345", "CS102"))
	assert.False(t, ev.CanRegisterCapacityBound("69099999", "CS101"))
	assert.False(t, ev.CanRegisterCapacityBound("12345678", "CS101"))
}

func TestCanRegisterUnlimitedOnly(t *testing.T) {
	view := newView()
	view.subjects["OPEN1"] = model.Subject{ID: "OPEN1", MaxCapacity: model.UnlimitedCapacity}
	ev := NewEvaluator(view, NewFixedClock(today))

	assert.True(t, ev.CanRegisterUnlimitedOnly("69012345", "OPEN1"))
	// A bounded subject with free seats is not enough.
	assert.False(t, ev.CanRegisterUnlimitedOnly("69012345", "CS101"))
	assert.False(t, ev.CanRegisterUnlimitedOnly("69012345", "MATH999"))
	assert.False(t, ev.CanRegisterUnlimitedOnly("69099999", "OPEN1"))
}

func TestEvaluatorFollowsClock(t *testing.T) {
	clock := NewFixedClock(time.Date(2025, time.May, 31, 12, 0, 0, 0, time.Local))
	ev := NewEvaluator(newView(), clock)

	assert.Equal(t, Underage, ev.Check("69099999", "CS101").Reason)

	clock.Set(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.Local))
	assert.True(t, ev.Check("69099999", "CS101").Eligible())
}

func TestNewEvaluatorDefaultsToSystemClock(t *testing.T) {
	ev := NewEvaluator(newView(), nil)
	assert.IsType(t, SystemClock{}, ev.clock)
}
