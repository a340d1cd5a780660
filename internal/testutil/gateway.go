// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
)

// ErrInjected is returned by MemoryGateway when a failure has been armed.
var ErrInjected = errors.New("injected gateway failure")

// MemoryGateway is a repository.Gateway backed by slices. Writes are recorded
// so tests can assert on what was persisted.
type MemoryGateway struct {
	mu sync.Mutex

	Students      []model.Student
	Subjects      []model.Subject
	Registrations []model.Registration

	StudentRejects []repository.RowError
	SubjectRejects []repository.RowError

	// Unreadable collections fail their Load call with ErrInjected.
	Unreadable map[repository.Collection]bool

	appendFailures int
	updateFailures int
	appendCalls    int
	updateCalls    int
}

// NewMemoryGateway creates a gateway preloaded with the given records.
func NewMemoryGateway(students []model.Student, subjects []model.Subject, regs []model.Registration) *MemoryGateway {
	return &MemoryGateway{
		Students:      students,
		Subjects:      subjects,
		Registrations: regs,
		Unreadable:    make(map[repository.Collection]bool),
	}
}

// FailAppends makes the next n AppendRegistration calls fail. n < 0 fails forever.
func (g *MemoryGateway) FailAppends(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendFailures = n
}

// FailUpdates makes the next n UpdateSubjectEnrollment calls fail. n < 0 fails forever.
func (g *MemoryGateway) FailUpdates(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateFailures = n
}

// AppendCalls returns how many times AppendRegistration was called.
func (g *MemoryGateway) AppendCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appendCalls
}

// UpdateCalls returns how many times UpdateSubjectEnrollment was called.
func (g *MemoryGateway) UpdateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updateCalls
}

// StoredRegistrations returns a copy of the persisted pairs.
func (g *MemoryGateway) StoredRegistrations() []model.Registration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Registration(nil), g.Registrations...)
}

// StoredEnrollment returns the persisted enrollment count for a subject.
func (g *MemoryGateway) StoredEnrollment(subjectID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sub := range g.Subjects {
		if sub.ID == subjectID {
			return sub.CurrentEnrollment, true
		}
	}
	return 0, false
}

func (g *MemoryGateway) LoadStudents(ctx context.Context) (repository.LoadResult[model.Student], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unreadable[repository.CollectionStudents] {
		return repository.LoadResult[model.Student]{}, ErrInjected
	}
	return repository.LoadResult[model.Student]{
		Records: append([]model.Student(nil), g.Students...),
		Rejects: g.StudentRejects,
	}, nil
}

func (g *MemoryGateway) LoadSubjects(ctx context.Context) (repository.LoadResult[model.Subject], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unreadable[repository.CollectionSubjects] {
		return repository.LoadResult[model.Subject]{}, ErrInjected
	}
	return repository.LoadResult[model.Subject]{
		Records: append([]model.Subject(nil), g.Subjects...),
		Rejects: g.SubjectRejects,
	}, nil
}

func (g *MemoryGateway) LoadRegistrations(ctx context.Context) (repository.LoadResult[model.Registration], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unreadable[repository.CollectionRegistrations] {
		return repository.LoadResult[model.Registration]{}, ErrInjected
	}
	return repository.LoadResult[model.Registration]{
		Records: append([]model.Registration(nil), g.Registrations...),
	}, nil
}

func (g *MemoryGateway) AppendRegistration(ctx context.Context, reg model.Registration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendCalls++
	if g.appendFailures != 0 {
		if g.appendFailures > 0 {
			g.appendFailures--
		}
		return ErrInjected
	}
	for _, r := range g.Registrations {
		if r == reg {
			return nil
		}
	}
	g.Registrations = append(g.Registrations, reg)
	return nil
}

func (g *MemoryGateway) UpdateSubjectEnrollment(ctx context.Context, subjectID string, enrollment int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	if g.updateFailures != 0 {
		if g.updateFailures > 0 {
			g.updateFailures--
		}
		return ErrInjected
	}
	for i := range g.Subjects {
		if g.Subjects[i].ID == subjectID {
			g.Subjects[i].CurrentEnrollment = enrollment
			return nil
		}
	}
	return repository.ErrSubjectRowNotFound
}

// ─── Fixtures ───────────────────────────────────────────────────────

// Today is the fixed "now" used by fixture ages.
var Today = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.Local)

// Date builds a local midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// SampleStudents returns the canonical fixture students. 69012345 and
// 69054321 are adults; 69099999 is 14 on Today.
func SampleStudents() []model.Student {
	return []model.Student{
		{ID: "69012345", Title: "Mr.", FirstName: "Somchai", LastName: "Jaidee", BirthDate: Date(2007, time.May, 14), CurrentSchool: "Bangkok High", Email: "somchai@example.com"},
		{ID: "69054321", Title: "Ms.", FirstName: "Suda", LastName: "Rakthai", BirthDate: Date(2008, time.January, 2), CurrentSchool: "Chiang Mai School", Email: "suda@example.com"},
		{ID: "69099999", Title: "Mr.", FirstName: "Anan", LastName: "Sukjai", BirthDate: Date(2010, time.June, 1), CurrentSchool: "Khon Kaen School", Email: "anan@example.com"},
	}
}

// SampleSubjects returns the canonical fixture subjects: CS101 with one free
// seat, CS102 full, MATH999 unlimited and CS201 requiring CS101.
func SampleSubjects() []model.Subject {
	return []model.Subject{
		{ID: "CS101", Name: "Intro to Programming", Credits: 3, Instructor: "Dr. Smith", MaxCapacity: 30, CurrentEnrollment: 29},
		{ID: "CS102", Name: "Data Structures", Credits: 3, Instructor: "Dr. Lee", MaxCapacity: 20, CurrentEnrollment: 20},
		{ID: "MATH999", Name: "Open Mathematics", Credits: 2, Instructor: "Dr. Gauss", MaxCapacity: model.UnlimitedCapacity, CurrentEnrollment: 0},
		{ID: "CS201", Name: "Algorithms", Credits: 3, Instructor: "Dr. Knuth", PrerequisiteID: "CS101", MaxCapacity: 25, CurrentEnrollment: 0},
	}
}

// NopLogger discards everything.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
