// Package enrollment is the only writer of enrollment state. It re-checks the
// registration rules, applies the pair to the entity store and persists it,
// all under a per-subject lock so that concurrent attempts on one subject
// cannot both take its last seat.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/metrics"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/store"
)

// CommitMode selects the ordering of the memory and durable writes.
type CommitMode int

const (
	// MemoryFirst applies in memory, then persists. A persistence failure is
	// logged and the result stays Accepted with Persisted=false.
	MemoryFirst CommitMode = iota
	// DurableFirst persists, then applies in memory. A persistence failure
	// rejects the registration and leaves memory untouched.
	DurableFirst
)

// PrerequisiteCheck decides whether a student may take a subject that
// declares a prerequisite.
type PrerequisiteCheck interface {
	Satisfied(ctx context.Context, student model.Student, subject model.Subject) (bool, error)
}

// SkipPrerequisiteCheck accepts every student. Completion of prerequisite
// subjects is not tracked anywhere yet.
type SkipPrerequisiteCheck struct{}

// Satisfied always returns true.
func (SkipPrerequisiteCheck) Satisfied(context.Context, model.Student, model.Subject) (bool, error) {
	return true, nil
}

// Notifier receives an event for every accepted registration.
type Notifier interface {
	Publish(ctx context.Context, evt model.EnrollmentEvent) error
}

// Committer serializes registrations per subject.
type Committer struct {
	store    *store.Store
	rules    *rules.Evaluator
	gateway  repository.Gateway
	prereq   PrerequisiteCheck
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mode          CommitMode
	maxAttempts   int
	retryInterval time.Duration

	locks sync.Map // subject id -> *sync.Mutex
}

// Option configures a Committer.
type Option func(*Committer)

// WithCommitMode sets the write ordering. Default MemoryFirst.
func WithCommitMode(mode CommitMode) Option {
	return func(c *Committer) { c.mode = mode }
}

// WithPrerequisiteCheck replaces the default SkipPrerequisiteCheck.
func WithPrerequisiteCheck(p PrerequisiteCheck) Option {
	return func(c *Committer) { c.prereq = p }
}

// WithNotifier publishes an event after every accepted registration.
func WithNotifier(n Notifier) Option {
	return func(c *Committer) { c.notifier = n }
}

// WithMetrics records outcomes and commit durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Committer) { c.metrics = m }
}

// WithRetry bounds each durable write to maxAttempts tries, starting with
// the given backoff interval.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(c *Committer) {
		c.maxAttempts = maxAttempts
		c.retryInterval = initial
	}
}

// NewCommitter creates a new Committer.
func NewCommitter(
	st *store.Store,
	evaluator *rules.Evaluator,
	gateway repository.Gateway,
	log zerolog.Logger,
	opts ...Option,
) *Committer {
	c := &Committer{
		store:         st,
		rules:         evaluator,
		gateway:       gateway,
		prereq:        SkipPrerequisiteCheck{},
		log:           log.With().Str("component", "enrollment_committer").Logger(),
		mode:          MemoryFirst,
		maxAttempts:   3,
		retryInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Register attempts to enroll a student in a subject.
//
// The rules are re-evaluated under the subject's lock, so the verdict and the
// write that follows it cannot be interleaved with another registration for
// the same subject.
func (c *Committer) Register(ctx context.Context, studentID, subjectID string) Result {
	start := time.Now()
	defer c.metrics.ObserveCommit(start)

	// Subjects are fixed after load; unknown ids never get a lock entry.
	if _, ok := c.store.GetSubject(subjectID); !ok {
		v := c.rules.Check(studentID, subjectID)
		return c.reject(studentID, subjectID, reasonFromRule(v.Reason), v.Subject)
	}

	mu := c.subjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	v := c.rules.Check(studentID, subjectID)
	if !v.Eligible() {
		return c.reject(studentID, subjectID, reasonFromRule(v.Reason), v.Subject)
	}

	if v.Subject.HasPrerequisite() {
		ok, err := c.prereq.Satisfied(ctx, v.Student, v.Subject)
		if err != nil {
			c.log.Error().Err(err).
				Str("student_id", studentID).
				Str("subject_id", subjectID).
				Msg("Prerequisite check failed")
		}
		if err != nil || !ok {
			return c.reject(studentID, subjectID, ReasonPrerequisiteUnmet, v.Subject)
		}
	}

	// From here on memory or storage may change, so the writes and the event
	// must not stop when the caller cancels. Retries bound the work.
	ctx = context.WithoutCancel(ctx)

	if c.mode == DurableFirst {
		return c.commitDurableFirst(ctx, v)
	}
	return c.commitMemoryFirst(ctx, v)
}

func (c *Committer) commitMemoryFirst(ctx context.Context, v rules.Verdict) Result {
	sub, err := c.store.Register(v.Student.ID, v.Subject.ID)
	if err != nil {
		return c.reject(v.Student.ID, v.Subject.ID, reasonFromStore(err), sub)
	}

	persisted := true
	if err := c.persist(ctx, v.Student.ID, sub.ID, sub.CurrentEnrollment); err != nil {
		persisted = false
		c.metrics.IncPersistenceFailure()
		c.log.Error().Err(err).
			Str("student_id", v.Student.ID).
			Str("subject_id", sub.ID).
			Int("enrollment", sub.CurrentEnrollment).
			Msg("Registration applied in memory but not persisted; stored state is behind")
	}

	return c.accept(ctx, v.Student.ID, sub, persisted)
}

func (c *Committer) commitDurableFirst(ctx context.Context, v rules.Verdict) Result {
	next := v.Subject.CurrentEnrollment + 1
	if err := c.persist(ctx, v.Student.ID, v.Subject.ID, next); err != nil {
		c.metrics.IncPersistenceFailure()
		c.log.Error().Err(err).
			Str("student_id", v.Student.ID).
			Str("subject_id", v.Subject.ID).
			Msg("Registration not persisted, rejecting")
		return c.reject(v.Student.ID, v.Subject.ID, ReasonPersistenceFailed, v.Subject)
	}

	sub, err := c.store.Register(v.Student.ID, v.Subject.ID)
	if err != nil {
		// Unreachable while the subject lock is held; kept loud in case it is not.
		c.log.Error().Err(err).
			Str("student_id", v.Student.ID).
			Str("subject_id", v.Subject.ID).
			Msg("Persisted registration could not be applied in memory")
		return c.reject(v.Student.ID, v.Subject.ID, reasonFromStore(err), sub)
	}

	return c.accept(ctx, v.Student.ID, sub, true)
}

// persist appends the pair and then overwrites the subject's stored count.
func (c *Committer) persist(ctx context.Context, studentID, subjectID string, enrollment int) error {
	reg := model.Registration{StudentID: studentID, SubjectID: subjectID}
	if err := c.retry(ctx, func() error { return c.gateway.AppendRegistration(ctx, reg) }); err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	if err := c.retry(ctx, func() error { return c.gateway.UpdateSubjectEnrollment(ctx, subjectID, enrollment) }); err != nil {
		return fmt.Errorf("update subject enrollment: %w", err)
	}
	return nil
}

func (c *Committer) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if errors.Is(err, repository.ErrSubjectRowNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("wait", wait).Msg("Durable write failed, retrying")
	})
}

func (c *Committer) accept(ctx context.Context, studentID string, sub model.Subject, persisted bool) Result {
	c.metrics.IncAccepted()
	c.log.Info().
		Str("student_id", studentID).
		Str("subject_id", sub.ID).
		Int("enrollment", sub.CurrentEnrollment).
		Bool("persisted", persisted).
		Msg("Registration accepted")

	if c.notifier != nil {
		evt := model.EnrollmentEvent{
			StudentID:         studentID,
			SubjectID:         sub.ID,
			CurrentEnrollment: sub.CurrentEnrollment,
			MaxCapacity:       sub.MaxCapacity,
			Full:              !sub.HasSeat(),
			OccurredAt:        time.Now().UTC().Format(time.RFC3339),
		}
		if err := c.notifier.Publish(ctx, evt); err != nil {
			c.log.Warn().Err(err).Str("subject_id", sub.ID).Msg("Enrollment event not published")
		}
	}

	return Result{Status: StatusAccepted, Subject: sub, Persisted: persisted}
}

func (c *Committer) reject(studentID, subjectID string, reason Reason, sub model.Subject) Result {
	c.metrics.IncRejected(string(reason))
	c.log.Debug().
		Str("student_id", studentID).
		Str("subject_id", subjectID).
		Str("reason", string(reason)).
		Msg("Registration rejected")
	return Result{Status: StatusRejected, Reason: reason, Subject: sub}
}

func (c *Committer) subjectLock(subjectID string) *sync.Mutex {
	if mu, ok := c.locks.Load(subjectID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := c.locks.LoadOrStore(subjectID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func reasonFromStore(err error) Reason {
	switch {
	case errors.Is(err, store.ErrStudentNotFound):
		return ReasonStudentNotFound
	case errors.Is(err, store.ErrSubjectNotFound):
		return ReasonSubjectNotFound
	case errors.Is(err, store.ErrAlreadyRegistered):
		return ReasonAlreadyRegistered
	case errors.Is(err, store.ErrCapacityReached):
		return ReasonCapacityFull
	default:
		return ReasonPersistenceFailed
	}
}
