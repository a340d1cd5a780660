package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/earlyreg-backend/internal/config"
)

// ErrSessionNotFound is returned when a student has no active session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository keeps one active login session per student in Redis.
type SessionRepository struct {
	rdb *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// Create stores the session token id unless one is already active.
// It reports false when another session holds the slot.
func (r *SessionRepository) Create(ctx context.Context, studentID, jti string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, config.CacheKey.StudentSessionKey(studentID), jti, ttl).Result()
}

// Get returns the active session token id for a student.
func (r *SessionRepository) Get(ctx context.Context, studentID string) (string, error) {
	jti, err := r.rdb.Get(ctx, config.CacheKey.StudentSessionKey(studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	return jti, err
}

// Delete removes the student's session, allowing a new login.
func (r *SessionRepository) Delete(ctx context.Context, studentID string) error {
	return r.rdb.Del(ctx, config.CacheKey.StudentSessionKey(studentID)).Err()
}
