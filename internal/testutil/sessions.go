package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/earlyreg-backend/internal/repository"
)

// MemorySessions is an in-process stand-in for the Redis session repository.
// TTLs are ignored.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

// NewMemorySessions creates an empty session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]string)}
}

func (m *MemorySessions) Create(_ context.Context, studentID, jti string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[studentID]; ok {
		return false, nil
	}
	m.sessions[studentID] = jti
	return true, nil
}

func (m *MemorySessions) Get(_ context.Context, studentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jti, ok := m.sessions[studentID]
	if !ok {
		return "", repository.ErrSessionNotFound
	}
	return jti, nil
}

func (m *MemorySessions) Delete(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, studentID)
	return nil
}
