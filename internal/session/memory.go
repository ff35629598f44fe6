package session

import (
	"context"
	"sync"

	"storefront/internal/models"
)

// Memory keeps sessions in process memory. Sessions live as long as the
// process, which is the closest server-side analogue of a tab-scoped store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*models.Session)}
}

func (m *Memory) Load(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *Memory) Save(_ context.Context, id string, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = s.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *Memory) CompareAndSwap(_ context.Context, id, refreshToken string, next *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[id]
	if !ok || cur.RefreshToken != refreshToken {
		return ErrSessionChanged
	}
	if next == nil {
		delete(m.sessions, id)
		return nil
	}
	m.sessions[id] = next.Clone()
	return nil
}

// Len returns the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
