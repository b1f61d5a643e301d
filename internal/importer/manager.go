package importer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/internal/common"
)

// Manager holds live sessions by id and expires idle ones.
type Manager struct {
	pipeline *Pipeline
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(p *Pipeline, ttl time.Duration) *Manager {
	return &Manager{pipeline: p, ttl: ttl, sessions: make(map[uuid.UUID]*Session)}
}

func (m *Manager) New() *Session {
	s := NewSession(m.pipeline)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, common.NotFoundError("import session not found")
	}
	return s, nil
}

func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed. A non-positive TTL keeps everything.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.lastTouched()) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
