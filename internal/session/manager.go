package session

import (
	"sync"
	"time"
)

// Manager serializes turn processing per user so concurrent requests for
// the same user cannot interleave issue-log writes or conversation state.
// Different users run in parallel.
type Manager struct {
	mu      sync.Mutex
	mutexes map[string]*userLock
}

type userLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

func NewManager() *Manager {
	return &Manager{
		mutexes: make(map[string]*userLock),
	}
}

// WithLock executes fn while holding the per-user mutex.
func (m *Manager) WithLock(userID string, fn func() error) error {
	m.mu.Lock()
	ul, ok := m.mutexes[userID]
	if !ok {
		ul = &userLock{}
		m.mutexes[userID] = ul
	}
	m.mu.Unlock()

	ul.mu.Lock()
	defer ul.mu.Unlock()

	ul.lastUsed = time.Now()
	return fn()
}

// Cleanup removes locks not used within maxAge to prevent memory leaks.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for userID, ul := range m.mutexes {
		if now.Sub(ul.lastUsed) > maxAge {
			delete(m.mutexes, userID)
		}
	}
}
