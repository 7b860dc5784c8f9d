package engine

import (
	"context"
	"sync"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

// Manager holds one engine per user, created lazily. The first access
// runs the restoration protocol; a failed restoration is not cached so
// the next request retries.
type Manager struct {
	repos  *storage.Repositories
	logger internal.Logger

	mu      sync.Mutex
	entries map[string]*managerEntry
}

type managerEntry struct {
	once sync.Once
	eng  *Engine
	err  error
}

func NewManager(repos *storage.Repositories, logger internal.Logger) *Manager {
	return &Manager{
		repos:   repos,
		logger:  logger,
		entries: make(map[string]*managerEntry),
	}
}

func (m *Manager) ForUser(ctx context.Context, userID string) (*Engine, error) {
	m.mu.Lock()
	en, ok := m.entries[userID]
	if !ok {
		en = &managerEntry{}
		m.entries[userID] = en
	}
	m.mu.Unlock()

	en.once.Do(func() {
		eng := New(userID, m.repos.Profiles, m.repos.Sessions, m.logger)
		if err := eng.Restore(ctx); err != nil {
			eng.Close()
			en.err = err
			return
		}
		en.eng = eng
	})
	if en.err != nil {
		m.mu.Lock()
		if m.entries[userID] == en {
			delete(m.entries, userID)
		}
		m.mu.Unlock()
		return nil, en.err
	}
	return en.eng, nil
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, en := range m.entries {
		if en.eng != nil {
			en.eng.Close()
		}
	}
	m.entries = make(map[string]*managerEntry)
}
