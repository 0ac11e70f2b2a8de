package preferences

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]Settings
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]Settings), now: time.Now}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(_ context.Context, clientID string) (Settings, error) {
	if clientID == "" {
		return Settings{}, ErrMissingClientID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[clientID]
	if !ok {
		return Defaults(), nil
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, clientID string, s Settings) error {
	if clientID == "" {
		return ErrMissingClientID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now().UTC()
	m.settings[clientID] = s
	return nil
}
