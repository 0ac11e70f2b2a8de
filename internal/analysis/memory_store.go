package analysis

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rcollins22/rugchekr/internal/pagination"
)

// MemoryStore keeps analyses in memory. Used in development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*ContractAnalysis
	order    []string
	capacity int
}

// NewMemoryStore keeps at most capacity analyses, evicting the oldest.
// capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*ContractAnalysis),
		capacity: capacity,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Save(_ context.Context, a *ContractAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	if _, exists := m.byID[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.byID[a.ID] = &cp

	if m.capacity > 0 && len(m.order) > m.capacity {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.byID, evict)
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*ContractAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) LatestForAddress(_ context.Context, addr string) (*ContractAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.byID[m.order[i]]
		if strings.EqualFold(a.Address, addr) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListRecent(_ context.Context, before *pagination.Cursor, limit int) ([]*ContractAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ContractAnalysis, 0, len(m.order))
	for _, id := range m.order {
		a := m.byID[id]
		if !before.After(a.AnalyzedAt, a.ID) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnalyzedAt.Equal(out[j].AnalyzedAt) {
			return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
