package registry

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory flag registry for demo/development mode.
type MemoryStore struct {
	aggressors  map[string]*AggressorFlag
	compromised map[string]*CompromisedFlag
	aggOrder    []string
	compOrder   []string
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory registry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		aggressors:  make(map[string]*AggressorFlag),
		compromised: make(map[string]*CompromisedFlag),
	}
}

func (m *MemoryStore) FlagAggressor(ctx context.Context, flag *AggressorFlag) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.aggressors[flag.Address]; exists {
		return false, nil
	}
	cp := *flag
	m.aggressors[flag.Address] = &cp
	m.aggOrder = append(m.aggOrder, flag.Address)
	return true, nil
}

func (m *MemoryStore) GetAggressor(ctx context.Context, address string) (*AggressorFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.aggressors[address]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) ListAggressors(ctx context.Context, limit int) ([]*AggressorFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*AggressorFlag, 0, limit)
	// Newest first.
	for i := len(m.aggOrder) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.aggressors[m.aggOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) FlagCompromised(ctx context.Context, flag *CompromisedFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.compromised[flag.Owner]; exists {
		return ErrAlreadyCompromised
	}
	cp := *flag
	m.compromised[flag.Owner] = &cp
	m.compOrder = append(m.compOrder, flag.Owner)
	return nil
}

func (m *MemoryStore) GetCompromised(ctx context.Context, owner string) (*CompromisedFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.compromised[owner]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) ResolveCompromised(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.compromised[owner]
	if !ok {
		return ErrFlagNotFound
	}
	f.Resolved = true
	return nil
}

func (m *MemoryStore) ListCompromised(ctx context.Context, limit int) ([]*CompromisedFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*CompromisedFlag, 0, limit)
	for i := len(m.compOrder) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.compromised[m.compOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}
