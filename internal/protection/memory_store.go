package protection

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory protection store for demo/development mode.
type MemoryStore struct {
	configs map[string]*Config
	vaults  map[string]*Vault
	alerts  map[string][]*Alert // keyed by owner, ordered by contact list
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory protection store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[string]*Config),
		vaults:  make(map[string]*Vault),
		alerts:  make(map[string][]*Alert),
	}
}

func (m *MemoryStore) CreateConfig(ctx context.Context, cfg *Config, v *Vault) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.configs[cfg.Owner]; exists {
		return ErrAlreadyConfigured
	}

	cfgCp := copyConfig(cfg)
	vCp := *v
	m.configs[cfg.Owner] = cfgCp
	m.vaults[v.Owner] = &vCp
	return nil
}

func (m *MemoryStore) GetConfig(ctx context.Context, owner string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[owner]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return copyConfig(cfg), nil
}

func (m *MemoryStore) GetVault(ctx context.Context, owner string) (*Vault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vaults[owner]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) MarkTriggered(ctx context.Context, owner string, lockedUntil int64, alerts []*Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[owner]
	if !ok {
		return ErrConfigNotFound
	}
	if cfg.Triggered {
		return ErrAlreadyTriggered
	}

	cfg.Triggered = true
	v := m.vaults[owner]
	v.LockedUntil = lockedUntil
	v.UpdatedAt = time.Now()

	records := make([]*Alert, len(alerts))
	for i, a := range alerts {
		cp := *a
		records[i] = &cp
	}
	m.alerts[owner] = records
	return nil
}

func (m *MemoryStore) InitiateRecovery(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vaults[owner]
	if !ok {
		return ErrConfigNotFound
	}
	if v.RecoveryInitiated {
		return ErrRecoveryAlreadyInitiated
	}

	v.RecoveryInitiated = true
	v.Approvals = 0
	v.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Approve(ctx context.Context, owner, contact string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vaults[owner]
	if !ok {
		return 0, ErrConfigNotFound
	}

	for _, a := range m.alerts[owner] {
		if a.Contact != contact {
			continue
		}
		if a.Approved {
			return 0, ErrAlreadyApproved
		}
		now := time.Now()
		a.Approved = true
		a.ApprovedAt = &now
		v.Approvals++
		v.UpdatedAt = now
		return v.Approvals, nil
	}
	return 0, ErrNotAContact
}

func (m *MemoryStore) ListAlerts(ctx context.Context, owner string) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.alerts[owner]
	out := make([]*Alert, len(records))
	for i, a := range records {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) GetAlert(ctx context.Context, owner, contact string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.alerts[owner] {
		if a.Contact == contact {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotAContact
}

func copyConfig(cfg *Config) *Config {
	cp := *cfg
	cp.TriggerHash = append([]byte(nil), cfg.TriggerHash...)
	cp.Contacts = append([]string(nil), cfg.Contacts...)
	return &cp
}
