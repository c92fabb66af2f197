package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/minitoshi/scream/internal/coin"
	"github.com/minitoshi/scream/internal/idgen"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	balances map[string]*Balance
	entries  []*Entry
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*Balance),
		entries:  make([]*Entry, 0),
	}
}

func (m *MemoryStore) GetBalance(ctx context.Context, address string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if bal, ok := m.balances[address]; ok {
		cp := *bal
		return &cp, nil
	}
	return zeroBalance(address), nil
}

func (m *MemoryStore) Credit(ctx context.Context, address, amount, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credit(address, amount, reference, "deposit")
	return nil
}

func (m *MemoryStore) Transfer(ctx context.Context, from, to, amount, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.debit(from, to, amount, reference, "transfer_out"); err != nil {
		return err
	}
	m.creditFrom(to, from, amount, reference, "transfer_in")
	return nil
}

func (m *MemoryStore) SweepAll(ctx context.Context, from, to, keep, reference string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[from]
	if !ok {
		return coin.Format(big.NewInt(0)), nil
	}

	avail, _ := coin.Parse(bal.Available)
	keepBig, _ := coin.Parse(keep)
	swept := new(big.Int).Sub(avail, keepBig)
	if swept.Sign() <= 0 {
		return coin.Format(big.NewInt(0)), nil
	}

	amount := coin.Format(swept)
	if err := m.debit(from, to, amount, reference, "sweep_out"); err != nil {
		return "", err
	}
	m.creditFrom(to, from, amount, reference, "sweep_in")
	return amount, nil
}

func (m *MemoryStore) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Entry, 0, limit)
	// Newest first.
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Address == address {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

// credit and debit are the only mutation paths; callers hold the lock.

func (m *MemoryStore) credit(address, amount, reference, entryType string) {
	m.creditFrom(address, "", amount, reference, entryType)
}

func (m *MemoryStore) creditFrom(address, counterparty, amount, reference, entryType string) {
	bal, ok := m.balances[address]
	if !ok {
		bal = zeroBalance(address)
		m.balances[address] = bal
	}

	avail, _ := coin.Parse(bal.Available)
	total, _ := coin.Parse(bal.TotalIn)
	add, _ := coin.Parse(amount)

	avail.Add(avail, add)
	total.Add(total, add)

	bal.Available = coin.Format(avail)
	bal.TotalIn = coin.Format(total)
	bal.UpdatedAt = time.Now()

	m.entries = append(m.entries, &Entry{
		ID:           idgen.WithPrefix("entry_"),
		Address:      address,
		Type:         entryType,
		Amount:       amount,
		Counterparty: counterparty,
		Reference:    reference,
		CreatedAt:    time.Now(),
	})
}

func (m *MemoryStore) debit(address, counterparty, amount, reference, entryType string) error {
	bal, ok := m.balances[address]
	if !ok {
		return ErrAccountNotFound
	}

	avail, _ := coin.Parse(bal.Available)
	totalOut, _ := coin.Parse(bal.TotalOut)
	sub, _ := coin.Parse(amount)

	if avail.Cmp(sub) < 0 {
		return ErrInsufficientBalance
	}

	avail.Sub(avail, sub)
	totalOut.Add(totalOut, sub)

	bal.Available = coin.Format(avail)
	bal.TotalOut = coin.Format(totalOut)
	bal.UpdatedAt = time.Now()

	m.entries = append(m.entries, &Entry{
		ID:           idgen.WithPrefix("entry_"),
		Address:      address,
		Type:         entryType,
		Amount:       amount,
		Counterparty: counterparty,
		Reference:    reference,
		CreatedAt:    time.Now(),
	})
	return nil
}

func zeroBalance(address string) *Balance {
	return &Balance{
		Address:   address,
		Available: "0.000000000",
		TotalIn:   "0.000000000",
		TotalOut:  "0.000000000",
		UpdatedAt: time.Now(),
	}
}
