package guardian

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/minitoshi/scream/internal/ledger"
)

// Manager owns the watcher set: one per watched wallet, fully independent.
type Manager struct {
	source    BalanceSource
	alerter   Alerter
	triggerer Triggerer
	logger    *slog.Logger

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager creates a watcher manager.
func NewManager(source BalanceSource, alerter Alerter, triggerer Triggerer, logger *slog.Logger) *Manager {
	return &Manager{
		source:    source,
		alerter:   alerter,
		triggerer: triggerer,
		logger:    logger,
		watchers:  make(map[string]*Watcher),
	}
}

// Watch starts a watcher for cfg.Address. Watching an already-watched
// address is a no-op.
func (m *Manager) Watch(ctx context.Context, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.watchers[cfg.Address]; exists {
		return
	}
	w := NewWatcher(cfg, m.source, m.alerter, m.triggerer, WithWatcherLogger(m.logger))
	m.watchers[cfg.Address] = w
	w.Start(ctx)
}

// Observe routes a push observation to the wallet's watcher, if any.
func (m *Manager) Observe(address string, balance *big.Int) {
	m.mu.Lock()
	w := m.watchers[address]
	m.mu.Unlock()
	if w != nil {
		w.Observe(balance)
	}
}

// Wait blocks until every watcher has exited. Call after cancelling the
// context passed to Watch.
func (m *Manager) Wait() {
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, w := range watchers {
		<-w.Done()
	}
}

// LedgerSource adapts the internal ledger as a BalanceSource, for embedded
// guardian mode where the watched balances live in this process.
type LedgerSource struct {
	Ledger *ledger.Ledger
}

func (s *LedgerSource) Balance(ctx context.Context, address string) (*big.Int, error) {
	return s.Ledger.Spendable(ctx, address)
}
