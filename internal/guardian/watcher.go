package guardian

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/minitoshi/scream/internal/coin"
	"github.com/minitoshi/scream/internal/metrics"
)

// Watcher observes one wallet. All state below the events channel is
// touched only by the run goroutine.
type Watcher struct {
	cfg       Config
	source    BalanceSource
	alerter   Alerter
	triggerer Triggerer
	logger    *slog.Logger
	now       func() time.Time

	events chan *big.Int
	done   chan struct{}

	lastBalance *big.Int
	samples     []Sample
	alertCount  int
	// triggerAttempted latches after the first autonomous trigger attempt,
	// successful or not. No retries.
	triggerAttempted bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets a structured logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithWatcherClock overrides the time source (used in tests).
func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) { w.now = now }
}

// NewWatcher creates a watcher for one wallet. triggerer may be nil when
// auto-trigger is disabled.
func NewWatcher(cfg Config, source BalanceSource, alerter Alerter, triggerer Triggerer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		cfg:       cfg,
		source:    source,
		alerter:   alerter,
		triggerer: triggerer,
		logger:    slog.Default(),
		now:       time.Now,
		events:    make(chan *big.Int, 16),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("wallet", cfg.Address)
	return w
}

// Start launches the watch loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	metrics.WatchedWallets.Inc()
	go w.run(ctx)
}

// Observe pushes a balance observation into the decision loop. Non-blocking;
// if the watcher is backed up, the poll loop will catch the change instead.
func (w *Watcher) Observe(balance *big.Int) {
	select {
	case w.events <- new(big.Int).Set(balance):
	default:
	}
}

// Done is closed when the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer metrics.WatchedWallets.Dec()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("guardian watching",
		"drop_threshold", w.cfg.DropThreshold,
		"rapid_window", w.cfg.RapidWindow,
		"poll_interval", w.cfg.PollInterval,
		"auto_trigger", w.cfg.AutoTrigger,
	)

	// Seed the baseline so the first real change produces a delta.
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("guardian stopped", "alerts", w.alertCount)
			return
		case balance := <-w.events:
			w.handle(ctx, balance)
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	balance, err := w.source.Balance(ctx, w.cfg.Address)
	if err != nil {
		w.logger.Warn("balance poll failed", "error", err)
		return
	}
	w.handle(ctx, balance)
}

func (w *Watcher) handle(ctx context.Context, balance *big.Int) {
	if w.lastBalance == nil {
		w.lastBalance = balance
		return
	}

	old := w.lastBalance
	delta := new(big.Int).Sub(balance, old)
	if delta.Sign() == 0 {
		return
	}
	w.lastBalance = balance

	now := w.now()
	w.samples = append(w.samples, Sample{At: now, Delta: delta, NewBalance: balance})
	w.prune(now)

	if delta.Sign() > 0 {
		w.logger.Info("deposit observed", "amount", coin.Format(delta), "balance", coin.Format(balance))
		return
	}

	outflows := 0
	for _, s := range w.samples {
		if s.Delta.Sign() < 0 {
			outflows++
		}
	}

	score := Score(old, balance, outflows, w.cfg.DropThreshold, w.cfg.RapidLimit)
	metrics.GuardianRiskScore.Observe(float64(score))

	severity := SeverityWarning
	if score >= CriticalScore {
		severity = SeverityCritical
	}
	metrics.GuardianAlertsTotal.WithLabelValues(string(severity)).Inc()
	w.alertCount++

	alert := Alert{
		Address:     w.cfg.Address,
		Severity:    severity,
		Score:       score,
		Delta:       coin.Format(delta),
		NewBalance:  coin.Format(balance),
		DropPercent: DropPercent(old, balance),
		Outflows:    outflows,
		At:          now,
	}

	w.logger.Warn("outflow observed",
		"severity", severity,
		"score", score,
		"delta", alert.Delta,
		"balance", alert.NewBalance,
		"outflows", outflows,
	)
	if w.alerter != nil {
		w.alerter.ThreatAlert(ctx, alert)
	}

	if severity == SeverityCritical {
		w.autoTrigger(ctx)
	}
}

func (w *Watcher) autoTrigger(ctx context.Context) {
	if !w.cfg.AutoTrigger || w.cfg.Secret == "" || w.triggerer == nil {
		return
	}
	if w.triggerAttempted {
		return
	}
	w.triggerAttempted = true

	w.logger.Warn("invoking panic cascade autonomously", "aggressor", w.cfg.Aggressor)
	if err := w.triggerer.Trigger(ctx, w.cfg.Address, []byte(w.cfg.Secret), w.cfg.Aggressor); err != nil {
		// Not retried: repeated fund-movement attempts against a wallet
		// already under drain are worse than a missed trigger.
		w.logger.Error("autonomous trigger failed", "error", err)
		return
	}
	w.logger.Warn("autonomous trigger executed")
}

func (w *Watcher) prune(now time.Time) {
	cutoff := now.Add(-w.cfg.RapidWindow)
	kept := w.samples[:0]
	for _, s := range w.samples {
		if s.At.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.samples = kept
}
