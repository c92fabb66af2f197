// Package cascade executes the duress-trigger cascade: one verified secret
// sweeps the owner's holdings into the vault, pays the decoy, time-locks the
// vault, alerts every contact, and flags both parties in the registry.
//
// The cascade is all-or-nothing. Every failure mode is checked before the
// first ledger write, while holding the per-owner lock; an unexpected store
// failure mid-cascade rolls the ledger movements back.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/minitoshi/scream/internal/coin"
	"github.com/minitoshi/scream/internal/idgen"
	"github.com/minitoshi/scream/internal/ledger"
	"github.com/minitoshi/scream/internal/metrics"
	"github.com/minitoshi/scream/internal/protection"
	"github.com/minitoshi/scream/internal/registry"
	"github.com/minitoshi/scream/internal/seeds"
	"github.com/minitoshi/scream/internal/syncutil"
	"github.com/minitoshi/scream/internal/traces"
)

var (
	// ErrAggressorRequired is returned when a trigger request names no aggressor.
	ErrAggressorRequired = errors.New("aggressor address is required")

	// ErrCascadeFailed marks an infrastructure failure mid-cascade, as
	// opposed to a validation rejection.
	ErrCascadeFailed = errors.New("cascade failed")
)

// Event types published after a successful cascade.
const (
	EventPanicTriggered = "panic_triggered"
	EventContactAlerted = "contact_alerted"
)

// Publisher receives cascade events for delivery to webhooks and
// realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Request carries the inputs of a trigger attempt. Secret is the plaintext
// duress secret; it is verified against the stored digest and discarded.
type Request struct {
	Owner     string
	Secret    []byte
	Aggressor string
	// Contacts, when non-empty, must match the configured contact set.
	// Lets a caller assert it is alerting the people the owner chose.
	Contacts []string
}

// Result describes what a completed cascade did.
type Result struct {
	Owner            string `json:"owner"`
	Swept            string `json:"swept"`
	DecoySent        string `json:"decoySent"`
	LockedUntil      int64  `json:"lockedUntil"`
	ContactsAlerted  int    `json:"contactsAlerted"`
	AggressorFlagged bool   `json:"aggressorFlagged"`
}

// Executor runs trigger cascades.
type Executor struct {
	ledger     *ledger.Ledger
	protection protection.Store
	registry   registry.Store
	locks      *syncutil.ShardedMutex
	keepBack   string // balance left in the owner account after the sweep
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithKeepBack sets the amount left behind in the owner account so the
// wallet does not look visibly drained to zero.
func WithKeepBack(amount string) Option {
	return func(e *Executor) { e.keepBack = amount }
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(e *Executor) { e.publisher = p }
}

// NewExecutor creates a cascade executor. locks must be the same sharded
// mutex used by the protection service so same-owner operations serialize.
func NewExecutor(lgr *ledger.Ledger, ps protection.Store, rs registry.Store, locks *syncutil.ShardedMutex, opts ...Option) *Executor {
	e := &Executor{
		ledger:     lgr,
		protection: ps,
		registry:   rs,
		locks:      locks,
		keepBack:   "0.01",
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the cascade for one trigger attempt.
//
// Write order: sweep, decoy, then the atomic state flip (triggered flag,
// time-lock, alerts). The flip lands last so a mid-cascade crash leaves the
// config un-triggered and the attempt retryable after compensation.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	owner := norm(req.Owner)
	aggressor := norm(req.Aggressor)

	ctx, span := traces.StartSpan(ctx, "cascade.execute", traces.Owner(owner))
	defer span.End()

	unlock := e.locks.Lock(owner)
	defer unlock()

	cfg, err := e.protection.GetConfig(ctx, owner)
	if err != nil {
		return nil, e.rejected(owner, err)
	}
	if !seeds.VerifyTrigger(req.Secret, cfg.TriggerHash) {
		return nil, e.rejected(owner, protection.ErrInvalidTrigger)
	}
	if cfg.Triggered {
		return nil, e.rejected(owner, protection.ErrAlreadyTriggered)
	}
	if aggressor == "" {
		return nil, e.rejected(owner, ErrAggressorRequired)
	}
	if len(req.Contacts) > 0 && !contactsMatch(req.Contacts, cfg.Contacts) {
		return nil, e.rejected(owner, protection.ErrContactMismatch)
	}

	v, err := e.protection.GetVault(ctx, owner)
	if err != nil {
		return nil, e.rejected(owner, err)
	}

	decoy, err := e.planDecoy(ctx, owner, v.Address, cfg.DecoyAmount)
	if err != nil {
		return nil, e.rejected(owner, err)
	}

	// Validation is done; everything past this point writes.
	swept, err := e.ledger.Sweep(ctx, owner, v.Address, e.keepBack, "panic_sweep")
	if err != nil {
		return nil, e.failed(owner, fmt.Errorf("sweep: %w", err))
	}

	decoyStr := coin.Format(decoy)
	if decoy.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, v.Address, aggressor, decoyStr, "panic_decoy"); err != nil {
			e.compensate(ctx, owner, v.Address, swept, "", aggressor)
			return nil, e.failed(owner, fmt.Errorf("decoy transfer: %w", err))
		}
	}

	now := e.now()
	lockedUntil := now.Unix() + cfg.TimeLockSeconds
	alerts := make([]*protection.Alert, len(cfg.Contacts))
	for i, c := range cfg.Contacts {
		alerts[i] = &protection.Alert{
			ID:        seeds.AlertID(owner, c),
			Owner:     owner,
			Contact:   c,
			AlertedAt: now,
		}
	}

	if err := e.protection.MarkTriggered(ctx, owner, lockedUntil, alerts); err != nil {
		e.compensate(ctx, owner, v.Address, swept, decoyStr, aggressor)
		return nil, e.failed(owner, fmt.Errorf("mark triggered: %w", err))
	}

	flagged := e.writeFlags(ctx, owner, aggressor, now)

	metrics.CascadesTotal.WithLabelValues("executed").Inc()
	e.logger.Warn("panic cascade executed",
		"owner", owner,
		"swept", swept,
		"decoy", decoyStr,
		"locked_until", lockedUntil,
		"contacts_alerted", len(alerts),
	)

	result := &Result{
		Owner:            owner,
		Swept:            swept,
		DecoySent:        decoyStr,
		LockedUntil:      lockedUntil,
		ContactsAlerted:  len(alerts),
		AggressorFlagged: flagged,
	}
	e.publish(ctx, result, cfg.Contacts)
	return result, nil
}

// planDecoy computes the decoy payment: the configured amount clamped to
// what the vault will hold once the sweep lands. An empty post-sweep vault
// cannot fund any decoy, which would make the trigger obvious.
func (e *Executor) planDecoy(ctx context.Context, owner, vaultAddr, decoyAmount string) (*big.Int, error) {
	ownerAvail, err := e.ledger.Spendable(ctx, owner)
	if err != nil {
		return nil, err
	}
	vaultAvail, err := e.ledger.Spendable(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}

	keep, _ := coin.Parse(e.keepBack)
	sweepable := new(big.Int).Sub(ownerAvail, keep)
	if sweepable.Sign() < 0 {
		sweepable.SetInt64(0)
	}

	postSweep := new(big.Int).Add(vaultAvail, sweepable)
	if postSweep.Sign() == 0 {
		return nil, protection.ErrInsufficientDecoy
	}

	decoy, _ := coin.Parse(decoyAmount)
	if decoy.Cmp(postSweep) > 0 {
		decoy = postSweep
	}
	return decoy, nil
}

// compensate reverses the ledger movements of a cascade that could not
// complete its state flip.
func (e *Executor) compensate(ctx context.Context, owner, vaultAddr, swept, decoy, aggressor string) {
	if decoy != "" {
		if amt, _ := coin.Parse(decoy); amt != nil && amt.Sign() > 0 {
			if err := e.ledger.Transfer(ctx, aggressor, vaultAddr, decoy, "panic_compensation"); err != nil {
				e.logger.Error("decoy compensation failed", "owner", owner, "amount", decoy, "error", err)
			}
		}
	}
	if amt, _ := coin.Parse(swept); amt != nil && amt.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, vaultAddr, owner, swept, "panic_compensation"); err != nil {
			e.logger.Error("sweep compensation failed", "owner", owner, "amount", swept, "error", err)
		}
	}
}

// writeFlags records the registry flags. The cascade has already committed,
// so flag failures are logged rather than unwound; both writes are
// idempotent and safe to repair out of band.
func (e *Executor) writeFlags(ctx context.Context, owner, aggressor string, now time.Time) bool {
	created, err := e.registry.FlagAggressor(ctx, &registry.AggressorFlag{
		ID:         idgen.WithPrefix("agg"),
		Address:    aggressor,
		ReportedBy: owner,
		FlaggedAt:  now,
	})
	if err != nil {
		e.logger.Error("aggressor flag write failed", "aggressor", aggressor, "error", err)
	}

	err = e.registry.FlagCompromised(ctx, &registry.CompromisedFlag{
		ID:        idgen.WithPrefix("comp"),
		Owner:     owner,
		FlaggedAt: now,
	})
	if err != nil && !errors.Is(err, registry.ErrAlreadyCompromised) {
		e.logger.Error("compromised flag write failed", "owner", owner, "error", err)
	}
	return created
}

func (e *Executor) publish(ctx context.Context, result *Result, contacts []string) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ctx, EventPanicTriggered, result)
	for _, c := range contacts {
		e.publisher.Publish(ctx, EventContactAlerted, map[string]any{
			"owner":   result.Owner,
			"contact": c,
			"alertId": seeds.AlertID(result.Owner, c),
		})
	}
}

func (e *Executor) rejected(owner string, err error) error {
	metrics.CascadesTotal.WithLabelValues("rejected").Inc()
	e.logger.Warn("panic trigger rejected", "owner", owner, "reason", err)
	return err
}

func (e *Executor) failed(owner string, err error) error {
	metrics.CascadesTotal.WithLabelValues("failed").Inc()
	e.logger.Error("panic cascade failed", "owner", owner, "error", err)
	return errors.Join(ErrCascadeFailed, err)
}

func contactsMatch(supplied, configured []string) bool {
	if len(supplied) != len(configured) {
		return false
	}
	set := make(map[string]bool, len(configured))
	for _, c := range configured {
		set[c] = true
	}
	for _, c := range supplied {
		if !set[norm(c)] {
			return false
		}
	}
	return true
}

func norm(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
