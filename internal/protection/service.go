package protection

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/minitoshi/scream/internal/coin"
	"github.com/minitoshi/scream/internal/ledger"
	"github.com/minitoshi/scream/internal/metrics"
	"github.com/minitoshi/scream/internal/seeds"
	"github.com/minitoshi/scream/internal/syncutil"
)

// Publisher receives lifecycle events for fan-out to webhooks and
// real-time subscribers. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Service implements the owner-facing operations of the state machine:
// setup, deposit, recovery initiation, contact approval, and claim.
// The trigger cascade lives in the cascade package.
type Service struct {
	store     Store
	ledger    *ledger.Ledger
	locks     *syncutil.ShardedMutex
	reserve   string // minimum balance the vault retains through a claim
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithVaultReserve sets the claim reserve.
func WithVaultReserve(reserve string) Option {
	return func(s *Service) { s.reserve = reserve }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates the protection service. locks must be the same
// sharded mutex used by the cascade executor so that same-owner operations
// serialize across both.
func NewService(store Store, lgr *ledger.Ledger, locks *syncutil.ShardedMutex, opts ...Option) *Service {
	s := &Service{
		store:   store,
		ledger:  lgr,
		locks:   locks,
		reserve: "0.001",
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read-only collaborators.
func (s *Service) Store() Store { return s.store }

// SetupRequest carries the inputs of the setup operation. TriggerHash is
// the hex-encoded SHA-256 digest of the duress secret; the plaintext never
// crosses this boundary.
type SetupRequest struct {
	Owner             string
	TriggerHash       string
	Contacts          []string
	RecoveryThreshold int
	TimeLockSeconds   int64
	DecoyAmount       string
}

// Setup arms protection for an owner. Fails if the owner already has a
// Config/Vault pair; there is no re-initialization path.
func (s *Service) Setup(ctx context.Context, req SetupRequest) (*Config, *Vault, error) {
	owner := norm(req.Owner)

	hash, ok := seeds.DecodeHash(req.TriggerHash)
	if !ok {
		return nil, nil, ErrInvalidTrigger
	}

	if len(req.Contacts) == 0 {
		return nil, nil, ErrNoContacts
	}
	if len(req.Contacts) > MaxContacts {
		return nil, nil, ErrTooManyContacts
	}
	contacts := make([]string, len(req.Contacts))
	seen := make(map[string]bool, len(req.Contacts))
	for i, c := range req.Contacts {
		c = norm(c)
		if seen[c] {
			return nil, nil, ErrDuplicateContact
		}
		seen[c] = true
		contacts[i] = c
	}

	if req.RecoveryThreshold < 1 || req.RecoveryThreshold > len(contacts) {
		return nil, nil, ErrInvalidThreshold
	}
	if req.TimeLockSeconds < 0 {
		return nil, nil, ErrInvalidTimeLock
	}
	if !coin.IsValid(req.DecoyAmount) {
		return nil, nil, ledger.ErrInvalidAmount
	}

	unlock := s.locks.Lock(owner)
	defer unlock()

	now := s.now()
	cfg := &Config{
		Owner:             owner,
		TriggerHash:       hash,
		Contacts:          contacts,
		RecoveryThreshold: req.RecoveryThreshold,
		TimeLockSeconds:   req.TimeLockSeconds,
		DecoyAmount:       req.DecoyAmount,
		Triggered:         false,
		CreatedAt:         now,
	}
	v := &Vault{
		Owner:     owner,
		Address:   seeds.VaultAddress(owner),
		UpdatedAt: now,
	}

	if err := s.store.CreateConfig(ctx, cfg, v); err != nil {
		return nil, nil, err
	}

	s.logger.Info("protection armed",
		"owner", owner,
		"contacts", len(contacts),
		"threshold", req.RecoveryThreshold,
		"time_lock_seconds", req.TimeLockSeconds,
	)
	s.publish(ctx, "protection_armed", map[string]any{
		"owner":     owner,
		"vault":     v.Address,
		"contacts":  len(contacts),
		"threshold": req.RecoveryThreshold,
	})
	return cfg, v, nil
}

// Deposit moves a positive amount from the owner's holdings into the vault.
func (s *Service) Deposit(ctx context.Context, owner, amount string) error {
	owner = norm(owner)

	unlock := s.locks.Lock(owner)
	defer unlock()

	v, err := s.store.GetVault(ctx, owner)
	if err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, owner, v.Address, amount, "vault_deposit"); err != nil {
		return err
	}

	s.logger.Info("vault deposit", "owner", owner, "amount", amount)
	s.publish(ctx, "vault_deposit", map[string]any{"owner": owner, "amount": amount})
	return nil
}

// InitiateRecovery starts the recovery process after the time-lock has
// elapsed. It resets the approval count so contacts approve the current
// attempt, not a stale one.
func (s *Service) InitiateRecovery(ctx context.Context, owner string) error {
	owner = norm(owner)

	unlock := s.locks.Lock(owner)
	defer unlock()

	cfg, err := s.store.GetConfig(ctx, owner)
	if err != nil {
		return err
	}
	if !cfg.Triggered {
		return ErrNotTriggered
	}

	v, err := s.store.GetVault(ctx, owner)
	if err != nil {
		return err
	}
	if v.RecoveryInitiated {
		return ErrRecoveryAlreadyInitiated
	}
	if s.now().Unix() < v.LockedUntil {
		return ErrTimeLockActive
	}

	if err := s.store.InitiateRecovery(ctx, owner); err != nil {
		return err
	}

	s.logger.Info("recovery initiated", "owner", owner)
	s.publish(ctx, "recovery_initiated", map[string]any{"owner": owner})
	return nil
}

// ApproveRecovery records a contact's approval. Each contact approves at
// most once per cascade.
func (s *Service) ApproveRecovery(ctx context.Context, owner, contact string) (approvals, threshold int, err error) {
	owner, contact = norm(owner), norm(contact)

	unlock := s.locks.Lock(owner)
	defer unlock()

	cfg, err := s.store.GetConfig(ctx, owner)
	if err != nil {
		return 0, 0, err
	}
	if !cfg.Triggered {
		return 0, 0, ErrNotTriggered
	}
	if !cfg.IsContact(contact) {
		return 0, 0, ErrNotAContact
	}

	v, err := s.store.GetVault(ctx, owner)
	if err != nil {
		return 0, 0, err
	}
	if !v.RecoveryInitiated {
		return 0, 0, ErrRecoveryNotInitiated
	}

	count, err := s.store.Approve(ctx, owner, contact)
	if err != nil {
		return 0, 0, err
	}

	metrics.RecoveryApprovalsTotal.Inc()
	s.logger.Info("recovery approved",
		"owner", owner,
		"contact", contact,
		"approvals", count,
		"threshold", cfg.RecoveryThreshold,
	)
	s.publish(ctx, "recovery_approved", map[string]any{
		"owner":     owner,
		"contact":   contact,
		"approvals": count,
		"threshold": cfg.RecoveryThreshold,
	})
	return count, cfg.RecoveryThreshold, nil
}

// Claim releases the vault balance (minus the reserve) back to the owner.
// Requires an initiated recovery, a met threshold, and an elapsed time-lock.
// A second claim finds nothing spendable and returns zero without error.
func (s *Service) Claim(ctx context.Context, owner string) (string, error) {
	owner = norm(owner)

	unlock := s.locks.Lock(owner)
	defer unlock()

	cfg, err := s.store.GetConfig(ctx, owner)
	if err != nil {
		return "", err
	}
	if !cfg.Triggered {
		return "", ErrNotTriggered
	}

	v, err := s.store.GetVault(ctx, owner)
	if err != nil {
		return "", err
	}
	if !v.RecoveryInitiated {
		return "", ErrRecoveryNotInitiated
	}
	if v.Approvals < cfg.RecoveryThreshold {
		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		return "", ErrInsufficientApprovals
	}
	if s.now().Unix() < v.LockedUntil {
		metrics.ClaimsTotal.WithLabelValues("rejected").Inc()
		return "", ErrTimeLockActive
	}

	claimed, err := s.ledger.Sweep(ctx, v.Address, owner, s.reserve, "vault_claim")
	if err != nil {
		metrics.ClaimsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
	s.logger.Info("vault claimed", "owner", owner, "amount", claimed)
	s.publish(ctx, "vault_claimed", map[string]any{"owner": owner, "amount": claimed})
	return claimed, nil
}

// StatusView is the read model for an owner's protection state.
type StatusView struct {
	Config       *Config  `json:"config"`
	Vault        *Vault   `json:"vault"`
	VaultBalance string   `json:"vaultBalance"`
	State        State    `json:"state"`
	Alerts       []*Alert `json:"alerts,omitempty"`
}

// Status assembles the combined view of config, vault, balance, and state.
func (s *Service) Status(ctx context.Context, owner string) (*StatusView, error) {
	owner = norm(owner)

	cfg, err := s.store.GetConfig(ctx, owner)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVault(ctx, owner)
	if err != nil {
		return nil, err
	}

	bal, err := s.ledger.GetBalance(ctx, v.Address)
	if err != nil {
		return nil, err
	}

	avail, _ := coin.Parse(bal.Available)
	reserve, _ := coin.Parse(s.reserve)
	vaultEmpty := avail.Cmp(reserve) <= 0

	view := &StatusView{
		Config:       cfg,
		Vault:        v,
		VaultBalance: bal.Available,
		State:        DeriveState(cfg, v, vaultEmpty),
	}
	if cfg.Triggered {
		view.Alerts, err = s.store.ListAlerts(ctx, owner)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Alerts returns the alert records for a triggered owner.
func (s *Service) Alerts(ctx context.Context, owner string) ([]*Alert, error) {
	return s.store.ListAlerts(ctx, norm(owner))
}

func (s *Service) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, eventType, payload)
	}
}

func norm(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
