// Package protection holds the per-owner duress-protection state machine.
//
// Each protected owner has exactly one Config/Vault pair. The pair moves
// through a one-way lifecycle:
//
//	armed -> triggered_locked -> recovery_pending -> recovery_approved -> claimed
//
// The triggered flag only ever flips false->true; the time-lock is set once,
// at trigger time; contacts approve at most once each. Nothing in this
// package ever exposes or persists the plaintext trigger secret.
package protection

import (
	"context"
	"errors"
	"time"
)

// MaxContacts is the maximum number of emergency contacts per owner.
const MaxContacts = 5

var (
	ErrConfigNotFound           = errors.New("protection config not found")
	ErrAlreadyConfigured        = errors.New("protection config already exists")
	ErrInvalidTrigger           = errors.New("invalid trigger: hash does not match")
	ErrAlreadyTriggered         = errors.New("panic has already been triggered")
	ErrNotTriggered             = errors.New("panic has not been triggered")
	ErrTimeLockActive           = errors.New("time-lock has not expired")
	ErrRecoveryNotInitiated     = errors.New("recovery has not been initiated")
	ErrRecoveryAlreadyInitiated = errors.New("recovery has already been initiated")
	ErrInsufficientApprovals    = errors.New("insufficient approvals for recovery")
	ErrNotAContact              = errors.New("caller is not an emergency contact")
	ErrAlreadyApproved          = errors.New("contact has already approved")
	ErrContactMismatch          = errors.New("supplied contacts do not match config")
	ErrNoContacts               = errors.New("at least one contact is required")
	ErrTooManyContacts          = errors.New("too many contacts")
	ErrDuplicateContact         = errors.New("contacts contain duplicates")
	ErrInvalidThreshold         = errors.New("recovery threshold out of range")
	ErrInvalidTimeLock          = errors.New("time-lock duration must be non-negative")
	ErrInsufficientDecoy        = errors.New("insufficient funds for decoy payment")
)

// Config is an owner's protection configuration. TriggerHash is the one-way
// digest of the duress secret; the secret itself is never stored.
type Config struct {
	Owner             string    `json:"owner"`
	TriggerHash       []byte    `json:"-"`
	Contacts          []string  `json:"contacts"`
	RecoveryThreshold int       `json:"recoveryThreshold"`
	TimeLockSeconds   int64     `json:"timeLockSeconds"`
	DecoyAmount       string    `json:"decoyAmount"`
	Triggered         bool      `json:"triggered"`
	CreatedAt         time.Time `json:"createdAt"`
}

// IsContact reports whether addr is one of the config's contacts.
func (c *Config) IsContact(addr string) bool {
	for _, contact := range c.Contacts {
		if contact == addr {
			return true
		}
	}
	return false
}

// Vault is the custody record paired 1:1 with a Config. The coin balance
// itself lives in the ledger under Vault.Address.
type Vault struct {
	Owner             string    `json:"owner"`
	Address           string    `json:"address"`
	LockedUntil       int64     `json:"lockedUntil"` // unix seconds, 0 = not locked
	RecoveryInitiated bool      `json:"recoveryInitiated"`
	Approvals         int       `json:"approvals"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Alert is the per-(owner, contact) notification record created by the
// cascade. A contact approves recovery through their alert, at most once.
type Alert struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Contact    string     `json:"contact"`
	AlertedAt  time.Time  `json:"alertedAt"`
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// State is the combined lifecycle state of a Config/Vault pair.
type State string

const (
	StateArmed            State = "armed"
	StateTriggeredLocked  State = "triggered_locked"
	StateRecoveryPending  State = "recovery_pending"
	StateRecoveryApproved State = "recovery_approved"
	StateClaimed          State = "claimed"
)

// DeriveState computes the lifecycle state. vaultEmpty reports whether the
// vault's spendable balance (above its reserve) is zero.
func DeriveState(cfg *Config, v *Vault, vaultEmpty bool) State {
	switch {
	case !cfg.Triggered:
		return StateArmed
	case !v.RecoveryInitiated:
		return StateTriggeredLocked
	case v.Approvals < cfg.RecoveryThreshold:
		return StateRecoveryPending
	case vaultEmpty:
		return StateClaimed
	default:
		return StateRecoveryApproved
	}
}

// Store persists protection state.
//
// MarkTriggered and Approve are check-then-set within the store so that the
// triggered flag and approval counters cannot race: the check and the write
// land in the same atomic unit.
type Store interface {
	// CreateConfig stores a new Config/Vault pair. Fails with
	// ErrAlreadyConfigured if the owner already has one.
	CreateConfig(ctx context.Context, cfg *Config, v *Vault) error
	GetConfig(ctx context.Context, owner string) (*Config, error)
	GetVault(ctx context.Context, owner string) (*Vault, error)
	// MarkTriggered flips triggered, sets the vault time-lock, and creates
	// the alert records in one atomic write. Fails with ErrAlreadyTriggered
	// if the config was triggered before.
	MarkTriggered(ctx context.Context, owner string, lockedUntil int64, alerts []*Alert) error
	// InitiateRecovery sets recoveryInitiated and resets the approval count.
	// Fails with ErrRecoveryAlreadyInitiated on repeat.
	InitiateRecovery(ctx context.Context, owner string) error
	// Approve marks the contact's alert approved and increments the vault's
	// approval count, returning the new count. Fails with ErrNotAContact if
	// no alert exists for the pair, ErrAlreadyApproved on repeat.
	Approve(ctx context.Context, owner, contact string) (int, error)
	ListAlerts(ctx context.Context, owner string) ([]*Alert, error)
	GetAlert(ctx context.Context, owner, contact string) (*Alert, error)
}
