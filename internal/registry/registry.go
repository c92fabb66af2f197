// Package registry keeps the public flag records written by the trigger
// cascade: aggressor flags on the address that coerced a trigger, and
// compromised flags on the owner wallet itself.
//
// The registry is append-only. Flags are never deleted; a compromised flag
// can be marked resolved after a successful recovery, but the record stays.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyCompromised = errors.New("wallet is already flagged compromised")
	ErrFlagNotFound       = errors.New("flag not found")
)

// AggressorFlag marks an address reported as the coercing party of a
// duress trigger. Repeat reports of the same address are collapsed into
// the first record.
type AggressorFlag struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	ReportedBy string    `json:"reportedBy"`
	FlaggedAt  time.Time `json:"flaggedAt"`
}

// CompromisedFlag marks an owner wallet as compromised. Set once by the
// cascade; Resolved flips after the owner completes recovery and claims.
type CompromisedFlag struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	FlaggedAt time.Time `json:"flaggedAt"`
	Resolved  bool      `json:"resolved"`
}

// Store persists flag records.
type Store interface {
	// FlagAggressor records an aggressor flag. Returns created=false if the
	// address was already flagged; that is not an error.
	FlagAggressor(ctx context.Context, flag *AggressorFlag) (created bool, err error)
	GetAggressor(ctx context.Context, address string) (*AggressorFlag, error)
	ListAggressors(ctx context.Context, limit int) ([]*AggressorFlag, error)
	// FlagCompromised records a compromised flag for an owner. Fails with
	// ErrAlreadyCompromised on repeat.
	FlagCompromised(ctx context.Context, flag *CompromisedFlag) error
	GetCompromised(ctx context.Context, owner string) (*CompromisedFlag, error)
	// ResolveCompromised marks an owner's flag resolved.
	ResolveCompromised(ctx context.Context, owner string) error
	ListCompromised(ctx context.Context, limit int) ([]*CompromisedFlag, error)
}
