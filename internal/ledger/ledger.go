// Package ledger tracks coin balances for wallet addresses.
//
// Every address — owner holdings, derived vault accounts, aggressor
// addresses — is a ledger account. Accounts are created on first credit,
// so a transfer to a previously unseen address always succeeds.
package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/minitoshi/scream/internal/coin"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Entry represents a single ledger movement.
type Entry struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Type         string    `json:"type"` // deposit, transfer_out, transfer_in, sweep_out, sweep_in
	Amount       string    `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Balance represents an account's balance.
type Balance struct {
	Address   string    `json:"address"`
	Available string    `json:"available"`
	TotalIn   string    `json:"totalIn"`
	TotalOut  string    `json:"totalOut"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists account balances and movement entries.
//
// Transfer and SweepAll are atomic: either both sides move or neither does.
// Credit creates the destination account if it does not exist.
type Store interface {
	GetBalance(ctx context.Context, address string) (*Balance, error)
	Credit(ctx context.Context, address, amount, reference string) error
	Transfer(ctx context.Context, from, to, amount, reference string) error
	// SweepAll moves everything above keep from one account to another and
	// returns the swept amount ("0.000000000" if nothing was spendable).
	SweepAll(ctx context.Context, from, to, keep, reference string) (string, error)
	History(ctx context.Context, address string, limit int) ([]*Entry, error)
}

// Ledger validates amounts and normalizes addresses before hitting the store.
type Ledger struct {
	store Store
}

// New creates a ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetBalance returns an account's current balance. Unknown accounts report
// zero rather than an error.
func (l *Ledger) GetBalance(ctx context.Context, address string) (*Balance, error) {
	return l.store.GetBalance(ctx, norm(address))
}

// Deposit credits an account.
func (l *Ledger) Deposit(ctx context.Context, address, amount, reference string) error {
	amountBig, ok := coin.Parse(amount)
	if !ok || amountBig.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Credit(ctx, norm(address), amount, reference)
}

// Transfer moves amount between two accounts. The destination is created on
// first credit if it has never held a balance.
func (l *Ledger) Transfer(ctx context.Context, from, to, amount, reference string) error {
	amountBig, ok := coin.Parse(amount)
	if !ok || amountBig.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Transfer(ctx, norm(from), norm(to), amount, reference)
}

// Sweep moves the full spendable balance above keep from one account to
// another and returns the swept amount.
func (l *Ledger) Sweep(ctx context.Context, from, to, keep, reference string) (string, error) {
	if _, ok := coin.Parse(keep); !ok {
		return "", ErrInvalidAmount
	}
	return l.store.SweepAll(ctx, norm(from), norm(to), keep, reference)
}

// Spendable returns the available balance as a base-unit big.Int.
func (l *Ledger) Spendable(ctx context.Context, address string) (*big.Int, error) {
	bal, err := l.store.GetBalance(ctx, norm(address))
	if err != nil {
		return nil, err
	}
	avail, ok := coin.Parse(bal.Available)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return avail, nil
}

// History returns recent ledger entries for an account.
func (l *Ledger) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, norm(address), limit)
}

func norm(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
