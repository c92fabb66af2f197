// Package guardian watches wallet balance telemetry and raises alerts when
// movement looks like a drain in progress. Each watched wallet runs as an
// independent sequential actor: push observations and fallback polls funnel
// into one goroutine per wallet, so risk arithmetic never races.
//
// When a score crosses the critical threshold and auto-trigger is armed,
// the guardian invokes the panic cascade itself. It never retries a failed
// autonomous trigger; a wallet that is already being drained must not see
// repeated fund-movement attempts.
package guardian

import (
	"context"
	"math/big"
	"time"

	"github.com/minitoshi/scream/internal/coin"
)

// CriticalScore is the risk score at or above which an alert is critical
// and auto-trigger fires.
const CriticalScore = 80

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Sample is one observed balance change. Samples live only inside the
// watcher's sliding window and are never persisted.
type Sample struct {
	At         time.Time
	Delta      *big.Int
	NewBalance *big.Int
}

// Config holds the per-wallet monitoring settings.
type Config struct {
	Address string
	// DropThreshold is the drop percentage considered a full-magnitude event.
	DropThreshold float64
	// RapidWindow bounds the sliding sample window.
	RapidWindow time.Duration
	// RapidLimit is the outflow count within the window that maxes the
	// rapid-succession factor.
	RapidLimit   int
	PollInterval time.Duration
	// AutoTrigger arms autonomous cascade invocation. Requires Secret and
	// Aggressor to be set.
	AutoTrigger bool
	Aggressor   string
	Secret      string
}

// Alert is a structured threat notification.
type Alert struct {
	Address     string    `json:"address"`
	Severity    Severity  `json:"severity"`
	Score       int       `json:"score"`
	Delta       string    `json:"delta"`
	NewBalance  string    `json:"newBalance"`
	DropPercent float64   `json:"dropPercent"`
	Outflows    int       `json:"outflows"`
	At          time.Time `json:"at"`
}

// Alerter receives threat alerts. Delivery failures must not block the
// decision loop; implementations log and move on.
type Alerter interface {
	ThreatAlert(ctx context.Context, alert Alert)
}

// Triggerer invokes the panic cascade on behalf of the guardian.
type Triggerer interface {
	Trigger(ctx context.Context, owner string, secret []byte, aggressor string) error
}

// BalanceSource reads the current balance of an address.
type BalanceSource interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// Score computes the risk score for a negative balance delta as the sum of
// four independently-capped factors, clamped to 100.
//
// old and new are balances in base units; outflows is the number of
// negative-delta samples currently inside the window (including this one).
func Score(old, newBalance *big.Int, outflows int, dropThreshold float64, rapidLimit int) int {
	if old.Sign() <= 0 {
		return 0
	}
	oldUnits := coin.Units(old)
	newUnits := coin.Units(newBalance)
	droppedUnits := oldUnits - newUnits
	dropPercent := droppedUnits / oldUnits * 100

	score := 0

	// Magnitude of drop: 0-40.
	if dropPercent >= dropThreshold {
		score += 40
	} else {
		score += int(dropPercent / dropThreshold * 30)
	}

	// Absolute value: 0-20.
	switch {
	case droppedUnits >= 10:
		score += 20
	case droppedUnits >= 1:
		score += 10
	default:
		score += 5
	}

	// Rapid succession: 0-25.
	switch {
	case outflows >= rapidLimit:
		score += 25
	case outflows >= 2:
		score += 15
	}

	// Near-total drain: 0-15.
	remainingPercent := newUnits / oldUnits * 100
	switch {
	case remainingPercent < 5:
		score += 15
	case remainingPercent < 20:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// DropPercent returns the percentage drop from old to new, 0 when old is
// zero or the delta is non-negative.
func DropPercent(old, newBalance *big.Int) float64 {
	if old.Sign() <= 0 || newBalance.Cmp(old) >= 0 {
		return 0
	}
	oldUnits := coin.Units(old)
	return (oldUnits - coin.Units(newBalance)) / oldUnits * 100
}
