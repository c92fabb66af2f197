// Package coin provides shared amount parsing and formatting utilities.
//
// The native coin uses 9 decimal places. All amounts are stored as big.Int
// in the smallest base unit (1 coin = 1,000,000,000 base units).
package coin

import (
	"math/big"
	"regexp"
	"strings"
)

const Decimals = 9

// validAmount checks that a string is a plain positive decimal number.
var validAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// IsValid reports whether s is a well-formed non-negative decimal amount.
func IsValid(s string) bool {
	return validAmount.MatchString(strings.TrimSpace(s))
}

// Parse converts a decimal string (e.g. "1.5") to its base-unit big.Int
// representation (1500000000). Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 9 decimal places
func Parse(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	return result, ok
}

// Format converts a base-unit big.Int to a human-readable decimal string
// with exactly 9 decimal places (e.g. "1.500000000").
func Format(amount *big.Int) string {
	if amount == nil {
		return "0.000000000"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// Units converts a base-unit big.Int to whole coins as float64.
// Intended for risk-scoring arithmetic, not for ledger math.
func Units(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e9),
	).Float64()
	return f
}
