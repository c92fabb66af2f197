package chain

import (
	"math/big"
	"testing"
)

func TestRescale(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{"18 to 9 decimals", big.NewInt(1_500_000_000_000_000_000), 18, "1500000000"},
		{"truncates sub-base precision", big.NewInt(1_999_999_999), 18, "1"},
		{"6 to 9 decimals", big.NewInt(2_500_000), 6, "2500000000"},
		{"same decimals", big.NewInt(42), 9, "42"},
		{"nil", nil, 18, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rescale(tt.amount, tt.decimals)
			if got.String() != tt.want {
				t.Errorf("Rescale() = %s, want %s", got, tt.want)
			}
		})
	}
}
