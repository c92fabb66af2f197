package coin

import (
	"math/big"
	"testing"
)

func TestParse_ValidAmounts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"one coin", "1.00", 1_000_000_000},
		{"half coin", "0.50", 500_000_000},
		{"hundred", "100", 100_000_000_000},
		{"smallest unit", "0.000000001", 1},
		{"whole and frac", "1.500000000", 1_500_000_000},
		{"no frac", "1", 1_000_000_000},
		{"short frac", "1.5", 1_500_000_000},
		{"decoy amount", "0.1", 100_000_000},
		{"nine decimals", "1.123456789", 1_123_456_789},
		{"leading zeros in whole", "007.50", 7_500_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) returned ok=false", tt.input)
			}
			if got.Int64() != tt.expected {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got.Int64(), tt.expected)
			}
		})
	}
}

func TestParse_InvalidAmounts(t *testing.T) {
	for _, input := range []string{"-1", "1.2.3", "abc", "1,5"} {
		if _, ok := Parse(input); ok {
			t.Errorf("Parse(%q) returned ok=true, want false", input)
		}
	}
}

func TestParse_EmptyString(t *testing.T) {
	got, ok := Parse("")
	if !ok {
		t.Fatal("Parse(\"\") returned ok=false")
	}
	if got.Sign() != 0 {
		t.Errorf("Parse(\"\") = %s, want 0", got.String())
	}
}

func TestParse_TruncationBeyondNineDecimals(t *testing.T) {
	got, ok := Parse("1.12345678999")
	if !ok {
		t.Fatal("Parse returned ok=false")
	}
	if got.Int64() != 1_123_456_789 {
		t.Errorf("got %d, want 1123456789", got.Int64())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.000000000"},
		{1, "0.000000001"},
		{1_000_000_000, "1.000000000"},
		{1_500_000_000, "1.500000000"},
		{100_000_000, "0.100000000"},
	}
	for _, tt := range tests {
		if got := Format(big.NewInt(tt.in)); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormat_Nil(t *testing.T) {
	if got := Format(nil); got != "0.000000000" {
		t.Errorf("Format(nil) = %q", got)
	}
}

func TestUnits(t *testing.T) {
	if got := Units(big.NewInt(5_000_000_000)); got != 5.0 {
		t.Errorf("Units = %f, want 5.0", got)
	}
	if got := Units(nil); got != 0 {
		t.Errorf("Units(nil) = %f, want 0", got)
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"1", "0.5", "100.000000001", " 3.2 "}
	for _, s := range valid {
		if !IsValid(s) {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}
	invalid := []string{"-1", "", "1.2.3", "x"}
	for _, s := range invalid {
		if IsValid(s) {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}
