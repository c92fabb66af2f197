package ledger

import (
	"context"
	"testing"
)

func TestDeposit_CreatesAccount(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	if err := l.Deposit(ctx, "0xOwner", "5", "tx1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	bal, err := l.GetBalance(ctx, "0xowner")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available != "5.000000000" {
		t.Errorf("available = %s, want 5.000000000", bal.Available)
	}
	if bal.TotalIn != "5.000000000" {
		t.Errorf("totalIn = %s, want 5.000000000", bal.TotalIn)
	}
}

func TestDeposit_RejectsInvalidAmounts(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	for _, amount := range []string{"0", "-1", "abc", ""} {
		if err := l.Deposit(ctx, "0xowner", amount, "tx"); err != ErrInvalidAmount {
			t.Errorf("Deposit(%q) = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestTransfer_CreatesRecipientOnFirstCredit(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	if err := l.Deposit(ctx, "0xa", "1", "tx1"); err != nil {
		t.Fatal(err)
	}
	// Recipient has never been seen before.
	if err := l.Transfer(ctx, "0xa", "0xfresh", "0.1", "decoy"); err != nil {
		t.Fatalf("transfer to fresh account: %v", err)
	}

	bal, _ := l.GetBalance(ctx, "0xfresh")
	if bal.Available != "0.100000000" {
		t.Errorf("fresh recipient available = %s, want 0.100000000", bal.Available)
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	if err := l.Deposit(ctx, "0xa", "1", "tx1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(ctx, "0xa", "0xb", "2", "ref"); err != ErrInsufficientBalance {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	// Failed transfer must not credit the recipient.
	bal, _ := l.GetBalance(ctx, "0xb")
	if bal.Available != "0.000000000" {
		t.Errorf("recipient balance after failed transfer = %s", bal.Available)
	}
}

func TestTransfer_FromUnknownAccount(t *testing.T) {
	l := New(NewMemoryStore())
	if err := l.Transfer(context.Background(), "0xghost", "0xb", "1", "ref"); err != ErrAccountNotFound {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestSweep_LeavesKeepBack(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	if err := l.Deposit(ctx, "0xa", "5", "tx1"); err != nil {
		t.Fatal(err)
	}

	swept, err := l.Sweep(ctx, "0xa", "0xvault", "0.01", "cascade")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != "4.990000000" {
		t.Errorf("swept = %s, want 4.990000000", swept)
	}

	from, _ := l.GetBalance(ctx, "0xa")
	if from.Available != "0.010000000" {
		t.Errorf("keep-back remaining = %s, want 0.010000000", from.Available)
	}
	vault, _ := l.GetBalance(ctx, "0xvault")
	if vault.Available != "4.990000000" {
		t.Errorf("vault = %s, want 4.990000000", vault.Available)
	}
}

func TestSweep_NothingSpendable(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	// Unknown account sweeps zero without error.
	swept, err := l.Sweep(ctx, "0xghost", "0xvault", "0.01", "cascade")
	if err != nil {
		t.Fatalf("sweep unknown: %v", err)
	}
	if swept != "0.000000000" {
		t.Errorf("swept = %s, want 0.000000000", swept)
	}

	// Balance below keep-back sweeps zero too.
	if err := l.Deposit(ctx, "0xa", "0.005", "tx1"); err != nil {
		t.Fatal(err)
	}
	swept, err = l.Sweep(ctx, "0xa", "0xvault", "0.01", "cascade")
	if err != nil {
		t.Fatal(err)
	}
	if swept != "0.000000000" {
		t.Errorf("swept = %s, want 0.000000000", swept)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	for _, tx := range []string{"tx1", "tx2", "tx3"} {
		if err := l.Deposit(ctx, "0xa", "1", tx); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := l.History(ctx, "0xa", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Reference != "tx3" {
		t.Errorf("first entry reference = %s, want tx3", entries[0].Reference)
	}
}
