//go:build integration

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/minitoshi/scream/internal/testutil"
)

func TestPostgres_CreditAndBalance(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000001"

	if err := store.Credit(ctx, addr, "10.5", "test deposit"); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	bal, err := store.GetBalance(ctx, addr)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal.Available != "10.500000000" {
		t.Errorf("available = %q, want 10.500000000", bal.Available)
	}
}

func TestPostgres_TransferInsufficient(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Credit(ctx, "0xfrom", "1", "seed"); err != nil {
		t.Fatal(err)
	}

	err := store.Transfer(ctx, "0xfrom", "0xto", "2", "too much")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Transfer = %v, want ErrInsufficientBalance", err)
	}

	err = store.Transfer(ctx, "0xghost", "0xto", "1", "no account")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Transfer from missing account = %v, want ErrAccountNotFound", err)
	}

	// The failed attempts must not have moved anything.
	bal, err := store.GetBalance(ctx, "0xfrom")
	if err != nil {
		t.Fatal(err)
	}
	if bal.Available != "1.000000000" {
		t.Errorf("available after failed transfers = %q, want 1.000000000", bal.Available)
	}
}

func TestPostgres_SweepAll(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Credit(ctx, "0xowner", "10", "seed"); err != nil {
		t.Fatal(err)
	}

	swept, err := store.SweepAll(ctx, "0xowner", "0xvault", "0.01", "sweep")
	if err != nil {
		t.Fatalf("SweepAll failed: %v", err)
	}
	if swept != "9.990000000" {
		t.Errorf("swept = %q, want 9.990000000", swept)
	}

	ownerBal, _ := store.GetBalance(ctx, "0xowner")
	if ownerBal.Available != "0.010000000" {
		t.Errorf("owner keeps %q, want 0.010000000", ownerBal.Available)
	}
	vaultBal, _ := store.GetBalance(ctx, "0xvault")
	if vaultBal.Available != "9.990000000" {
		t.Errorf("vault holds %q, want 9.990000000", vaultBal.Available)
	}

	// Sweeping an already-drained account is a no-op.
	swept, err = store.SweepAll(ctx, "0xowner", "0xvault", "0.01", "sweep")
	if err != nil {
		t.Fatal(err)
	}
	if swept != "0.000000000" {
		t.Errorf("second sweep = %q, want 0.000000000", swept)
	}
}

func TestPostgres_History(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	store.Credit(ctx, "0xa", "5", "first")
	store.Transfer(ctx, "0xa", "0xb", "2", "second")

	entries, err := store.History(ctx, "0xa", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
