package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFlagAggressor_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.FlagAggressor(ctx, &AggressorFlag{
		ID:         "flag1",
		Address:    "0xbad",
		ReportedBy: "0xowner",
		FlaggedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !created {
		t.Error("first flag should report created")
	}

	// Second report of the same address is a no-op; the first record wins.
	created, err = store.FlagAggressor(ctx, &AggressorFlag{
		ID:         "flag2",
		Address:    "0xbad",
		ReportedBy: "0xother",
		FlaggedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("repeat flag: %v", err)
	}
	if created {
		t.Error("repeat flag should not report created")
	}

	flag, err := store.GetAggressor(ctx, "0xbad")
	if err != nil {
		t.Fatal(err)
	}
	if flag.ReportedBy != "0xowner" {
		t.Errorf("reportedBy = %s, want original reporter 0xowner", flag.ReportedBy)
	}
}

func TestFlagCompromised_OncePerOwner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.FlagCompromised(ctx, &CompromisedFlag{
		ID:        "flag1",
		Owner:     "0xowner",
		FlaggedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("flag: %v", err)
	}

	err = store.FlagCompromised(ctx, &CompromisedFlag{
		ID:        "flag2",
		Owner:     "0xowner",
		FlaggedAt: time.Now(),
	})
	if !errors.Is(err, ErrAlreadyCompromised) {
		t.Errorf("repeat err = %v, want ErrAlreadyCompromised", err)
	}
}

func TestResolveCompromised(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.ResolveCompromised(ctx, "0xghost"); !errors.Is(err, ErrFlagNotFound) {
		t.Errorf("resolve unknown err = %v, want ErrFlagNotFound", err)
	}

	if err := store.FlagCompromised(ctx, &CompromisedFlag{
		ID: "flag1", Owner: "0xowner", FlaggedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.ResolveCompromised(ctx, "0xowner"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	flag, err := store.GetCompromised(ctx, "0xowner")
	if err != nil {
		t.Fatal(err)
	}
	if !flag.Resolved {
		t.Error("flag not resolved")
	}
}

func TestListAggressors_NewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, addr := range []string{"0xa", "0xb", "0xc"} {
		_, err := store.FlagAggressor(ctx, &AggressorFlag{
			ID:        addr,
			Address:   addr,
			FlaggedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	flags, err := store.ListAggressors(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(flags) != 2 {
		t.Fatalf("len = %d, want 2", len(flags))
	}
	if flags[0].Address != "0xc" {
		t.Errorf("first = %s, want 0xc", flags[0].Address)
	}
}
