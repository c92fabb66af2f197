//go:build integration

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minitoshi/scream/internal/testutil"
)

func TestPostgres_AggressorIdempotent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := store.FlagAggressor(ctx, &AggressorFlag{
		ID: "agg_1", Address: "0xbad", ReportedBy: "0xvictim", FlaggedAt: now,
	})
	if err != nil {
		t.Fatalf("FlagAggressor failed: %v", err)
	}
	if !created {
		t.Error("first flag should report created")
	}

	created, err = store.FlagAggressor(ctx, &AggressorFlag{
		ID: "agg_2", Address: "0xbad", ReportedBy: "0xother", FlaggedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("repeat flag should be a no-op")
	}

	f, err := store.GetAggressor(ctx, "0xbad")
	if err != nil {
		t.Fatal(err)
	}
	if f.ReportedBy != "0xvictim" {
		t.Errorf("reported_by = %q, want first reporter kept", f.ReportedBy)
	}
}

func TestPostgres_CompromisedLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.FlagCompromised(ctx, &CompromisedFlag{
		ID: "comp_1", Owner: "0xowner", FlaggedAt: now,
	}); err != nil {
		t.Fatalf("FlagCompromised failed: %v", err)
	}

	err := store.FlagCompromised(ctx, &CompromisedFlag{
		ID: "comp_2", Owner: "0xowner", FlaggedAt: now,
	})
	if !errors.Is(err, ErrAlreadyCompromised) {
		t.Errorf("second flag = %v, want ErrAlreadyCompromised", err)
	}

	if err := store.ResolveCompromised(ctx, "0xowner"); err != nil {
		t.Fatalf("ResolveCompromised failed: %v", err)
	}
	f, err := store.GetCompromised(ctx, "0xowner")
	if err != nil {
		t.Fatal(err)
	}
	if !f.Resolved {
		t.Error("flag not resolved")
	}

	if err := store.ResolveCompromised(ctx, "0xnobody"); !errors.Is(err, ErrFlagNotFound) {
		t.Errorf("resolve missing = %v, want ErrFlagNotFound", err)
	}
}
