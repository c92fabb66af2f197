//go:build integration

package protection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minitoshi/scream/internal/seeds"
	"github.com/minitoshi/scream/internal/testutil"
)

func pgConfig(owner string) (*Config, *Vault) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cfg := &Config{
		Owner:             owner,
		TriggerHash:       seeds.HashTrigger([]byte("secret")),
		Contacts:          []string{"0xc1", "0xc2"},
		RecoveryThreshold: 2,
		TimeLockSeconds:   3600,
		DecoyAmount:       "0.1",
		CreatedAt:         now,
	}
	v := &Vault{
		Owner:     owner,
		Address:   seeds.VaultAddress(owner),
		UpdatedAt: now,
	}
	return cfg, v
}

func TestPostgres_CreateConfigOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	cfg, v := pgConfig("0xowner")
	if err := store.CreateConfig(ctx, cfg, v); err != nil {
		t.Fatalf("CreateConfig failed: %v", err)
	}

	if err := store.CreateConfig(ctx, cfg, v); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("second CreateConfig = %v, want ErrAlreadyConfigured", err)
	}

	got, err := store.GetConfig(ctx, "0xowner")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if len(got.Contacts) != 2 || got.Contacts[0] != "0xc1" {
		t.Errorf("contacts round-trip = %v", got.Contacts)
	}
	if string(got.TriggerHash) != string(cfg.TriggerHash) {
		t.Error("trigger hash did not round-trip")
	}

	if _, err := store.GetConfig(ctx, "0xnobody"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("GetConfig missing = %v, want ErrConfigNotFound", err)
	}
}

func TestPostgres_MarkTriggeredOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	cfg, v := pgConfig("0xowner")
	if err := store.CreateConfig(ctx, cfg, v); err != nil {
		t.Fatal(err)
	}

	lockedUntil := time.Now().Add(time.Hour).Unix()
	alerts := []*Alert{
		{ID: seeds.AlertID("0xowner", "0xc1"), Owner: "0xowner", Contact: "0xc1", AlertedAt: time.Now().UTC()},
		{ID: seeds.AlertID("0xowner", "0xc2"), Owner: "0xowner", Contact: "0xc2", AlertedAt: time.Now().UTC()},
	}
	if err := store.MarkTriggered(ctx, "0xowner", lockedUntil, alerts); err != nil {
		t.Fatalf("MarkTriggered failed: %v", err)
	}

	if err := store.MarkTriggered(ctx, "0xowner", lockedUntil, nil); !errors.Is(err, ErrAlreadyTriggered) {
		t.Errorf("second MarkTriggered = %v, want ErrAlreadyTriggered", err)
	}
	if err := store.MarkTriggered(ctx, "0xnobody", lockedUntil, nil); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("MarkTriggered for missing owner = %v, want ErrConfigNotFound", err)
	}

	got, err := store.GetVault(ctx, "0xowner")
	if err != nil {
		t.Fatal(err)
	}
	if got.LockedUntil != lockedUntil {
		t.Errorf("locked_until = %d, want %d", got.LockedUntil, lockedUntil)
	}

	list, err := store.ListAlerts(ctx, "0xowner")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("len(alerts) = %d, want 2", len(list))
	}
}

func TestPostgres_ApprovalFlow(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	cfg, v := pgConfig("0xowner")
	if err := store.CreateConfig(ctx, cfg, v); err != nil {
		t.Fatal(err)
	}
	alerts := []*Alert{
		{ID: seeds.AlertID("0xowner", "0xc1"), Owner: "0xowner", Contact: "0xc1", AlertedAt: time.Now().UTC()},
		{ID: seeds.AlertID("0xowner", "0xc2"), Owner: "0xowner", Contact: "0xc2", AlertedAt: time.Now().UTC()},
	}
	if err := store.MarkTriggered(ctx, "0xowner", 0, alerts); err != nil {
		t.Fatal(err)
	}
	if err := store.InitiateRecovery(ctx, "0xowner"); err != nil {
		t.Fatal(err)
	}
	if err := store.InitiateRecovery(ctx, "0xowner"); !errors.Is(err, ErrRecoveryAlreadyInitiated) {
		t.Errorf("second InitiateRecovery = %v, want ErrRecoveryAlreadyInitiated", err)
	}

	if _, err := store.Approve(ctx, "0xowner", "0xstranger"); !errors.Is(err, ErrNotAContact) {
		t.Errorf("Approve by stranger = %v, want ErrNotAContact", err)
	}

	count, err := store.Approve(ctx, "0xowner", "0xc1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if count != 1 {
		t.Errorf("approvals = %d, want 1", count)
	}

	if _, err := store.Approve(ctx, "0xowner", "0xc1"); !errors.Is(err, ErrAlreadyApproved) {
		t.Errorf("repeat Approve = %v, want ErrAlreadyApproved", err)
	}

	count, err = store.Approve(ctx, "0xowner", "0xc2")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("approvals = %d, want 2", count)
	}

	a, err := store.GetAlert(ctx, "0xowner", "0xc1")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Approved || a.ApprovedAt == nil {
		t.Error("alert not marked approved")
	}
}
