package protection

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed protection store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateConfig(ctx context.Context, cfg *Config, v *Vault) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO protection_configs
			(owner, trigger_hash, contacts, recovery_threshold, time_lock_seconds, decoy_amount, triggered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::NUMERIC(30,9), FALSE, $7)
	`, cfg.Owner, hex.EncodeToString(cfg.TriggerHash), pq.Array(cfg.Contacts),
		cfg.RecoveryThreshold, cfg.TimeLockSeconds, cfg.DecoyAmount, cfg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyConfigured
		}
		return fmt.Errorf("insert config: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vaults (owner, address, locked_until, recovery_initiated, approvals, updated_at)
		VALUES ($1, $2, 0, FALSE, 0, $3)
	`, v.Owner, v.Address, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) GetConfig(ctx context.Context, owner string) (*Config, error) {
	cfg := &Config{}
	var hashHex string
	var contacts pq.StringArray

	err := p.db.QueryRowContext(ctx, `
		SELECT owner, trigger_hash, contacts, recovery_threshold, time_lock_seconds,
		       decoy_amount, triggered, created_at
		FROM protection_configs WHERE owner = $1
	`, owner).Scan(&cfg.Owner, &hashHex, &contacts, &cfg.RecoveryThreshold,
		&cfg.TimeLockSeconds, &cfg.DecoyAmount, &cfg.Triggered, &cfg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.TriggerHash, err = hex.DecodeString(hashHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt trigger hash for %s: %w", owner, err)
	}
	cfg.Contacts = []string(contacts)
	return cfg, nil
}

func (p *PostgresStore) GetVault(ctx context.Context, owner string) (*Vault, error) {
	v := &Vault{}
	err := p.db.QueryRowContext(ctx, `
		SELECT owner, address, locked_until, recovery_initiated, approvals, updated_at
		FROM vaults WHERE owner = $1
	`, owner).Scan(&v.Owner, &v.Address, &v.LockedUntil, &v.RecoveryInitiated, &v.Approvals, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (p *PostgresStore) MarkTriggered(ctx context.Context, owner string, lockedUntil int64, alerts []*Alert) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Check-then-set in one statement: a concurrent trigger loses the race
	// and sees zero rows.
	result, err := tx.ExecContext(ctx, `
		UPDATE protection_configs SET triggered = TRUE
		WHERE owner = $1 AND triggered = FALSE
	`, owner)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM protection_configs WHERE owner = $1)`, owner,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrConfigNotFound
		}
		return ErrAlreadyTriggered
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE vaults SET locked_until = $2, updated_at = NOW() WHERE owner = $1
	`, owner, lockedUntil)
	if err != nil {
		return fmt.Errorf("set time-lock: %w", err)
	}

	for _, a := range alerts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO alerts (id, owner, contact, alerted_at, approved)
			VALUES ($1, $2, $3, $4, FALSE)
		`, a.ID, a.Owner, a.Contact, a.AlertedAt)
		if err != nil {
			return fmt.Errorf("insert alert for %s: %w", a.Contact, err)
		}
	}

	return tx.Commit()
}

func (p *PostgresStore) InitiateRecovery(ctx context.Context, owner string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE vaults SET recovery_initiated = TRUE, approvals = 0, updated_at = NOW()
		WHERE owner = $1 AND recovery_initiated = FALSE
	`, owner)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM vaults WHERE owner = $1)`, owner,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrConfigNotFound
		}
		return ErrRecoveryAlreadyInitiated
	}
	return nil
}

func (p *PostgresStore) Approve(ctx context.Context, owner, contact string) (int, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE alerts SET approved = TRUE, approved_at = NOW()
		WHERE owner = $1 AND contact = $2 AND approved = FALSE
	`, owner, contact)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM alerts WHERE owner = $1 AND contact = $2)`, owner, contact,
		).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotAContact
		}
		return 0, ErrAlreadyApproved
	}

	var approvals int
	err = tx.QueryRowContext(ctx, `
		UPDATE vaults SET approvals = approvals + 1, updated_at = NOW()
		WHERE owner = $1
		RETURNING approvals
	`, owner).Scan(&approvals)
	if err != nil {
		return 0, err
	}

	return approvals, tx.Commit()
}

func (p *PostgresStore) ListAlerts(ctx context.Context, owner string) ([]*Alert, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner, contact, alerted_at, approved, approved_at
		FROM alerts WHERE owner = $1 ORDER BY alerted_at, contact
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		var approvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Owner, &a.Contact, &a.AlertedAt, &a.Approved, &approvedAt); err != nil {
			return nil, err
		}
		if approvedAt.Valid {
			t := approvedAt.Time
			a.ApprovedAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (p *PostgresStore) GetAlert(ctx context.Context, owner, contact string) (*Alert, error) {
	a := &Alert{}
	var approvedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, owner, contact, alerted_at, approved, approved_at
		FROM alerts WHERE owner = $1 AND contact = $2
	`, owner, contact).Scan(&a.ID, &a.Owner, &a.Contact, &a.AlertedAt, &a.Approved, &approvedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotAContact
	}
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		a.ApprovedAt = &t
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
