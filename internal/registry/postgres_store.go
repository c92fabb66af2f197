package registry

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed registry store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) FlagAggressor(ctx context.Context, flag *AggressorFlag) (bool, error) {
	// ON CONFLICT DO NOTHING makes repeat reports of the same address a
	// silent no-op; the first record wins.
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO aggressor_flags (id, address, reported_by, flagged_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`, flag.ID, flag.Address, flag.ReportedBy, flag.FlaggedAt)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (p *PostgresStore) GetAggressor(ctx context.Context, address string) (*AggressorFlag, error) {
	f := &AggressorFlag{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, address, reported_by, flagged_at
		FROM aggressor_flags WHERE address = $1
	`, address).Scan(&f.ID, &f.Address, &f.ReportedBy, &f.FlaggedAt)
	if err == sql.ErrNoRows {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *PostgresStore) ListAggressors(ctx context.Context, limit int) ([]*AggressorFlag, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, address, reported_by, flagged_at
		FROM aggressor_flags ORDER BY flagged_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []*AggressorFlag
	for rows.Next() {
		f := &AggressorFlag{}
		if err := rows.Scan(&f.ID, &f.Address, &f.ReportedBy, &f.FlaggedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

func (p *PostgresStore) FlagCompromised(ctx context.Context, flag *CompromisedFlag) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO compromised_flags (id, owner, flagged_at, resolved)
		VALUES ($1, $2, $3, FALSE)
	`, flag.ID, flag.Owner, flag.FlaggedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyCompromised
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetCompromised(ctx context.Context, owner string) (*CompromisedFlag, error) {
	f := &CompromisedFlag{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, owner, flagged_at, resolved
		FROM compromised_flags WHERE owner = $1
	`, owner).Scan(&f.ID, &f.Owner, &f.FlaggedAt, &f.Resolved)
	if err == sql.ErrNoRows {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *PostgresStore) ResolveCompromised(ctx context.Context, owner string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE compromised_flags SET resolved = TRUE WHERE owner = $1
	`, owner)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrFlagNotFound
	}
	return nil
}

func (p *PostgresStore) ListCompromised(ctx context.Context, limit int) ([]*CompromisedFlag, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner, flagged_at, resolved
		FROM compromised_flags ORDER BY flagged_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []*CompromisedFlag
	for rows.Next() {
		f := &CompromisedFlag{}
		if err := rows.Scan(&f.ID, &f.Owner, &f.FlaggedAt, &f.Resolved); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}
