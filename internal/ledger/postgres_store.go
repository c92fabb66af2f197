package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minitoshi/scream/internal/idgen"
)

// PostgresStore implements Store with PostgreSQL.
//
// Balance arithmetic runs in NUMERIC(30,9) inside serializable transactions;
// the CHECK constraint on available prevents overdraft at the database level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetBalance(ctx context.Context, address string) (*Balance, error) {
	bal := &Balance{Address: address}

	err := p.db.QueryRowContext(ctx, `
		SELECT available, total_in, total_out, updated_at
		FROM accounts WHERE address = $1
	`, address).Scan(&bal.Available, &bal.TotalIn, &bal.TotalOut, &bal.UpdatedAt)

	if err == sql.ErrNoRows {
		return zeroBalance(address), nil
	}
	if err != nil {
		return nil, err
	}
	return bal, nil
}

func (p *PostgresStore) Credit(ctx context.Context, address, amount, reference string) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := creditTx(ctx, tx, address, "", amount, reference, "deposit"); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Transfer(ctx context.Context, from, to, amount, reference string) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := debitTx(ctx, tx, from, to, amount, reference, "transfer_out"); err != nil {
		return err
	}
	if err := creditTx(ctx, tx, to, from, amount, reference, "transfer_in"); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) SweepAll(ctx context.Context, from, to, keep, reference string) (string, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var available string
	err = tx.QueryRowContext(ctx, `
		SELECT available FROM accounts WHERE address = $1 FOR UPDATE
	`, from).Scan(&available)
	if err == sql.ErrNoRows {
		return "0.000000000", tx.Commit()
	}
	if err != nil {
		return "", err
	}

	var swept string
	err = tx.QueryRowContext(ctx, `
		SELECT CASE
			WHEN $1::NUMERIC(30,9) > $2::NUMERIC(30,9)
			THEN TO_CHAR($1::NUMERIC(30,9) - $2::NUMERIC(30,9), 'FM999999999999999999990.000000000')
			ELSE '0.000000000'
		END
	`, available, keep).Scan(&swept)
	if err != nil {
		return "", err
	}
	if swept == "0.000000000" {
		return swept, tx.Commit()
	}

	if err := debitTx(ctx, tx, from, to, swept, reference, "sweep_out"); err != nil {
		return "", err
	}
	if err := creditTx(ctx, tx, to, from, swept, reference, "sweep_in"); err != nil {
		return "", err
	}
	return swept, tx.Commit()
}

func (p *PostgresStore) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, address, type, amount, COALESCE(counterparty, ''), COALESCE(reference, ''), created_at
		FROM ledger_entries
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.Address, &e.Type, &e.Amount, &e.Counterparty, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// creditTx and debitTx run inside the caller's transaction so that cascade
// writes touching multiple accounts commit as one unit.

func creditTx(ctx context.Context, tx *sql.Tx, address, counterparty, amount, reference, entryType string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, available, total_in, updated_at)
		VALUES ($1, $2::NUMERIC(30,9), $2::NUMERIC(30,9), NOW())
		ON CONFLICT (address) DO UPDATE SET
			available  = accounts.available + $2::NUMERIC(30,9),
			total_in   = accounts.total_in  + $2::NUMERIC(30,9),
			updated_at = NOW()
	`, address, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", address, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, address, type, amount, counterparty, reference, created_at)
		VALUES ($1, $2, $3, $4::NUMERIC(30,9), $5, $6, NOW())
	`, idgen.WithPrefix("entry_"), address, entryType, amount, counterparty, reference)
	if err != nil {
		return fmt.Errorf("record credit entry: %w", err)
	}
	return nil
}

func debitTx(ctx context.Context, tx *sql.Tx, address, counterparty, amount, reference, entryType string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			available  = available - $2::NUMERIC(30,9),
			total_out  = total_out + $2::NUMERIC(30,9),
			updated_at = NOW()
		WHERE address = $1 AND available >= $2::NUMERIC(30,9)
	`, address, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", address, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either the account does not exist or the balance is short;
		// distinguish for the caller.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE address = $1)`, address,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, address, type, amount, counterparty, reference, created_at)
		VALUES ($1, $2, $3, $4::NUMERIC(30,9), $5, $6, NOW())
	`, idgen.WithPrefix("entry_"), address, entryType, amount, counterparty, reference)
	if err != nil {
		return fmt.Errorf("record debit entry: %w", err)
	}
	return nil
}
