// Package postgres implements a custody book on PostgreSQL using pgx.
// Balances live in orbit_custody_balances keyed by (holder, token) and every
// applied leg is journalled in orbit_custody_transfers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/types"
)

// Compile-time interface checks.
var (
	_ custody.Transferer = (*Book)(nil)
	_ custody.Batcher    = (*Book)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS orbit_custody_balances (
	holder     TEXT        NOT NULL,
	token      TEXT        NOT NULL,
	balance    BIGINT      NOT NULL DEFAULT 0 CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (holder, token)
);

CREATE TABLE IF NOT EXISTS orbit_custody_transfers (
	id         TEXT        PRIMARY KEY,
	token      TEXT        NOT NULL,
	sender     TEXT        NOT NULL,
	recipient  TEXT        NOT NULL,
	amount     BIGINT      NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orbit_custody_transfers_sender ON orbit_custody_transfers (sender, created_at);
CREATE INDEX IF NOT EXISTS idx_orbit_custody_transfers_recipient ON orbit_custody_transfers (recipient, created_at);
`

// Book is a PostgreSQL-backed custody book.
type Book struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Book {
	return &Book{pool: pool}
}

// Open creates a connection pool for databaseURL and pings it.
func Open(ctx context.Context, databaseURL string) (*Book, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("custody/postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("custody/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// Migrate creates the custody tables.
func (b *Book) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("custody/postgres: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (b *Book) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close closes the pool.
func (b *Book) Close() {
	b.pool.Close()
}

// Mint credits amount of token to holder.
func (b *Book) Mint(ctx context.Context, holder, token types.Address, amount types.Amount) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: mint %s", custody.ErrInvalidTransfer, amount)
	}
	_, err := b.pool.Exec(ctx, `
		INSERT INTO orbit_custody_balances (holder, token, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder, token)
		DO UPDATE SET balance = orbit_custody_balances.balance + EXCLUDED.balance, updated_at = NOW()
	`, holder.String(), token.String(), amount.Int64())
	if err != nil {
		return fmt.Errorf("custody/postgres: mint: %w", err)
	}
	return nil
}

// Balance returns holder's balance of token.
func (b *Book) Balance(ctx context.Context, holder, token types.Address) (types.Amount, error) {
	var v int64
	err := b.pool.QueryRow(ctx,
		`SELECT balance FROM orbit_custody_balances WHERE holder = $1 AND token = $2`,
		holder.String(), token.String(),
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("custody/postgres: balance: %w", err)
	}
	return types.Amount(v), nil
}

// Transfer implements custody.Transferer.
func (b *Book) Transfer(ctx context.Context, token, from, to types.Address, amount types.Amount) (custody.Receipt, error) {
	rs, err := b.TransferBatch(ctx, []custody.Transfer{{Token: token, From: from, To: to, Amount: amount}})
	if err != nil {
		return custody.Receipt{}, err
	}
	return rs[0], nil
}

// TransferBatch implements custody.Batcher. All legs run in one
// serializable transaction; the debited row is locked before it is read.
func (b *Book) TransferBatch(ctx context.Context, transfers []custody.Transfer) ([]custody.Receipt, error) {
	for _, t := range transfers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("custody/postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	at := time.Now().UTC()
	receipts := make([]custody.Receipt, 0, len(transfers))
	for _, t := range transfers {
		if err := debit(ctx, tx, t); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO orbit_custody_balances (holder, token, balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (holder, token)
			DO UPDATE SET balance = orbit_custody_balances.balance + EXCLUDED.balance, updated_at = NOW()
		`, t.To.String(), t.Token.String(), t.Amount.Int64()); err != nil {
			return nil, fmt.Errorf("custody/postgres: credit %s: %w", t.To, err)
		}

		r := custody.NewReceipt(t, at)
		if _, err := tx.Exec(ctx, `
			INSERT INTO orbit_custody_transfers (id, token, sender, recipient, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.ID.String(), t.Token.String(), t.From.String(), t.To.String(), t.Amount.Int64(), r.At); err != nil {
			return nil, fmt.Errorf("custody/postgres: journal: %w", err)
		}
		receipts = append(receipts, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("custody/postgres: commit: %w", err)
	}
	return receipts, nil
}

func debit(ctx context.Context, tx pgx.Tx, t custody.Transfer) error {
	var have int64
	err := tx.QueryRow(ctx, `
		SELECT balance FROM orbit_custody_balances
		WHERE holder = $1 AND token = $2
		FOR UPDATE
	`, t.From.String(), t.Token.String()).Scan(&have)
	if errors.Is(err, pgx.ErrNoRows) {
		have = 0
	} else if err != nil {
		return fmt.Errorf("custody/postgres: lock %s: %w", t.From, err)
	}

	if types.Amount(have) < t.Amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %s",
			custody.ErrInsufficientFunds, t.From, have, t.Token, t.Amount)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orbit_custody_balances SET balance = balance - $3, updated_at = NOW()
		WHERE holder = $1 AND token = $2
	`, t.From.String(), t.Token.String(), t.Amount.Int64()); err != nil {
		return fmt.Errorf("custody/postgres: debit %s: %w", t.From, err)
	}
	return nil
}
