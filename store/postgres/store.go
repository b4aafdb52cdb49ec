// Package postgres implements store.Store on PostgreSQL through the Grove
// ORM. Every key lives in one table; a batch is written as one
// multi-row upsert so it commits atomically without an explicit
// transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/orbit"
	orbitstore "github.com/xraph/orbit/store"
)

// compile-time interface check
var _ orbitstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db  *grove.DB
	pg  *pgdriver.PgDB
	now func() time.Time
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		pg:  pgdriver.Unwrap(db),
		now: time.Now,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("orbit/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("orbit/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key orbitstore.Key) ([]byte, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", key.String()).
		Where("deleted = FALSE").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, orbit.ErrNotFound
		}
		return nil, fmt.Errorf("orbit/postgres: get %s: %w", key, err)
	}
	return m.Value, nil
}

func (s *Store) Has(ctx context.Context, key orbitstore.Key) (bool, error) {
	var exists bool
	err := s.pg.NewRaw(`
		SELECT EXISTS (SELECT 1 FROM orbit_kv WHERE key = $1 AND deleted = FALSE)
	`, key.String()).Scan(ctx, &exists)
	if err != nil {
		return false, fmt.Errorf("orbit/postgres: has %s: %w", key, err)
	}
	return exists, nil
}

func (s *Store) Set(ctx context.Context, key orbitstore.Key, value []byte) error {
	b := orbitstore.NewBatch()
	b.Set(key, value)
	return s.Apply(ctx, b)
}

func (s *Store) Remove(ctx context.Context, key orbitstore.Key) error {
	b := orbitstore.NewBatch()
	b.Remove(key)
	return s.Apply(ctx, b)
}

// Apply writes the batch as a single INSERT ... ON CONFLICT statement.
func (s *Store) Apply(ctx context.Context, b *orbitstore.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	now := s.now().UTC()
	ops := b.Ops()
	models := make([]entryModel, len(ops))
	for i, op := range ops {
		models[i] = toEntryModel(op, now)
	}
	_, err := s.pg.NewInsert(&models).
		OnConflict("(key) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("value = EXCLUDED.value").
		Set("deleted = EXCLUDED.deleted").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("orbit/postgres: apply batch of %d: %w", len(models), err)
	}
	return nil
}

// Purge hard-deletes tombstones last written before cutoff and reports
// how many rows were dropped.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*entryModel)(nil)).
		Where("deleted = TRUE").
		Where("updated_at < $1", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("orbit/postgres: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
