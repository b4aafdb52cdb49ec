// Package sqlite implements store.Store on SQLite through the Grove ORM.
// It suits single-node deployments that want state to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/orbit"
	orbitstore "github.com/xraph/orbit/store"
)

// compile-time interface check
var _ orbitstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	now func() time.Time
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
		now: time.Now,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("orbit/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("orbit/sqlite: migration failed: %w", err)
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", key.String()).
		Where("deleted = 0").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, orbit.ErrNotFound
		}
		return nil, fmt.Errorf("orbit/sqlite: get %s: %w", key, err)
	}
	return m.Value, nil
}

func (s *Store) Has(ctx context.Context, key orbitstore.Key) (bool, error) {
	var n int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM orbit_kv WHERE key = ? AND deleted = 0
	`, key.String()).Scan(ctx, &n)
	if err != nil {
		return false, fmt.Errorf("orbit/sqlite: has %s: %w", key, err)
	}
	return n > 0, nil
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

// Apply writes the batch as one multi-row upsert. SQLite runs a single
// statement atomically.
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
	_, err := s.sdb.NewInsert(&models).
		OnConflict("(key) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("value = EXCLUDED.value").
		Set("deleted = EXCLUDED.deleted").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("orbit/sqlite: apply batch of %d: %w", len(models), err)
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
