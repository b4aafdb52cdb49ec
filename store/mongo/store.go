// Package mongo implements store.Store on MongoDB through the Grove ORM.
// Batches are sent as one ordered BulkWrite; WithTransactions additionally
// wraps each batch in a multi-document transaction, which needs a replica
// set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/orbit"
	orbitstore "github.com/xraph/orbit/store"
)

// Collection name constants.
const (
	colEntries = "orbit_kv"
)

// compile-time interface check
var _ orbitstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTransactions runs every Apply inside a session transaction.
func WithTransactions() Option {
	return func(s *Store) { s.txn = true }
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	txn bool
	now func() time.Time
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the orbit collection.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("orbit/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, orbit.ErrNotFound
		}
		return nil, fmt.Errorf("orbit/mongo: get %s: %w", key, err)
	}
	return m.Value, nil
}

func (s *Store) Has(ctx context.Context, key orbitstore.Key) (bool, error) {
	n, err := s.mdb.Collection(colEntries).CountDocuments(ctx,
		bson.M{"_id": key.String()},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("orbit/mongo: has %s: %w", key, err)
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

// Apply sends the batch as one ordered BulkWrite.
func (s *Store) Apply(ctx context.Context, b *orbitstore.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	writes := writeModels(b.Ops(), s.now().UTC())
	col := s.mdb.Collection(colEntries)

	if !s.txn {
		if _, err := col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
			return fmt.Errorf("orbit/mongo: apply batch of %d: %w", len(writes), err)
		}
		return nil
	}

	sess, err := col.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("orbit/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("orbit/mongo: apply batch of %d in transaction: %w", len(writes), err)
	}
	return nil
}

func writeModels(ops []orbitstore.Op, now time.Time) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		filter := bson.M{"_id": op.Key.String()}
		if op.Delete {
			writes = append(writes, mongo.NewDeleteOneModel().SetFilter(filter))
			continue
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(toEntryModel(op.Key, op.Value, now)).
			SetUpsert(true))
	}
	return writes
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "kind", Value: 1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		},
	}
}
