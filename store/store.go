// Package store defines the persistence collaborator: a key-value map
// keyed by a tagged (kind, id) variant. Backends live in subpackages.
package store

import (
	"context"
)

// Store is the persistence interface for all Orbit state. Values are
// opaque byte slices produced by the codec package.
//
// Get returns orbit.ErrNotFound for absent keys. Apply commits every
// operation in the batch or none of them.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Has(ctx context.Context, key Key) (bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Remove(ctx context.Context, key Key) error
	Apply(ctx context.Context, batch *Batch) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
