// Package memory provides an in-process store.Store. It is intended for
// tests, development and single-process deployments.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe map from key to encoded value.
type Store struct {
	mu     sync.RWMutex
	data   map[store.Key][]byte
	closed bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[store.Key][]byte),
	}
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, orbit.ErrStoreClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, orbit.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) Has(_ context.Context, key store.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, orbit.ErrStoreClosed
	}
	_, ok := s.data[key]
	return ok, nil
}

func (s *Store) Set(_ context.Context, key store.Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return orbit.ErrStoreClosed
	}
	s.data[key] = bytes.Clone(value)
	return nil
}

func (s *Store) Remove(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return orbit.ErrStoreClosed
	}
	delete(s.data, key)
	return nil
}

// Apply commits every op in b under a single lock.
func (s *Store) Apply(_ context.Context, b *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return orbit.ErrStoreClosed
	}
	for _, op := range b.Ops() {
		if op.Delete {
			delete(s.data, op.Key)
			continue
		}
		s.data[op.Key] = bytes.Clone(op.Value)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return orbit.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
