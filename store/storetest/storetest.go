// Package storetest is a conformance suite for store.Store backends.
// Backends call Run from their own tests with a factory for a fresh,
// migrated, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes every conformance check against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetGetHas", testSetGetHas},
		{"Overwrite", testOverwrite},
		{"Remove", testRemove},
		{"RemoveThenSet", testRemoveThenSet},
		{"ApplyBatch", testApplyBatch},
		{"ApplyLastWriteWins", testApplyLastWriteWins},
		{"ApplyEmpty", testApplyEmpty},
		{"KindsAreDisjoint", testKindsAreDisjoint},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, store.StreamKey(404))
	require.ErrorIs(t, err, orbit.ErrNotFound)

	has, err := s.Has(ctx, store.StreamKey(404))
	require.NoError(t, err)
	assert.False(t, has)
}

func testSetGetHas(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := store.StreamKey(1)

	require.NoError(t, s.Set(ctx, key, []byte("one")))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	has, err := s.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)
}

func testOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := store.ConfigKey()

	require.NoError(t, s.Set(ctx, key, []byte("v1")))
	require.NoError(t, s.Set(ctx, key, []byte("v2")))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func testRemove(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := store.ActivePairKey("sub", "creator")

	require.NoError(t, s.Set(ctx, key, []byte{1}))
	require.NoError(t, s.Remove(ctx, key))

	has, err := s.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, orbit.ErrNotFound)

	// Removing an absent key is not an error.
	require.NoError(t, s.Remove(ctx, store.ActivePairKey("nobody", "nobody")))
}

func testRemoveThenSet(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := store.ActiveCountKey("creator")

	require.NoError(t, s.Set(ctx, key, []byte{1}))
	require.NoError(t, s.Remove(ctx, key))
	require.NoError(t, s.Set(ctx, key, []byte{2}))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)
}

func testApplyBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	pair := store.ActivePairKey("sub", "creator")
	require.NoError(t, s.Set(ctx, pair, []byte{9}))

	b := store.NewBatch()
	b.Set(store.StreamKey(1), []byte("stream"))
	b.Set(store.SubscriberStreamsKey("sub"), []byte("ids"))
	b.Set(store.CreatorStreamsKey("creator"), []byte("ids"))
	b.Remove(pair)
	require.NoError(t, s.Apply(ctx, b))

	for _, key := range []store.Key{
		store.StreamKey(1),
		store.SubscriberStreamsKey("sub"),
		store.CreatorStreamsKey("creator"),
	} {
		has, err := s.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, has, key.String())
	}

	has, err := s.Has(ctx, pair)
	require.NoError(t, err)
	assert.False(t, has)
}

func testApplyLastWriteWins(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := store.StreamKey(7)

	b := store.NewBatch()
	b.Set(key, []byte("first"))
	b.Remove(key)
	b.Set(key, []byte("last"))
	require.Equal(t, 1, b.Len())
	require.NoError(t, s.Apply(ctx, b))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("last"), got)
}

func testApplyEmpty(t *testing.T, s store.Store) {
	require.NoError(t, s.Apply(context.Background(), store.NewBatch()))
}

func testKindsAreDisjoint(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, store.SubscriberStreamsKey("addr"), []byte("sub")))
	require.NoError(t, s.Set(ctx, store.CreatorStreamsKey("addr"), []byte("creator")))

	sub, err := s.Get(ctx, store.SubscriberStreamsKey("addr"))
	require.NoError(t, err)
	creator, err := s.Get(ctx, store.CreatorStreamsKey("addr"))
	require.NoError(t, err)

	assert.Equal(t, []byte("sub"), sub)
	assert.Equal(t, []byte("creator"), creator)
}

func testPing(t *testing.T, s store.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
