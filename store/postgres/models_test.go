package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/orbit/store"
)

func TestToEntryModel(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	set := toEntryModel(store.Op{Key: store.StreamKey(7), Value: []byte{1, 2}}, now)
	assert.Equal(t, "stream/7", set.Key)
	assert.Equal(t, "stream", set.Kind)
	assert.Equal(t, []byte{1, 2}, set.Value)
	assert.False(t, set.Deleted)
	assert.Equal(t, now, set.UpdatedAt)

	del := toEntryModel(store.Op{Key: store.ConfigKey(), Value: []byte{9}, Delete: true}, now)
	assert.Equal(t, "config", del.Key)
	assert.True(t, del.Deleted)
	assert.Nil(t, del.Value)
}

func TestMigrationsRegistered(t *testing.T) {
	assert.NotNil(t, Migrations)
}
