package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/orbit/store"
)

func TestWriteModels(t *testing.T) {
	b := store.NewBatch()
	b.Set(store.StreamKey(1), []byte("a"))
	b.Remove(store.ActivePairKey("S", "C"))
	b.Set(store.StreamKey(1), []byte("b"))

	writes := writeModels(b.Ops(), time.Unix(0, 0).UTC())
	require.Len(t, writes, 2)

	replace, ok := writes[0].(*mongo.ReplaceOneModel)
	require.True(t, ok)
	m, ok := replace.Replacement.(*entryModel)
	require.True(t, ok)
	assert.Equal(t, "stream/1", m.Key)
	assert.Equal(t, []byte("b"), m.Value)
	require.NotNil(t, replace.Upsert)
	assert.True(t, *replace.Upsert)

	_, ok = writes[1].(*mongo.DeleteOneModel)
	assert.True(t, ok)
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	assert.Len(t, idx[colEntries], 2)
}
