//go:build integration

package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"

	orbitstore "github.com/xraph/orbit/store"
	"github.com/xraph/orbit/store/storetest"
)

// openStore connects to ORBIT_TEST_MONGO_URL, migrates, and empties the
// orbit_kv collection, or skips the test. ORBIT_TEST_MONGO_TXN=1 enables
// transactional batches, which needs a replica set.
func openStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ORBIT_TEST_MONGO_URL")
	if url == "" {
		t.Skip("ORBIT_TEST_MONGO_URL not set")
	}
	ctx := context.Background()

	drv := mongodriver.New()
	require.NoError(t, drv.Open(ctx, url))
	db, err := grove.Open(drv)
	require.NoError(t, err)

	var opts []Option
	if os.Getenv("ORBIT_TEST_MONGO_TXN") == "1" {
		opts = append(opts, WithTransactions())
	}
	s := New(db, opts...)
	require.NoError(t, s.Migrate(ctx))
	_, err = s.mdb.Collection(colEntries).DeleteMany(ctx, bson.M{})
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) orbitstore.Store { return openStore(t) })
}
