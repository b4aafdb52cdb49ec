package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/custody/postgres"
	"github.com/xraph/orbit/id"
	"github.com/xraph/orbit/types"
)

// openBook connects to ORBIT_TEST_POSTGRES_URL or skips the test.
func openBook(t *testing.T) *postgres.Book {
	t.Helper()
	url := os.Getenv("ORBIT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ORBIT_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	b, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	require.NoError(t, b.Migrate(ctx))
	return b
}

// unique returns a holder address that no other run has touched.
func unique(name string) types.Address {
	return types.Address(name + "-" + id.NewAuditID().String())
}

func TestBookTransferBatch(t *testing.T) {
	b := openBook(t)
	ctx := context.Background()
	token := unique("token")
	alice, bob, carol := unique("alice"), unique("bob"), unique("carol")

	require.NoError(t, b.Mint(ctx, alice, token, 100))

	rs, err := b.TransferBatch(ctx, []custody.Transfer{
		{Token: token, From: alice, To: bob, Amount: 60},
		{Token: token, From: alice, To: carol, Amount: 40},
	})
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	for holder, want := range map[types.Address]types.Amount{alice: 0, bob: 60, carol: 40} {
		got, err := b.Balance(ctx, holder, token)
		require.NoError(t, err)
		assert.Equal(t, want, got, holder)
	}
}

func TestBookInsufficientFundsRollsBack(t *testing.T) {
	b := openBook(t)
	ctx := context.Background()
	token := unique("token")
	alice, bob := unique("alice"), unique("bob")

	require.NoError(t, b.Mint(ctx, alice, token, 10))

	_, err := b.TransferBatch(ctx, []custody.Transfer{
		{Token: token, From: alice, To: bob, Amount: 5},
		{Token: token, From: alice, To: bob, Amount: 6},
	})
	require.ErrorIs(t, err, custody.ErrInsufficientFunds)

	got, err := b.Balance(ctx, alice, token)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10), got)
}
