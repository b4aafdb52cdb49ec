package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{KeeperIdentity: "keeper"})

	assert.Equal(t, "orbit-custody", cfg.CustodyAccount)
	assert.Equal(t, time.Minute, cfg.KeeperInterval)
	assert.Equal(t, 100, cfg.KeeperBatchSize)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, "keeper", cfg.KeeperIdentity)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{KeeperInterval: 30 * time.Second, CustodyAccount: "vault"}
	prog := Config{
		DisableKeeper:   true,
		KeeperInterval:  time.Hour,
		KeeperBatchSize: 10,
		KeeperIdentity:  "keeper",
		CustodyAccount:  "ignored",
	}

	cfg := mergeConfigurations(file, prog)

	assert.True(t, cfg.DisableKeeper)
	assert.False(t, cfg.DisableMigrate)
	assert.Equal(t, 30*time.Second, cfg.KeeperInterval)
	assert.Equal(t, 10, cfg.KeeperBatchSize)
	assert.Equal(t, "vault", cfg.CustodyAccount)
	assert.Equal(t, "keeper", cfg.KeeperIdentity)
}

func TestOptions(t *testing.T) {
	e := New(
		WithDisableMigrate(),
		WithKeeperInterval(5*time.Second),
		WithKeeperIdentity("keeper"),
		WithCustodyAccount("vault"),
	)

	assert.Equal(t, ExtensionName, e.Name())
	assert.True(t, e.config.DisableMigrate)
	assert.Equal(t, 5*time.Second, e.config.KeeperInterval)
	assert.Equal(t, "vault", e.config.CustodyAccount)
	assert.Nil(t, e.Engine())

	opts := e.buildEngineOpts()
	assert.Len(t, opts, 4)
}
