package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/store"
	"github.com/xraph/orbit/store/mongo"
	"github.com/xraph/orbit/store/postgres"
	"github.com/xraph/orbit/store/sqlite"
)

// Option configures the Orbit Forge extension.
type Option func(*Extension)

// WithStore sets the store for the orbit engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPostgres backs the engine with the PostgreSQL store over db.
func WithPostgres(db *grove.DB) Option {
	return WithStore(postgres.New(db))
}

// WithSQLite backs the engine with the SQLite store over db.
func WithSQLite(db *grove.DB) Option {
	return WithStore(sqlite.New(db))
}

// WithMongo backs the engine with the MongoDB store over db. Batches
// commit inside a transaction when transactional is set, which needs a
// replica set.
func WithMongo(db *grove.DB, transactional bool) Option {
	var opts []mongo.Option
	if transactional {
		opts = append(opts, mongo.WithTransactions())
	}
	return WithStore(mongo.New(db, opts...))
}

// WithTransferer sets the custody backend that moves tokens.
func WithTransferer(t custody.Transferer) Option {
	return func(e *Extension) {
		e.transferer = t
	}
}

// WithEngineOption passes an orbit.Option through to the underlying engine.
func WithEngineOption(opt orbit.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an orbit plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, orbit.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableKeeper prevents the renewal keeper from running.
func WithDisableKeeper() Option {
	return func(e *Extension) { e.config.DisableKeeper = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithKeeperInterval sets the time between renewal sweeps.
func WithKeeperInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.KeeperInterval = d }
}

// WithKeeperBatchSize sets the number of streams loaded per sweep page.
func WithKeeperBatchSize(n int) Option {
	return func(e *Extension) { e.config.KeeperBatchSize = n }
}

// WithKeeperIdentity sets the caller the renewal keeper acts as.
func WithKeeperIdentity(identity string) Option {
	return func(e *Extension) { e.config.KeeperIdentity = identity }
}

// WithCustodyAccount sets the address that escrows stream funds.
func WithCustodyAccount(account string) Option {
	return func(e *Extension) { e.config.CustodyAccount = account }
}

// WithDisableAPI prevents the HTTP api server from running.
func WithDisableAPI() Option {
	return func(e *Extension) { e.config.DisableAPI = true }
}

// WithAPIAddr sets the listen address of the HTTP api.
func WithAPIAddr(addr string) Option {
	return func(e *Extension) { e.config.APIAddr = addr }
}
