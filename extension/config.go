package extension

import "time"

// Config holds the Orbit extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.orbit" or "orbit" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableKeeper prevents the renewal keeper from running.
	DisableKeeper bool `json:"disable_keeper" mapstructure:"disable_keeper" yaml:"disable_keeper"`

	// DisableAPI prevents the HTTP api server from running.
	DisableAPI bool `json:"disable_api" mapstructure:"disable_api" yaml:"disable_api"`

	// APIAddr is the listen address of the HTTP api (default: ":8080").
	APIAddr string `json:"api_addr" mapstructure:"api_addr" yaml:"api_addr"`

	// CustodyAccount is the address holding escrowed stream funds
	// (default: "orbit-custody").
	CustodyAccount string `json:"custody_account" mapstructure:"custody_account" yaml:"custody_account"`

	// KeeperInterval is the time between renewal sweeps (default: 1m).
	KeeperInterval time.Duration `json:"keeper_interval" mapstructure:"keeper_interval" yaml:"keeper_interval"`

	// KeeperBatchSize is the number of streams loaded per sweep page
	// (default: 100).
	KeeperBatchSize int `json:"keeper_batch_size" mapstructure:"keeper_batch_size" yaml:"keeper_batch_size"`

	// KeeperIdentity is the caller the keeper acts as. When set, the
	// default authorizer accepts it as a delegate for every subscriber.
	KeeperIdentity string `json:"keeper_identity" mapstructure:"keeper_identity" yaml:"keeper_identity"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIAddr:         ":8080",
		CustodyAccount:  "orbit-custody",
		KeeperInterval:  time.Minute,
		KeeperBatchSize: 100,
	}
}
