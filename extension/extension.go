// Package extension provides the Forge extension adapter for Orbit.
//
// It implements the forge.Extension interface to integrate the Orbit
// streaming engine and its renewal keeper into a Forge application with
// DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.orbit" or "orbit" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/api"
	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/custody"
	custodymem "github.com/xraph/orbit/custody/memory"
	"github.com/xraph/orbit/keeper"
	"github.com/xraph/orbit/store"
	"github.com/xraph/orbit/store/memory"
	"github.com/xraph/orbit/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "orbit"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Time-based payment streaming ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Orbit as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *orbit.Engine
	keeper     *keeper.Keeper
	server     *api.Server
	store      store.Store
	transferer custody.Transferer
	engineOpts []orbit.Option
}

// New creates a new Orbit Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Orbit engine.
// This is nil until Register is called.
func (e *Extension) Engine() *orbit.Engine { return e.engine }

// Keeper returns the renewal keeper. This is nil until Register is called.
func (e *Extension) Keeper() *keeper.Keeper { return e.keeper }

// Server returns the HTTP api server. This is nil until Register is called.
func (e *Extension) Server() *api.Server { return e.server }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, keeper and api server, and registers them in the DI
// container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.transferer == nil {
		e.Logger().Warn("orbit: no transferer configured, using in-memory custody book")
		e.transferer = custodymem.New()
	}

	e.engine = orbit.New(e.store, e.buildEngineOpts()...)
	e.keeper = keeper.New(e.engine,
		keeper.WithIdentity(types.Address(e.config.KeeperIdentity)),
		keeper.WithInterval(e.config.KeeperInterval),
		keeper.WithBatchSize(e.config.KeeperBatchSize),
	)

	e.server = api.NewServer(e.engine, api.WithAddr(e.config.APIAddr))

	if err := vessel.Provide(fapp.Container(), func() (*orbit.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if err := vessel.Provide(fapp.Container(), func() (*keeper.Keeper, error) {
		return e.keeper, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("orbit: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if !e.config.DisableKeeper {
		if err := e.keeper.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	if !e.config.DisableAPI {
		if err := e.server.Start(); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.server != nil && !e.config.DisableAPI {
		if err := e.server.Shutdown(ctx); err != nil {
			e.Logger().Warn("orbit: api shutdown failed", forge.F("error", err.Error()))
		}
	}
	if e.keeper != nil {
		e.keeper.Stop()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("orbit: store not initialized")
	}
	return e.engine.Ping(ctx)
}

// buildEngineOpts constructs orbit.Option values from the resolved config.
// Pass-through options come last so they win over config-derived ones.
func (e *Extension) buildEngineOpts() []orbit.Option {
	opts := make([]orbit.Option, 0, len(e.engineOpts)+3)

	opts = append(opts,
		orbit.WithTransferer(e.transferer),
		orbit.WithCustodyAccount(types.Address(e.config.CustodyAccount)),
	)

	if e.config.KeeperIdentity != "" {
		opts = append(opts, orbit.WithAuthorizer(auth.NewContextAuthorizer(
			auth.WithDelegate(types.Address(e.config.KeeperIdentity)),
		)))
	}

	return append(opts, e.engineOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("orbit: configuration is required but not found in config files; " +
				"ensure 'extensions.orbit' or 'orbit' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("orbit: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_keeper", e.config.DisableKeeper),
		forge.F("disable_api", e.config.DisableAPI),
		forge.F("api_addr", e.config.APIAddr),
		forge.F("custody_account", e.config.CustodyAccount),
		forge.F("keeper_interval", e.config.KeeperInterval),
		forge.F("keeper_batch_size", e.config.KeeperBatchSize),
		forge.F("keeper_identity", e.config.KeeperIdentity),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.orbit", "orbit"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("orbit: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("orbit: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.APIAddr == "" {
		cfg.APIAddr = defaults.APIAddr
	}
	if cfg.CustodyAccount == "" {
		cfg.CustodyAccount = defaults.CustodyAccount
	}
	if cfg.KeeperInterval == 0 {
		cfg.KeeperInterval = defaults.KeeperInterval
	}
	if cfg.KeeperBatchSize == 0 {
		cfg.KeeperBatchSize = defaults.KeeperBatchSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableKeeper {
		yamlConfig.DisableKeeper = true
	}

	if programmaticConfig.DisableAPI {
		yamlConfig.DisableAPI = true
	}

	if yamlConfig.APIAddr == "" {
		yamlConfig.APIAddr = programmaticConfig.APIAddr
	}
	if yamlConfig.CustodyAccount == "" {
		yamlConfig.CustodyAccount = programmaticConfig.CustodyAccount
	}
	if yamlConfig.KeeperIdentity == "" {
		yamlConfig.KeeperIdentity = programmaticConfig.KeeperIdentity
	}
	if yamlConfig.KeeperInterval == 0 {
		yamlConfig.KeeperInterval = programmaticConfig.KeeperInterval
	}
	if yamlConfig.KeeperBatchSize == 0 {
		yamlConfig.KeeperBatchSize = programmaticConfig.KeeperBatchSize
	}

	return mergeWithDefaults(yamlConfig)
}
