package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Values are layered: defaults, then
// the YAML file, then ORBIT_* environment variables, then flags.
type Config struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Decimals   uint32 `yaml:"decimals" validate:"lte=18"`

	CustodyAccount     string `yaml:"custody_account" validate:"required"`
	CustodyDatabaseURL string `yaml:"custody_database_url" validate:"omitempty,url"`

	NATSURL           string `yaml:"nats_url" validate:"omitempty,url"`
	NATSStream        string `yaml:"nats_stream" validate:"required_with=NATSURL"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	// Audit logs every stream and admin event as an audit record.
	Audit bool `yaml:"audit"`

	KeeperIdentity  string        `yaml:"keeper_identity"`
	KeeperInterval  time.Duration `yaml:"keeper_interval" validate:"gte=0"`
	KeeperBatchSize int           `yaml:"keeper_batch_size" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":8080",
		LogLevel:          "info",
		Decimals:          7,
		CustodyAccount:    "orbit-custody",
		NATSStream:        "ORBIT_EVENTS",
		NATSSubjectPrefix: "orbit.events",
		KeeperInterval:    time.Minute,
		KeeperBatchSize:   100,
		ShutdownTimeout:   10 * time.Second,
	}
}

// loadConfig resolves the configuration for args. lookup reads the
// environment.
func loadConfig(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("orbitd", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to a YAML config file")
	listen := fs.String("listen", "", "http listen address")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	custodyURL := fs.String("custody-database-url", "", "postgres url of the custody book; in-memory when empty")
	natsURL := fs.String("nats-url", "", "nats server url; events are not published when empty")
	audit := fs.Bool("audit", false, "log an audit record for every stream and admin event")
	keeperInterval := fs.Duration("keeper-interval", 0, "time between renewal sweeps")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *custodyURL != "" {
		cfg.CustodyDatabaseURL = *custodyURL
	}
	if *natsURL != "" {
		cfg.NATSURL = *natsURL
	}
	if *audit {
		cfg.Audit = true
	}
	if *keeperInterval > 0 {
		cfg.KeeperInterval = *keeperInterval
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ORBIT_LISTEN_ADDR":          &cfg.ListenAddr,
		"ORBIT_LOG_LEVEL":            &cfg.LogLevel,
		"ORBIT_CUSTODY_ACCOUNT":      &cfg.CustodyAccount,
		"ORBIT_CUSTODY_DATABASE_URL": &cfg.CustodyDatabaseURL,
		"ORBIT_NATS_URL":             &cfg.NATSURL,
		"ORBIT_NATS_STREAM":          &cfg.NATSStream,
		"ORBIT_KEEPER_IDENTITY":      &cfg.KeeperIdentity,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	if v, ok := lookup("ORBIT_AUDIT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORBIT_AUDIT: %w", err))
		}
		cfg.Audit = b
	}
	if v, ok := lookup("ORBIT_DECIMALS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORBIT_DECIMALS: %w", err))
		}
		cfg.Decimals = uint32(n)
	}
	if v, ok := lookup("ORBIT_KEEPER_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORBIT_KEEPER_INTERVAL: %w", err))
		}
		cfg.KeeperInterval = d
	}
	if v, ok := lookup("ORBIT_KEEPER_BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORBIT_KEEPER_BATCH_SIZE: %w", err))
		}
		cfg.KeeperBatchSize = n
	}
	return errors.Join(errs...)
}
