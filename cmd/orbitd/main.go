// Command orbitd runs the Orbit streaming ledger as a standalone service:
// the HTTP api, the renewal keeper and optional NATS event publishing.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/api"
	audithook "github.com/xraph/orbit/audit_hook"
	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/custody"
	custodymem "github.com/xraph/orbit/custody/memory"
	custodypg "github.com/xraph/orbit/custody/postgres"
	"github.com/xraph/orbit/keeper"
	"github.com/xraph/orbit/natsevents"
	"github.com/xraph/orbit/observability"
	"github.com/xraph/orbit/store/memory"
	"github.com/xraph/orbit/types"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		slog.Error("orbitd: configuration failed", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("orbitd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("orbitd stopped")
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()

	transferer, closeCustody, err := openCustody(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCustody()

	keeperID := types.Address(cfg.KeeperIdentity)
	opts := []orbit.Option{
		orbit.WithLogger(logger),
		orbit.WithTransferer(transferer),
		orbit.WithCustodyAccount(types.Address(cfg.CustodyAccount)),
		orbit.WithAuthorizer(auth.NewContextAuthorizer(auth.WithDelegate(keeperID))),
		orbit.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
	}

	if cfg.Audit {
		opts = append(opts, orbit.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))))
	}

	if cfg.NATSURL != "" {
		events, err := natsevents.Connect(ctx, cfg.NATSURL, cfg.NATSStream,
			natsevents.WithSubjectPrefix(cfg.NATSSubjectPrefix),
			natsevents.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		opts = append(opts, orbit.WithPlugin(events))
		logger.Info("publishing events", "url", cfg.NATSURL, "stream", cfg.NATSStream)
	}

	engine := orbit.New(memory.New(), opts...)
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Warn("engine stop failed", "error", err)
		}
	}()

	k := keeper.New(engine,
		keeper.WithIdentity(keeperID),
		keeper.WithInterval(cfg.KeeperInterval),
		keeper.WithBatchSize(cfg.KeeperBatchSize),
		keeper.WithLogger(logger),
	)
	if keeperID.IsZero() {
		logger.Warn("no keeper identity configured, auto-renewal is disabled")
	} else {
		if err := k.Start(ctx); err != nil {
			return err
		}
		defer k.Stop()
	}

	srv := api.NewServer(engine,
		api.WithAddr(cfg.ListenAddr),
		api.WithDecimals(cfg.Decimals),
		api.WithLogger(logger),
		api.WithRegistry(reg),
	)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Warn("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openCustody returns the configured custody backend and its release func.
func openCustody(ctx context.Context, cfg Config, logger *slog.Logger) (custody.Transferer, func(), error) {
	if cfg.CustodyDatabaseURL == "" {
		logger.Warn("using in-memory custody book, balances are lost on restart")
		return custodymem.New(), func() {}, nil
	}

	book, err := custodypg.Open(ctx, cfg.CustodyDatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := book.Migrate(ctx); err != nil {
		book.Close()
		return nil, nil, err
	}
	logger.Info("custody book connected")
	return book, book.Close, nil
}

// auditLog records audit events as structured log lines.
func auditLog(logger *slog.Logger) audithook.RecorderFunc {
	audit := logger.With("component", "audit")
	return func(ctx context.Context, ev *audithook.AuditEvent) error {
		audit.LogAttrs(ctx, slog.LevelInfo, ev.Action,
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("category", ev.Category),
			slog.String("severity", ev.Severity),
			slog.String("outcome", ev.Outcome),
			slog.Any("metadata", ev.Metadata),
		)
		return nil
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
