package orbit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/clock"
	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/store"
	"github.com/xraph/orbit/types"
)

// DefaultCustodyAccount is the account that holds committed stream funds
// when none is configured.
const DefaultCustodyAccount types.Address = "orbit-custody"

// Engine is the stream ledger. Every mutating operation runs as one
// serialized unit of work: authorize, validate, stage, transfer, commit,
// then emit.
type Engine struct {
	store     store.Store
	plugins   *plugin.Registry
	logger    *slog.Logger
	clock     clock.Clock
	auth      auth.Authorizer
	transfers custody.Transferer
	custody   types.Address

	// mu serializes mutations. Reads go straight to the store, whose
	// batches apply atomically.
	mu sync.Mutex
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   clock.Real(),
		auth:    auth.NewContextAuthorizer(),
		custody: DefaultCustodyAccount,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source. It must never go backwards.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAuthorizer sets the authorization collaborator.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(e *Engine) { e.auth = a }
}

// WithTransferer sets the value-transfer collaborator.
func WithTransferer(t custody.Transferer) Option {
	return func(e *Engine) { e.transfers = t }
}

// WithCustodyAccount sets the account that holds stream funds between
// deposit and payout.
func WithCustodyAccount(account types.Address) Option {
	return func(e *Engine) {
		if !account.IsZero() {
			e.custody = account
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if e.transfers == nil {
		return errors.New("orbit: no transferer configured")
	}
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("orbit started",
		"custody_account", e.custody,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Clock returns the engine time source.
func (e *Engine) Clock() clock.Clock { return e.clock }

// CustodyAccount returns the account holding committed funds.
func (e *Engine) CustodyAccount() types.Address { return e.custody }

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

// instant reads the clock once for an operation.
func (e *Engine) instant() (time.Time, uint64) {
	at := e.clock.Now()
	return at, clock.Unix(at)
}

func (e *Engine) authorize(ctx context.Context, identity types.Address) error {
	if err := e.auth.Require(ctx, identity); err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	}
	return nil
}

// settle runs the transfer legs and then commits u. A transfer failure
// aborts before anything is written; custody.Execute reverses any legs a
// non-batching transferer already applied, and legs it could not reverse
// are logged with their receipts. A commit failure after funds moved
// is logged with the receipts so it can be reconciled.
func (e *Engine) settle(ctx context.Context, u *unit, op string, legs ...custody.Transfer) error {
	if e.transfers == nil && hasValue(legs) {
		return fmt.Errorf("%w: no transferer configured", ErrTransferFailed)
	}

	var receipts []custody.Receipt
	if hasValue(legs) {
		var err error
		receipts, err = custody.Execute(ctx, e.transfers, legs...)
		if err != nil {
			if len(receipts) > 0 {
				e.logger.Error("transfer failed with legs still applied",
					"op", op,
					"receipts", receiptIDs(receipts),
					"error", err,
				)
			} else {
				e.logger.Warn("transfer failed",
					"op", op,
					"error", err,
				)
			}
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	if err := u.commit(ctx); err != nil {
		if len(receipts) > 0 {
			e.logger.Error("commit failed after transfer",
				"op", op,
				"receipts", receiptIDs(receipts),
				"error", err,
			)
		}
		return err
	}
	return nil
}

func receiptIDs(receipts []custody.Receipt) []string {
	ids := make([]string, len(receipts))
	for i, r := range receipts {
		ids[i] = r.ID.String()
	}
	return ids
}

func hasValue(legs []custody.Transfer) bool {
	for _, l := range legs {
		if l.Amount.IsPositive() {
			return true
		}
	}
	return false
}
