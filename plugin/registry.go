package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onStreamCreated         []OnStreamCreated
	onWithdrawal            []OnWithdrawal
	onStreamCancelled       []OnStreamCancelled
	onStreamExtended        []OnStreamExtended
	onAutoRenewToggled      []OnAutoRenewToggled
	onStreamRenewed         []OnStreamRenewed
	onStreamTerminated      []OnStreamTerminated
	onBatchWithdrawal       []OnBatchWithdrawal
	onFeeUpdated            []OnFeeUpdated
	onGracePeriodUpdated    []OnGracePeriodUpdated
	onPlatformWalletUpdated []OnPlatformWalletUpdated
	onAdminUpdated          []OnAdminUpdated
	onRenewalSweep          []OnRenewalSweep
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-plugin call timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnWithdrawal); ok {
		r.onWithdrawal = append(r.onWithdrawal, v)
	}
	if v, ok := p.(OnStreamCancelled); ok {
		r.onStreamCancelled = append(r.onStreamCancelled, v)
	}
	if v, ok := p.(OnStreamExtended); ok {
		r.onStreamExtended = append(r.onStreamExtended, v)
	}
	if v, ok := p.(OnAutoRenewToggled); ok {
		r.onAutoRenewToggled = append(r.onAutoRenewToggled, v)
	}
	if v, ok := p.(OnStreamRenewed); ok {
		r.onStreamRenewed = append(r.onStreamRenewed, v)
	}
	if v, ok := p.(OnStreamTerminated); ok {
		r.onStreamTerminated = append(r.onStreamTerminated, v)
	}
	if v, ok := p.(OnBatchWithdrawal); ok {
		r.onBatchWithdrawal = append(r.onBatchWithdrawal, v)
	}
	if v, ok := p.(OnFeeUpdated); ok {
		r.onFeeUpdated = append(r.onFeeUpdated, v)
	}
	if v, ok := p.(OnGracePeriodUpdated); ok {
		r.onGracePeriodUpdated = append(r.onGracePeriodUpdated, v)
	}
	if v, ok := p.(OnPlatformWalletUpdated); ok {
		r.onPlatformWalletUpdated = append(r.onPlatformWalletUpdated, v)
	}
	if v, ok := p.(OnAdminUpdated); ok {
		r.onAdminUpdated = append(r.onAdminUpdated, v)
	}
	if v, ok := p.(OnRenewalSweep); ok {
		r.onRenewalSweep = append(r.onRenewalSweep, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnStreamCreated", reflect.TypeFor[OnStreamCreated]()},
	{"OnWithdrawal", reflect.TypeFor[OnWithdrawal]()},
	{"OnStreamCancelled", reflect.TypeFor[OnStreamCancelled]()},
	{"OnStreamExtended", reflect.TypeFor[OnStreamExtended]()},
	{"OnAutoRenewToggled", reflect.TypeFor[OnAutoRenewToggled]()},
	{"OnStreamRenewed", reflect.TypeFor[OnStreamRenewed]()},
	{"OnStreamTerminated", reflect.TypeFor[OnStreamTerminated]()},
	{"OnBatchWithdrawal", reflect.TypeFor[OnBatchWithdrawal]()},
	{"OnFeeUpdated", reflect.TypeFor[OnFeeUpdated]()},
	{"OnGracePeriodUpdated", reflect.TypeFor[OnGracePeriodUpdated]()},
	{"OnPlatformWalletUpdated", reflect.TypeFor[OnPlatformWalletUpdated]()},
	{"OnAdminUpdated", reflect.TypeFor[OnAdminUpdated]()},
	{"OnRenewalSweep", reflect.TypeFor[OnRenewalSweep]()},
}

// implementedInterfaces returns the hooks implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in hooks, logging failures. Emission never
// fails the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// snapshot returns the current hook slice under the read lock.
func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream) {
	emit(ctx, r, "OnStreamCreated", snapshot(r, &r.onStreamCreated), func(p OnStreamCreated) error {
		return p.OnStreamCreated(ctx, s)
	})
}

// EmitWithdrawal emits a withdrawal event.
func (r *Registry) EmitWithdrawal(ctx context.Context, s *stream.Stream, net, fee types.Amount) {
	emit(ctx, r, "OnWithdrawal", snapshot(r, &r.onWithdrawal), func(p OnWithdrawal) error {
		return p.OnWithdrawal(ctx, s, net, fee)
	})
}

// EmitStreamCancelled emits a stream cancelled event.
func (r *Registry) EmitStreamCancelled(ctx context.Context, s *stream.Stream, creatorTotal, refund types.Amount) {
	emit(ctx, r, "OnStreamCancelled", snapshot(r, &r.onStreamCancelled), func(p OnStreamCancelled) error {
		return p.OnStreamCancelled(ctx, s, creatorTotal, refund)
	})
}

// EmitStreamExtended emits a stream extended event.
func (r *Registry) EmitStreamExtended(ctx context.Context, s *stream.Stream, amount types.Amount, seconds uint64) {
	emit(ctx, r, "OnStreamExtended", snapshot(r, &r.onStreamExtended), func(p OnStreamExtended) error {
		return p.OnStreamExtended(ctx, s, amount, seconds)
	})
}

// EmitAutoRenewToggled emits an auto-renew toggled event.
func (r *Registry) EmitAutoRenewToggled(ctx context.Context, s *stream.Stream) {
	emit(ctx, r, "OnAutoRenewToggled", snapshot(r, &r.onAutoRenewToggled), func(p OnAutoRenewToggled) error {
		return p.OnAutoRenewToggled(ctx, s)
	})
}

// EmitStreamRenewed emits a stream renewed event.
func (r *Registry) EmitStreamRenewed(ctx context.Context, previous, renewed *stream.Stream) {
	emit(ctx, r, "OnStreamRenewed", snapshot(r, &r.onStreamRenewed), func(p OnStreamRenewed) error {
		return p.OnStreamRenewed(ctx, previous, renewed)
	})
}

// EmitStreamTerminated emits a stream terminated event.
func (r *Registry) EmitStreamTerminated(ctx context.Context, s *stream.Stream, refund types.Amount) {
	emit(ctx, r, "OnStreamTerminated", snapshot(r, &r.onStreamTerminated), func(p OnStreamTerminated) error {
		return p.OnStreamTerminated(ctx, s, refund)
	})
}

// EmitBatchWithdrawal emits a batch withdrawal event.
func (r *Registry) EmitBatchWithdrawal(ctx context.Context, creator types.Address, total types.Amount, streams int) {
	emit(ctx, r, "OnBatchWithdrawal", snapshot(r, &r.onBatchWithdrawal), func(p OnBatchWithdrawal) error {
		return p.OnBatchWithdrawal(ctx, creator, total, streams)
	})
}

// EmitFeeUpdated emits a fee updated event.
func (r *Registry) EmitFeeUpdated(ctx context.Context, oldBps, newBps uint32) {
	emit(ctx, r, "OnFeeUpdated", snapshot(r, &r.onFeeUpdated), func(p OnFeeUpdated) error {
		return p.OnFeeUpdated(ctx, oldBps, newBps)
	})
}

// EmitGracePeriodUpdated emits a grace period updated event.
func (r *Registry) EmitGracePeriodUpdated(ctx context.Context, oldSeconds, newSeconds uint64) {
	emit(ctx, r, "OnGracePeriodUpdated", snapshot(r, &r.onGracePeriodUpdated), func(p OnGracePeriodUpdated) error {
		return p.OnGracePeriodUpdated(ctx, oldSeconds, newSeconds)
	})
}

// EmitPlatformWalletUpdated emits a platform wallet updated event.
func (r *Registry) EmitPlatformWalletUpdated(ctx context.Context, oldWallet, newWallet types.Address) {
	emit(ctx, r, "OnPlatformWalletUpdated", snapshot(r, &r.onPlatformWalletUpdated), func(p OnPlatformWalletUpdated) error {
		return p.OnPlatformWalletUpdated(ctx, oldWallet, newWallet)
	})
}

// EmitAdminUpdated emits an admin updated event.
func (r *Registry) EmitAdminUpdated(ctx context.Context, oldAdmin, newAdmin types.Address) {
	emit(ctx, r, "OnAdminUpdated", snapshot(r, &r.onAdminUpdated), func(p OnAdminUpdated) error {
		return p.OnAdminUpdated(ctx, oldAdmin, newAdmin)
	})
}

// EmitRenewalSweep emits a keeper sweep summary.
func (r *Registry) EmitRenewalSweep(ctx context.Context, sweep SweepSummary) {
	emit(ctx, r, "OnRenewalSweep", snapshot(r, &r.onRenewalSweep), func(p OnRenewalSweep) error {
		return p.OnRenewalSweep(ctx, sweep)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the stream pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
