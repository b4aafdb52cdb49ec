// Package keeper runs the renewal worker. On every tick it scans the
// stream registry for auto-renewing streams that have run out and calls
// RenewStream for each. Streams past their grace window come back
// completed, which is reported as an expiry.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/clock"
	"github.com/xraph/orbit/id"
	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Defaults applied when an option is not given.
const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 100
)

// ErrRunning is returned by Start when the keeper is already running.
var ErrRunning = errors.New("keeper: already running")

// SweepResult reports one pass over the registry.
type SweepResult struct {
	ID      id.SweepID
	Scanned int
	Renewed int
	Expired int
	Failed  int
	Elapsed time.Duration
}

// Summary converts the result to the plugin event payload.
func (r SweepResult) Summary() plugin.SweepSummary {
	return plugin.SweepSummary{
		ID:      r.ID,
		Scanned: r.Scanned,
		Renewed: r.Renewed,
		Expired: r.Expired,
		Failed:  r.Failed,
		Elapsed: r.Elapsed,
	}
}

// Keeper renews expired auto-renewing streams on an interval.
type Keeper struct {
	engine    *orbit.Engine
	identity  types.Address
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithIdentity sets the caller the keeper acts as. The engine authorizer
// must accept it as a delegate for renewals to succeed.
func WithIdentity(a types.Address) Option {
	return func(k *Keeper) { k.identity = a }
}

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(k *Keeper) {
		if d > 0 {
			k.interval = d
		}
	}
}

// WithBatchSize sets how many streams are loaded per page.
func WithBatchSize(n int) Option {
	return func(k *Keeper) {
		if n > 0 {
			k.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keeper) { k.logger = l }
}

// New creates a Keeper over engine.
func New(engine *orbit.Engine, opts ...Option) *Keeper {
	k := &Keeper{
		engine:    engine,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    engine.Logger(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Interval returns the time between sweeps.
func (k *Keeper) Interval() time.Duration { return k.interval }

// Start launches the sweep loop. The first sweep runs after one interval.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running {
		return ErrRunning
	}
	k.running = true
	k.stopChan = make(chan struct{})

	k.wg.Add(1)
	go k.loop(ctx, k.stopChan)

	k.logger.Info("keeper started",
		"interval", k.interval,
		"batch_size", k.batchSize,
		"identity", k.identity,
	)
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (k *Keeper) Stop() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	close(k.stopChan)
	k.mu.Unlock()

	k.wg.Wait()
	k.logger.Info("keeper stopped")
}

func (k *Keeper) loop(ctx context.Context, stop <-chan struct{}) {
	defer k.wg.Done()

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := k.RunOnce(ctx); err != nil {
				if errors.Is(err, orbit.ErrNotInitialized) {
					k.logger.Debug("keeper idle, ledger not initialized")
					continue
				}
				k.logger.Warn("keeper sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep and emits its summary to plugins.
func (k *Keeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	res := SweepResult{ID: id.NewSweepID()}

	grace, err := k.engine.GracePeriod(ctx)
	if err != nil {
		return res, err
	}

	callCtx := ctx
	if !k.identity.IsZero() {
		callCtx = auth.WithCaller(ctx, k.identity)
	}

	var from uint64
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := k.engine.Streams(ctx, from, k.batchSize)
		if err != nil {
			return res, err
		}

		now := k.now()
		for _, s := range page.Streams {
			res.Scanned++
			if !due(s, now, grace) {
				continue
			}
			k.renew(callCtx, s, &res)
		}

		if page.Next == 0 {
			break
		}
		from = page.Next
	}

	res.Elapsed = time.Since(start)
	k.engine.Plugins().EmitRenewalSweep(ctx, res.Summary())

	k.logger.Debug("keeper sweep finished",
		"sweep_id", res.ID.String(),
		"scanned", res.Scanned,
		"renewed", res.Renewed,
		"expired", res.Expired,
		"failed", res.Failed,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (k *Keeper) renew(ctx context.Context, s *stream.Stream, res *SweepResult) {
	renewed, err := k.engine.RenewStream(ctx, s.ID)
	switch {
	case err == nil:
		res.Renewed++
		k.logger.Debug("keeper renewed stream",
			"stream_id", s.ID,
			"renewed_by", renewed,
		)
	case errors.Is(err, orbit.ErrInGracePeriod):
		res.Expired++
		k.logger.Debug("keeper expired stream", "stream_id", s.ID)
	default:
		res.Failed++
		k.logger.Warn("keeper renewal failed",
			"stream_id", s.ID,
			"subscriber", s.Subscriber,
			"error", err,
		)
	}
}

func (k *Keeper) now() uint64 {
	return clock.Unix(k.engine.Clock().Now())
}

// due reports whether s needs the keeper's attention at now. Completed
// streams past their grace window have already been expired and are
// skipped so they are not retried forever.
func due(s *stream.Stream, now, grace uint64) bool {
	if !s.CanRenew(now) {
		return false
	}
	if s.Status == stream.StatusCompleted && s.GraceLapsed(now, grace) {
		return false
	}
	return true
}
