// Package plugin provides the event collaborator for Orbit. Plugins hook
// into stream and admin events; the engine emits each event once, after
// the operation's state has been committed.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/orbit/id"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a stream is created, including the
// replacement stream produced by a renewal.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream) error
}

// OnWithdrawal is called when a creator withdraws from a stream.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, s *stream.Stream, net, fee types.Amount) error
}

// OnStreamCancelled is called when a subscriber cancels a stream.
// creatorTotal includes the platform fee.
type OnStreamCancelled interface {
	Plugin
	OnStreamCancelled(ctx context.Context, s *stream.Stream, creatorTotal, refund types.Amount) error
}

// OnStreamExtended is called when a stream is topped up.
type OnStreamExtended interface {
	Plugin
	OnStreamExtended(ctx context.Context, s *stream.Stream, amount types.Amount, seconds uint64) error
}

// OnAutoRenewToggled is called when a subscriber flips auto-renew.
type OnAutoRenewToggled interface {
	Plugin
	OnAutoRenewToggled(ctx context.Context, s *stream.Stream) error
}

// OnStreamRenewed is called when an expired stream is replaced.
type OnStreamRenewed interface {
	Plugin
	OnStreamRenewed(ctx context.Context, previous, renewed *stream.Stream) error
}

// OnStreamTerminated is called when a creator terminates a stream.
type OnStreamTerminated interface {
	Plugin
	OnStreamTerminated(ctx context.Context, s *stream.Stream, refund types.Amount) error
}

// OnBatchWithdrawal is called after a creator sweeps all of their streams.
type OnBatchWithdrawal interface {
	Plugin
	OnBatchWithdrawal(ctx context.Context, creator types.Address, total types.Amount, streams int) error
}

// ──────────────────────────────────────────────────
// Admin hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated is called when the platform fee changes.
type OnFeeUpdated interface {
	Plugin
	OnFeeUpdated(ctx context.Context, oldBps, newBps uint32) error
}

// OnGracePeriodUpdated is called when the renewal grace period changes.
type OnGracePeriodUpdated interface {
	Plugin
	OnGracePeriodUpdated(ctx context.Context, oldSeconds, newSeconds uint64) error
}

// OnPlatformWalletUpdated is called when the fee recipient changes.
type OnPlatformWalletUpdated interface {
	Plugin
	OnPlatformWalletUpdated(ctx context.Context, oldWallet, newWallet types.Address) error
}

// OnAdminUpdated is called when the admin identity changes.
type OnAdminUpdated interface {
	Plugin
	OnAdminUpdated(ctx context.Context, oldAdmin, newAdmin types.Address) error
}

// ──────────────────────────────────────────────────
// Keeper hooks
// ──────────────────────────────────────────────────

// OnRenewalSweep is called after the keeper finishes one pass.
type OnRenewalSweep interface {
	Plugin
	OnRenewalSweep(ctx context.Context, sweep SweepSummary) error
}

// SweepSummary describes one keeper pass.
type SweepSummary struct {
	ID      id.SweepID
	Scanned int
	Renewed int
	Expired int
	Failed  int
	Elapsed time.Duration
}
