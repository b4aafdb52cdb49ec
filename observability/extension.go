// Package observability provides a metrics extension for Orbit that records
// stream lifecycle counts and value flows via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated         = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal            = (*MetricsExtension)(nil)
	_ plugin.OnStreamCancelled       = (*MetricsExtension)(nil)
	_ plugin.OnStreamExtended        = (*MetricsExtension)(nil)
	_ plugin.OnAutoRenewToggled      = (*MetricsExtension)(nil)
	_ plugin.OnStreamRenewed         = (*MetricsExtension)(nil)
	_ plugin.OnStreamTerminated      = (*MetricsExtension)(nil)
	_ plugin.OnBatchWithdrawal       = (*MetricsExtension)(nil)
	_ plugin.OnFeeUpdated            = (*MetricsExtension)(nil)
	_ plugin.OnGracePeriodUpdated    = (*MetricsExtension)(nil)
	_ plugin.OnPlatformWalletUpdated = (*MetricsExtension)(nil)
	_ plugin.OnAdminUpdated          = (*MetricsExtension)(nil)
	_ plugin.OnRenewalSweep          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide stream metrics.
// Register it as an Orbit plugin to track payment flows.
type MetricsExtension struct {
	factory MetricFactory

	// Stream lifecycle
	StreamCreated     Counter
	StreamRenewed     Counter
	StreamCancelled   Counter
	StreamTerminated  Counter
	StreamExtended    Counter
	AutoRenewToggled  Counter
	StreamAmount      Histogram
	StreamDurationSec Histogram

	// Value flows, in smallest token units
	Withdrawals      Counter
	WithdrawnNet     Counter
	FeesCollected    Counter
	Refunded         Counter
	WithdrawalAmount Histogram
	BatchWithdrawals Counter
	BatchStreams     Histogram

	// Admin
	ConfigChanges Counter

	// Keeper
	KeeperSweeps    Counter
	KeeperRenewed   Counter
	KeeperExpired   Counter
	KeeperFailed    Counter
	KeeperLatencyMS Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		StreamCreated:     factory.Counter("orbit.stream.created"),
		StreamRenewed:     factory.Counter("orbit.stream.renewed"),
		StreamCancelled:   factory.Counter("orbit.stream.cancelled"),
		StreamTerminated:  factory.Counter("orbit.stream.terminated"),
		StreamExtended:    factory.Counter("orbit.stream.extended"),
		AutoRenewToggled:  factory.Counter("orbit.stream.auto_renew_toggled"),
		StreamAmount:      factory.Histogram("orbit.stream.amount"),
		StreamDurationSec: factory.Histogram("orbit.stream.duration_seconds"),

		Withdrawals:      factory.Counter("orbit.withdrawal.count"),
		WithdrawnNet:     factory.Counter("orbit.withdrawal.net"),
		FeesCollected:    factory.Counter("orbit.fee.collected"),
		Refunded:         factory.Counter("orbit.refund.total"),
		WithdrawalAmount: factory.Histogram("orbit.withdrawal.amount"),
		BatchWithdrawals: factory.Counter("orbit.withdrawal.batch.count"),
		BatchStreams:     factory.Histogram("orbit.withdrawal.batch.streams"),

		ConfigChanges: factory.Counter("orbit.config.changes"),

		KeeperSweeps:    factory.Counter("orbit.keeper.sweeps"),
		KeeperRenewed:   factory.Counter("orbit.keeper.renewed"),
		KeeperExpired:   factory.Counter("orbit.keeper.expired"),
		KeeperFailed:    factory.Counter("orbit.keeper.failed"),
		KeeperLatencyMS: factory.Histogram("orbit.keeper.sweep.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, s *stream.Stream) error {
	m.StreamCreated.Inc()
	m.StreamAmount.Observe(float64(s.TotalAmount))
	m.StreamDurationSec.Observe(float64(s.Duration))
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, _ *stream.Stream, net, fee types.Amount) error {
	m.Withdrawals.Inc()
	m.WithdrawnNet.Add(float64(net))
	m.FeesCollected.Add(float64(fee))
	m.WithdrawalAmount.Observe(float64(net))
	return nil
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (m *MetricsExtension) OnStreamCancelled(_ context.Context, _ *stream.Stream, _, refund types.Amount) error {
	m.StreamCancelled.Inc()
	m.Refunded.Add(float64(refund))
	return nil
}

// OnStreamExtended implements plugin.OnStreamExtended.
func (m *MetricsExtension) OnStreamExtended(_ context.Context, _ *stream.Stream, _ types.Amount, _ uint64) error {
	m.StreamExtended.Inc()
	return nil
}

// OnAutoRenewToggled implements plugin.OnAutoRenewToggled.
func (m *MetricsExtension) OnAutoRenewToggled(_ context.Context, _ *stream.Stream) error {
	m.AutoRenewToggled.Inc()
	return nil
}

// OnStreamRenewed implements plugin.OnStreamRenewed.
func (m *MetricsExtension) OnStreamRenewed(_ context.Context, _, _ *stream.Stream) error {
	m.StreamRenewed.Inc()
	return nil
}

// OnStreamTerminated implements plugin.OnStreamTerminated.
func (m *MetricsExtension) OnStreamTerminated(_ context.Context, _ *stream.Stream, refund types.Amount) error {
	m.StreamTerminated.Inc()
	m.Refunded.Add(float64(refund))
	return nil
}

// OnBatchWithdrawal implements plugin.OnBatchWithdrawal. The per-stream
// withdrawals have already been counted by OnWithdrawal.
func (m *MetricsExtension) OnBatchWithdrawal(_ context.Context, _ types.Address, _ types.Amount, streams int) error {
	m.BatchWithdrawals.Inc()
	m.BatchStreams.Observe(float64(streams))
	return nil
}

// ──────────────────────────────────────────────────
// Admin hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated implements plugin.OnFeeUpdated.
func (m *MetricsExtension) OnFeeUpdated(_ context.Context, _, _ uint32) error {
	m.ConfigChanges.Inc()
	return nil
}

// OnGracePeriodUpdated implements plugin.OnGracePeriodUpdated.
func (m *MetricsExtension) OnGracePeriodUpdated(_ context.Context, _, _ uint64) error {
	m.ConfigChanges.Inc()
	return nil
}

// OnPlatformWalletUpdated implements plugin.OnPlatformWalletUpdated.
func (m *MetricsExtension) OnPlatformWalletUpdated(_ context.Context, _, _ types.Address) error {
	m.ConfigChanges.Inc()
	return nil
}

// OnAdminUpdated implements plugin.OnAdminUpdated.
func (m *MetricsExtension) OnAdminUpdated(_ context.Context, _, _ types.Address) error {
	m.ConfigChanges.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Keeper hooks
// ──────────────────────────────────────────────────

// OnRenewalSweep implements plugin.OnRenewalSweep.
func (m *MetricsExtension) OnRenewalSweep(_ context.Context, sweep plugin.SweepSummary) error {
	m.KeeperSweeps.Inc()
	m.KeeperRenewed.Add(float64(sweep.Renewed))
	m.KeeperExpired.Add(float64(sweep.Expired))
	m.KeeperFailed.Add(float64(sweep.Failed))
	m.KeeperLatencyMS.Observe(float64(sweep.Elapsed.Milliseconds()))
	return nil
}
