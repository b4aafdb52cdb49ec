// Package audithook bridges Orbit stream and admin events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnStreamCreated         = (*Extension)(nil)
	_ plugin.OnWithdrawal            = (*Extension)(nil)
	_ plugin.OnStreamCancelled       = (*Extension)(nil)
	_ plugin.OnStreamExtended        = (*Extension)(nil)
	_ plugin.OnAutoRenewToggled      = (*Extension)(nil)
	_ plugin.OnStreamRenewed         = (*Extension)(nil)
	_ plugin.OnStreamTerminated      = (*Extension)(nil)
	_ plugin.OnBatchWithdrawal       = (*Extension)(nil)
	_ plugin.OnFeeUpdated            = (*Extension)(nil)
	_ plugin.OnGracePeriodUpdated    = (*Extension)(nil)
	_ plugin.OnPlatformWalletUpdated = (*Extension)(nil)
	_ plugin.OnAdminUpdated          = (*Extension)(nil)
	_ plugin.OnRenewalSweep          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// satisfied by chronicle.Emitter, which callers inject at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Orbit events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryStream, nil,
		"subscriber", s.Subscriber.String(),
		"creator", s.Creator.String(),
		"token", s.Token.String(),
		"amount", s.TotalAmount.String(),
		"duration_seconds", s.Duration,
		"auto_renew", s.AutoRenew,
	)
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (e *Extension) OnWithdrawal(ctx context.Context, s *stream.Stream, net, fee types.Amount) error {
	return e.record(ctx, ActionStreamWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, nil,
		"creator", s.Creator.String(),
		"net", net.String(),
		"fee", fee.String(),
		"platform_wallet", s.PlatformWallet.String(),
	)
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (e *Extension) OnStreamCancelled(ctx context.Context, s *stream.Stream, creatorTotal, refund types.Amount) error {
	return e.record(ctx, ActionStreamCancelled, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryStream, nil,
		"subscriber", s.Subscriber.String(),
		"creator_total", creatorTotal.String(),
		"refund", refund.String(),
	)
}

// OnStreamExtended implements plugin.OnStreamExtended.
func (e *Extension) OnStreamExtended(ctx context.Context, s *stream.Stream, amount types.Amount, seconds uint64) error {
	return e.record(ctx, ActionStreamExtended, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryStream, nil,
		"additional_amount", amount.String(),
		"additional_seconds", seconds,
		"end_time", s.EndTime,
	)
}

// OnAutoRenewToggled implements plugin.OnAutoRenewToggled.
func (e *Extension) OnAutoRenewToggled(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionAutoRenewToggled, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryStream, nil,
		"enabled", s.AutoRenew,
	)
}

// OnStreamRenewed implements plugin.OnStreamRenewed.
func (e *Extension) OnStreamRenewed(ctx context.Context, previous, renewed *stream.Stream) error {
	return e.record(ctx, ActionStreamRenewed, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(previous), CategoryStream, nil,
		"renewed_by", renewed.ID,
		"amount", renewed.TotalAmount.String(),
	)
}

// OnStreamTerminated implements plugin.OnStreamTerminated. The creator
// forfeits accrued value, so it is recorded as a warning.
func (e *Extension) OnStreamTerminated(ctx context.Context, s *stream.Stream, refund types.Amount) error {
	return e.record(ctx, ActionStreamTerminated, SeverityWarning, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryStream, nil,
		"creator", s.Creator.String(),
		"refund", refund.String(),
	)
}

// OnBatchWithdrawal implements plugin.OnBatchWithdrawal.
func (e *Extension) OnBatchWithdrawal(ctx context.Context, creator types.Address, total types.Amount, streams int) error {
	return e.record(ctx, ActionBatchWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceCreator, creator.String(), CategoryPayment, nil,
		"total", total.String(),
		"streams", streams,
	)
}

// ──────────────────────────────────────────────────
// Admin hooks
// ──────────────────────────────────────────────────

// OnFeeUpdated implements plugin.OnFeeUpdated.
func (e *Extension) OnFeeUpdated(ctx context.Context, oldBps, newBps uint32) error {
	return e.record(ctx, ActionFeeUpdated, SeverityWarning, OutcomeSuccess,
		ResourceConfig, "fee_bps", CategoryAdmin, nil,
		"old", oldBps,
		"new", newBps,
	)
}

// OnGracePeriodUpdated implements plugin.OnGracePeriodUpdated.
func (e *Extension) OnGracePeriodUpdated(ctx context.Context, oldSeconds, newSeconds uint64) error {
	return e.record(ctx, ActionGracePeriodUpdated, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "grace_period", CategoryAdmin, nil,
		"old", oldSeconds,
		"new", newSeconds,
	)
}

// OnPlatformWalletUpdated implements plugin.OnPlatformWalletUpdated.
func (e *Extension) OnPlatformWalletUpdated(ctx context.Context, oldWallet, newWallet types.Address) error {
	return e.record(ctx, ActionPlatformWalletUpdated, SeverityWarning, OutcomeSuccess,
		ResourceConfig, "platform_wallet", CategoryAdmin, nil,
		"old", oldWallet.String(),
		"new", newWallet.String(),
	)
}

// OnAdminUpdated implements plugin.OnAdminUpdated.
func (e *Extension) OnAdminUpdated(ctx context.Context, oldAdmin, newAdmin types.Address) error {
	return e.record(ctx, ActionAdminUpdated, SeverityCritical, OutcomeSuccess,
		ResourceConfig, "admin", CategoryAdmin, nil,
		"old", oldAdmin.String(),
		"new", newAdmin.String(),
	)
}

// ──────────────────────────────────────────────────
// Keeper hooks
// ──────────────────────────────────────────────────

// OnRenewalSweep implements plugin.OnRenewalSweep. Only sweeps with
// failed renewals are audited.
func (e *Extension) OnRenewalSweep(ctx context.Context, sweep plugin.SweepSummary) error {
	if sweep.Failed == 0 {
		return nil
	}
	outcome := OutcomePartial
	if sweep.Renewed == 0 && sweep.Expired == 0 {
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionRenewalSweepFault, SeverityWarning, outcome,
		ResourceKeeper, sweep.ID.String(), CategorySystem, nil,
		"scanned", sweep.Scanned,
		"renewed", sweep.Renewed,
		"expired", sweep.Expired,
		"failed", sweep.Failed,
	)
}

func streamID(s *stream.Stream) string {
	return strconv.FormatUint(s.ID, 10)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
