// Package natsevents publishes every ledger event to NATS JetStream as a
// CBOR-encoded Event on subject "<prefix>.<kind>". Consumers can replay
// the stream to rebuild projections of the ledger.
package natsevents

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/xraph/orbit/codec"
	"github.com/xraph/orbit/id"
	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Defaults for the JetStream stream the events land in.
const (
	DefaultSubjectPrefix = "orbit.events"
	DefaultStreamName    = "ORBIT_EVENTS"
	ContentType          = "application/cbor"
)

// Event kinds, used as the final subject token.
const (
	KindStreamCreated         = "stream_created"
	KindWithdrawal            = "withdrawal"
	KindStreamCancelled       = "stream_cancelled"
	KindStreamExtended        = "stream_extended"
	KindAutoRenewToggled      = "auto_renew_toggled"
	KindStreamRenewed         = "stream_renewed"
	KindStreamTerminated      = "stream_terminated"
	KindBatchWithdrawal       = "batch_withdrawal"
	KindFeeUpdated            = "fee_updated"
	KindGracePeriodUpdated    = "grace_period_updated"
	KindPlatformWalletUpdated = "platform_wallet_updated"
	KindAdminUpdated          = "admin_updated"
	KindRenewalSweep          = "renewal_sweep"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Plugin)(nil)
	_ plugin.OnShutdown              = (*Plugin)(nil)
	_ plugin.OnStreamCreated         = (*Plugin)(nil)
	_ plugin.OnWithdrawal            = (*Plugin)(nil)
	_ plugin.OnStreamCancelled       = (*Plugin)(nil)
	_ plugin.OnStreamExtended        = (*Plugin)(nil)
	_ plugin.OnAutoRenewToggled      = (*Plugin)(nil)
	_ plugin.OnStreamRenewed         = (*Plugin)(nil)
	_ plugin.OnStreamTerminated      = (*Plugin)(nil)
	_ plugin.OnBatchWithdrawal       = (*Plugin)(nil)
	_ plugin.OnFeeUpdated            = (*Plugin)(nil)
	_ plugin.OnGracePeriodUpdated    = (*Plugin)(nil)
	_ plugin.OnPlatformWalletUpdated = (*Plugin)(nil)
	_ plugin.OnAdminUpdated          = (*Plugin)(nil)
	_ plugin.OnRenewalSweep          = (*Plugin)(nil)
)

// Event is the wire form of a ledger event. Only the fields relevant to
// Kind are set.
type Event struct {
	ID       string                  `cbor:"id"`
	Kind     string                  `cbor:"kind"`
	At       time.Time               `cbor:"at"`
	Stream   *stream.Stream          `cbor:"stream,omitempty"`
	Previous *stream.Stream          `cbor:"previous,omitempty"`
	Account  types.Address           `cbor:"account,omitempty"`
	Amounts  map[string]types.Amount `cbor:"amounts,omitempty"`
	Old      string                  `cbor:"old,omitempty"`
	New      string                  `cbor:"new,omitempty"`
	Count    int                     `cbor:"count,omitempty"`
	Sweep    *Sweep                  `cbor:"sweep,omitempty"`
}

// Sweep is the wire form of a keeper pass.
type Sweep struct {
	ID        string `cbor:"id"`
	Scanned   int    `cbor:"scanned"`
	Renewed   int    `cbor:"renewed"`
	Expired   int    `cbor:"expired"`
	Failed    int    `cbor:"failed"`
	ElapsedMS int64  `cbor:"elapsed_ms"`
}

// Decode parses an Event published by this package.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := codec.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("natsevents: decode: %w", err)
	}
	return &ev, nil
}

// Publisher delivers one encoded event.
type Publisher interface {
	Publish(ctx context.Context, msg *nats.Msg, msgID string) error
}

type jetStreamPublisher struct {
	js jetstream.JetStream
}

// JetStream adapts a JetStream context to Publisher. The event id is sent
// as the message id so redeliveries are deduplicated by the server.
func JetStream(js jetstream.JetStream) Publisher {
	return jetStreamPublisher{js: js}
}

func (p jetStreamPublisher) Publish(ctx context.Context, msg *nats.Msg, msgID string) error {
	_, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(msgID))
	return err
}

// Plugin publishes ledger events.
type Plugin struct {
	pub    Publisher
	prefix string
	now    func() time.Time
	logger *slog.Logger
	conn   *nats.Conn
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithSubjectPrefix sets the subject prefix (default "orbit.events").
func WithSubjectPrefix(prefix string) Option {
	return func(p *Plugin) { p.prefix = prefix }
}

// WithNow sets the time source for event timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates a Plugin that publishes through pub.
func New(pub Publisher, opts ...Option) *Plugin {
	p := &Plugin{
		pub:    pub,
		prefix: DefaultSubjectPrefix,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials url, ensures a JetStream stream named streamName captures
// "<prefix>.>", and returns a Plugin that owns the connection. The
// connection is drained on engine shutdown.
func Connect(ctx context.Context, url, streamName string, opts ...Option) (*Plugin, error) {
	nc, err := nats.Connect(url, nats.Name("orbit"))
	if err != nil {
		return nil, fmt.Errorf("natsevents: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsevents: jetstream: %w", err)
	}

	p := New(JetStream(js), opts...)
	p.conn = nc

	if streamName == "" {
		streamName = DefaultStreamName
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{p.prefix + ".>"},
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsevents: ensure stream %s: %w", streamName, err)
	}

	p.logger.Info("nats event sink connected",
		"url", nc.ConnectedUrlRedacted(),
		"stream", streamName,
		"subjects", p.prefix+".>",
	)
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "natsevents" }

// Subject returns the subject events of kind are published on.
func (p *Plugin) Subject(kind string) string { return p.prefix + "." + kind }

// OnShutdown drains the connection opened by Connect.
func (p *Plugin) OnShutdown(_ context.Context) error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

func (p *Plugin) publish(ctx context.Context, ev *Event) error {
	ev.ID = id.NewEventID().String()
	ev.At = p.now().UTC()

	data, err := codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("natsevents: encode %s: %w", ev.Kind, err)
	}

	msg := nats.NewMsg(p.Subject(ev.Kind))
	msg.Data = data
	msg.Header.Set("Content-Type", ContentType)

	if err := p.pub.Publish(ctx, msg, ev.ID); err != nil {
		return fmt.Errorf("natsevents: publish %s: %w", msg.Subject, err)
	}
	p.logger.Debug("event published", "subject", msg.Subject, "event_id", ev.ID)
	return nil
}

func (p *Plugin) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return p.publish(ctx, &Event{Kind: KindStreamCreated, Stream: s})
}

func (p *Plugin) OnWithdrawal(ctx context.Context, s *stream.Stream, net, fee types.Amount) error {
	return p.publish(ctx, &Event{
		Kind:    KindWithdrawal,
		Stream:  s,
		Amounts: map[string]types.Amount{"net": net, "fee": fee},
	})
}

func (p *Plugin) OnStreamCancelled(ctx context.Context, s *stream.Stream, creatorTotal, refund types.Amount) error {
	return p.publish(ctx, &Event{
		Kind:    KindStreamCancelled,
		Stream:  s,
		Amounts: map[string]types.Amount{"creator_total": creatorTotal, "refund": refund},
	})
}

func (p *Plugin) OnStreamExtended(ctx context.Context, s *stream.Stream, amount types.Amount, seconds uint64) error {
	return p.publish(ctx, &Event{
		Kind:    KindStreamExtended,
		Stream:  s,
		Amounts: map[string]types.Amount{"additional_amount": amount},
		New:     strconv.FormatUint(seconds, 10),
	})
}

func (p *Plugin) OnAutoRenewToggled(ctx context.Context, s *stream.Stream) error {
	return p.publish(ctx, &Event{
		Kind:   KindAutoRenewToggled,
		Stream: s,
		New:    strconv.FormatBool(s.AutoRenew),
	})
}

func (p *Plugin) OnStreamRenewed(ctx context.Context, previous, renewed *stream.Stream) error {
	return p.publish(ctx, &Event{Kind: KindStreamRenewed, Stream: renewed, Previous: previous})
}

func (p *Plugin) OnStreamTerminated(ctx context.Context, s *stream.Stream, refund types.Amount) error {
	return p.publish(ctx, &Event{
		Kind:    KindStreamTerminated,
		Stream:  s,
		Amounts: map[string]types.Amount{"refund": refund},
	})
}

func (p *Plugin) OnBatchWithdrawal(ctx context.Context, creator types.Address, total types.Amount, streams int) error {
	return p.publish(ctx, &Event{
		Kind:    KindBatchWithdrawal,
		Account: creator,
		Amounts: map[string]types.Amount{"total": total},
		Count:   streams,
	})
}

func (p *Plugin) OnFeeUpdated(ctx context.Context, oldBps, newBps uint32) error {
	return p.publish(ctx, &Event{
		Kind: KindFeeUpdated,
		Old:  strconv.FormatUint(uint64(oldBps), 10),
		New:  strconv.FormatUint(uint64(newBps), 10),
	})
}

func (p *Plugin) OnGracePeriodUpdated(ctx context.Context, oldSeconds, newSeconds uint64) error {
	return p.publish(ctx, &Event{
		Kind: KindGracePeriodUpdated,
		Old:  strconv.FormatUint(oldSeconds, 10),
		New:  strconv.FormatUint(newSeconds, 10),
	})
}

func (p *Plugin) OnPlatformWalletUpdated(ctx context.Context, oldWallet, newWallet types.Address) error {
	return p.publish(ctx, &Event{Kind: KindPlatformWalletUpdated, Old: oldWallet.String(), New: newWallet.String()})
}

func (p *Plugin) OnAdminUpdated(ctx context.Context, oldAdmin, newAdmin types.Address) error {
	return p.publish(ctx, &Event{Kind: KindAdminUpdated, Old: oldAdmin.String(), New: newAdmin.String()})
}

func (p *Plugin) OnRenewalSweep(ctx context.Context, sweep plugin.SweepSummary) error {
	return p.publish(ctx, &Event{
		Kind: KindRenewalSweep,
		Sweep: &Sweep{
			ID:        sweep.ID.String(),
			Scanned:   sweep.Scanned,
			Renewed:   sweep.Renewed,
			Expired:   sweep.Expired,
			Failed:    sweep.Failed,
			ElapsedMS: sweep.Elapsed.Milliseconds(),
		},
	})
}
