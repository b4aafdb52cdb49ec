package orbit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/clock"
	"github.com/xraph/orbit/custody"
	custodymem "github.com/xraph/orbit/custody/memory"
	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/store/memory"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

const (
	admin      = types.Address("admin")
	wallet     = types.Address("platform")
	subscriber = types.Address("subscriber")
	creator    = types.Address("creator")
	token      = types.Address("usdc")
	custodian  = types.Address("vault")
)

type harness struct {
	engine *orbit.Engine
	clock  *clock.FakeClock
	book   *custodymem.Book
	events *eventLog
}

func newHarness(t *testing.T, opts ...orbit.Option) *harness {
	t.Helper()

	h := &harness{
		clock:  clock.FakeUnix(0),
		events: &eventLog{},
	}
	h.book = custodymem.New(custodymem.WithNow(h.clock.Now))

	base := []orbit.Option{
		orbit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		orbit.WithClock(h.clock),
		orbit.WithTransferer(h.book),
		orbit.WithAuthorizer(auth.NewContextAuthorizer()),
		orbit.WithCustodyAccount(custodian),
		orbit.WithPlugin(h.events),
	}
	h.engine = orbit.New(memory.New(), append(base, opts...)...)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.engine.Stop() })

	if err := h.engine.Initialize(as(admin), admin, wallet, platform.Settings{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.book.Mint(subscriber, token, 10_000); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return h
}

func as(a types.Address) context.Context {
	return auth.WithCaller(context.Background(), a)
}

func (h *harness) at(sec int64) { h.clock.SetUnix(sec) }

func (h *harness) create(t *testing.T, amount types.Amount, duration uint64, autoRenew bool) uint64 {
	t.Helper()
	id, err := h.engine.CreateStream(as(subscriber), orbit.CreateParams{
		Subscriber: subscriber,
		Creator:    creator,
		Token:      token,
		Amount:     amount,
		Duration:   duration,
		TierID:     1,
		AutoRenew:  autoRenew,
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	return id
}

func (h *harness) stream(t *testing.T, id uint64) *stream.Stream {
	t.Helper()
	s, err := h.engine.GetStream(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStream(%d): %v", id, err)
	}
	return s
}

func (h *harness) balance(a types.Address) types.Amount { return h.book.Balance(a, token) }

func (h *harness) active(t *testing.T) (bool, uint64) {
	t.Helper()
	ctx := context.Background()
	has, err := h.engine.HasActiveStream(ctx, subscriber, creator)
	if err != nil {
		t.Fatalf("HasActiveStream: %v", err)
	}
	n, err := h.engine.GetActiveSubscriberCount(ctx, creator)
	if err != nil {
		t.Fatalf("GetActiveSubscriberCount: %v", err)
	}
	return has, n
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) Name() string { return "event-log" }

func (l *eventLog) add(e string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) OnStreamCreated(context.Context, *stream.Stream) error {
	return l.add("created")
}

func (l *eventLog) OnWithdrawal(context.Context, *stream.Stream, types.Amount, types.Amount) error {
	return l.add("withdrawal")
}

func (l *eventLog) OnStreamCancelled(context.Context, *stream.Stream, types.Amount, types.Amount) error {
	return l.add("cancelled")
}

func (l *eventLog) OnStreamRenewed(context.Context, *stream.Stream, *stream.Stream) error {
	return l.add("renewed")
}

func (l *eventLog) OnStreamTerminated(context.Context, *stream.Stream, types.Amount) error {
	return l.add("terminated")
}

func TestCreateStream(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	s := h.stream(t, id)
	if s.Status != stream.StatusActive || s.RatePerSecond != 1 || s.EndTime != 1000 {
		t.Errorf("unexpected stream %+v", s)
	}
	if s.PlatformWallet != wallet {
		t.Errorf("platform wallet = %q, want %q", s.PlatformWallet, wallet)
	}
	if has, n := h.active(t); !has || n != 1 {
		t.Errorf("active = %v, count = %d; want true, 1", has, n)
	}
	if got := h.balance(custodian); got != 1000 {
		t.Errorf("custody = %d, want 1000", got)
	}
	if got := h.balance(subscriber); got != 9000 {
		t.Errorf("subscriber = %d, want 9000", got)
	}

	ids, err := h.engine.GetSubscriberStreams(context.Background(), subscriber)
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Errorf("subscriber streams = %v, %v", ids, err)
	}
	ids, err = h.engine.GetCreatorStreams(context.Background(), creator)
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Errorf("creator streams = %v, %v", ids, err)
	}
}

func TestCreateStreamValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		amount   types.Amount
		duration uint64
		want     error
	}{
		{"zero amount", 0, 1000, orbit.ErrInvalidAmount},
		{"negative amount", -5, 1000, orbit.ErrInvalidAmount},
		{"zero duration", 1000, 0, orbit.ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateStream(as(subscriber), orbit.CreateParams{
				Subscriber: subscriber, Creator: creator, Token: token,
				Amount: tt.amount, Duration: tt.duration,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !orbit.IsValidationError(err) {
				t.Errorf("IsValidationError(%v) = false", err)
			}
		})
	}

	if has, _ := h.active(t); has {
		t.Error("failed creates must not open the pair")
	}
}

func TestCreateStreamDuplicatePair(t *testing.T) {
	h := newHarness(t)
	h.create(t, 1000, 1000, false)

	_, err := h.engine.CreateStream(as(subscriber), orbit.CreateParams{
		Subscriber: subscriber, Creator: creator, Token: token, Amount: 10, Duration: 10,
	})
	if !errors.Is(err, orbit.ErrStreamAlreadyExists) {
		t.Fatalf("expected ErrStreamAlreadyExists, got %v", err)
	}
	if got := h.balance(subscriber); got != 9000 {
		t.Errorf("subscriber = %d, want 9000", got)
	}
}

func TestCreateStreamNotInitialized(t *testing.T) {
	book := custodymem.New()
	e := orbit.New(memory.New(),
		orbit.WithTransferer(book),
		orbit.WithAuthorizer(auth.AllowAll()),
		orbit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	_, err := e.CreateStream(context.Background(), orbit.CreateParams{
		Subscriber: subscriber, Creator: creator, Token: token, Amount: 10, Duration: 10,
	})
	if !errors.Is(err, orbit.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	bps, err := e.FeeBps(context.Background())
	if err != nil || bps != 200 {
		t.Errorf("FeeBps = %d, %v; want default 200", bps, err)
	}
	grace, err := e.GracePeriod(context.Background())
	if err != nil || grace != platform.DefaultGracePeriod {
		t.Errorf("GracePeriod = %d, %v; want default", grace, err)
	}
}

func TestCreateStreamRequiresSubscriber(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.CreateStream(as(creator), orbit.CreateParams{
		Subscriber: subscriber, Creator: creator, Token: token, Amount: 10, Duration: 10,
	})
	if !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if got := h.balance(subscriber); got != 10_000 {
		t.Errorf("subscriber = %d, want untouched 10000", got)
	}
}

func TestCreateStreamTransferFailureAborts(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.CreateStream(as(subscriber), orbit.CreateParams{
		Subscriber: subscriber, Creator: creator, Token: token, Amount: 20_000, Duration: 10,
	})
	if !errors.Is(err, orbit.ErrTransferFailed) || !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected ErrTransferFailed wrapping ErrInsufficientFunds, got %v", err)
	}
	if has, n := h.active(t); has || n != 0 {
		t.Errorf("active = %v, count = %d; want nothing committed", has, n)
	}
	cfg, err := h.engine.Config(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NextStreamID != 1 {
		t.Errorf("next id = %d, want 1", cfg.NextStreamID)
	}
	if _, err := h.engine.GetStream(context.Background(), 1); !errors.Is(err, orbit.ErrStreamNotFound) {
		t.Errorf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestGetWithdrawable(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	h.at(500)
	for range 3 {
		got, err := h.engine.GetWithdrawable(context.Background(), id)
		if err != nil {
			t.Fatalf("GetWithdrawable: %v", err)
		}
		if got != 490 {
			t.Fatalf("GetWithdrawable = %d, want 490", got)
		}
	}

	if _, err := h.engine.GetWithdrawable(context.Background(), 99); !errors.Is(err, orbit.ErrStreamNotFound) {
		t.Errorf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	h.at(500)
	if _, err := h.engine.Withdraw(as(subscriber), id); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	net, err := h.engine.Withdraw(as(creator), id)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if net != 490 {
		t.Errorf("net = %d, want 490", net)
	}
	if h.balance(creator) != 490 || h.balance(wallet) != 10 {
		t.Errorf("creator = %d, wallet = %d", h.balance(creator), h.balance(wallet))
	}
	if s := h.stream(t, id); s.Withdrawn != 500 || s.Status != stream.StatusActive {
		t.Errorf("unexpected stream %+v", s)
	}

	if _, err := h.engine.Withdraw(as(creator), id); !errors.Is(err, orbit.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	h.at(1200)
	net, err = h.engine.Withdraw(as(creator), id)
	if err != nil {
		t.Fatalf("final Withdraw: %v", err)
	}
	if net != 490 {
		t.Errorf("final net = %d, want 490", net)
	}
	if s := h.stream(t, id); s.Status != stream.StatusCompleted || s.Withdrawn != 1000 {
		t.Errorf("unexpected stream %+v", s)
	}
	if has, n := h.active(t); has || n != 0 {
		t.Errorf("active = %v, count = %d; want false, 0", has, n)
	}
	if got := h.balance(custodian); got != 0 {
		t.Errorf("custody = %d, want 0", got)
	}
}

// sequentialBook exposes only Transfer, so the engine cannot batch payout
// legs, and rejects any transfer into the frozen account.
type sequentialBook struct {
	book   *custodymem.Book
	frozen types.Address
}

func (b *sequentialBook) Transfer(ctx context.Context, tok, from, to types.Address, amount types.Amount) (custody.Receipt, error) {
	if to == b.frozen {
		return custody.Receipt{}, errors.New("wallet frozen")
	}
	return b.book.Transfer(ctx, tok, from, to, amount)
}

func TestWithdrawSequentialTransferFailurePaysOnce(t *testing.T) {
	seq := &sequentialBook{}
	h := newHarness(t, orbit.WithTransferer(seq))
	seq.book = h.book
	id := h.create(t, 1000, 1000, false)

	h.at(500)
	seq.frozen = wallet
	if _, err := h.engine.Withdraw(as(creator), id); !errors.Is(err, orbit.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if c, w, v := h.balance(creator), h.balance(wallet), h.balance(custodian); c != 0 || w != 0 || v != 1000 {
		t.Errorf("creator = %d, wallet = %d, custody = %d; want 0, 0, 1000", c, w, v)
	}
	if s := h.stream(t, id); s.Withdrawn != 0 {
		t.Errorf("withdrawn = %d, want 0", s.Withdrawn)
	}

	seq.frozen = ""
	net, err := h.engine.Withdraw(as(creator), id)
	if err != nil {
		t.Fatalf("retry Withdraw: %v", err)
	}
	if net != 490 || h.balance(creator) != 490 || h.balance(wallet) != 10 {
		t.Errorf("net = %d, creator = %d, wallet = %d; want 490, 490, 10", net, h.balance(creator), h.balance(wallet))
	}
	if s := h.stream(t, id); s.Withdrawn != 500 {
		t.Errorf("withdrawn = %d, want 500", s.Withdrawn)
	}
}

func TestCancelSequentialTransferFailureLeavesStreamActive(t *testing.T) {
	seq := &sequentialBook{}
	h := newHarness(t, orbit.WithTransferer(seq))
	seq.book = h.book
	id := h.create(t, 1000, 1000, false)

	h.at(400)
	seq.frozen = subscriber
	if _, _, err := h.engine.Cancel(as(subscriber), id); !errors.Is(err, orbit.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if c, w := h.balance(creator), h.balance(wallet); c != 0 || w != 0 {
		t.Errorf("creator = %d, wallet = %d; want 0, 0", c, w)
	}
	if s := h.stream(t, id); s.Status != stream.StatusActive || s.Withdrawn != 0 {
		t.Errorf("unexpected stream %+v", s)
	}

	seq.frozen = ""
	creatorTotal, refund, err := h.engine.Cancel(as(subscriber), id)
	if err != nil {
		t.Fatalf("retry Cancel: %v", err)
	}
	if creatorTotal != 400 || refund != 600 {
		t.Errorf("cancel = (%d, %d), want (400, 600)", creatorTotal, refund)
	}
	if got := h.balance(creator) + h.balance(wallet) + h.balance(subscriber) - 9000; got != 1000 {
		t.Errorf("paid out %d, want 1000", got)
	}
}

func TestCancelAtStart(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	creatorTotal, refund, err := h.engine.Cancel(as(subscriber), id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if creatorTotal != 0 || refund != 1000 {
		t.Errorf("Cancel = (%d, %d), want (0, 1000)", creatorTotal, refund)
	}
	if got := h.balance(subscriber); got != 10_000 {
		t.Errorf("subscriber = %d, want 10000", got)
	}
	if has, n := h.active(t); has || n != 0 {
		t.Errorf("active = %v, count = %d; want false, 0", has, n)
	}
	if _, _, err := h.engine.Cancel(as(subscriber), id); !errors.Is(err, orbit.ErrStreamNotActive) {
		t.Errorf("expected ErrStreamNotActive, got %v", err)
	}
	if got, _ := h.engine.GetWithdrawable(context.Background(), id); got != 0 {
		t.Errorf("withdrawable after cancel = %d, want 0", got)
	}
}

func TestCancelConservation(t *testing.T) {
	h := newHarness(t)
	// 1000 over 7s truncates the rate to 142, leaving a residue of 6.
	id := h.create(t, 1000, 7, false)

	h.at(3)
	if _, err := h.engine.Withdraw(as(creator), id); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	h.at(5)
	creatorTotal, refund, err := h.engine.Cancel(as(subscriber), id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if creatorTotal != 284 || refund != 290 {
		t.Errorf("Cancel = (%d, %d), want (284, 290)", creatorTotal, refund)
	}

	paidOut := h.balance(creator) + h.balance(wallet) + (h.balance(subscriber) - 9000)
	if paidOut != 1000 {
		t.Errorf("paid out %d, want exactly 1000", paidOut)
	}
	if got := h.balance(custodian); got != 0 {
		t.Errorf("custody = %d, want 0", got)
	}
	if s := h.stream(t, id); s.Status != stream.StatusCancelled || s.Withdrawn != 710 {
		t.Errorf("unexpected stream %+v", s)
	}
}

func TestExtendStream(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	h.at(500)
	if err := h.engine.ExtendStream(as(subscriber), id, 0, 10); !errors.Is(err, orbit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := h.engine.ExtendStream(as(subscriber), id, 10, 0); !errors.Is(err, orbit.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if err := h.engine.ExtendStream(as(subscriber), id, 1000, 500); err != nil {
		t.Fatalf("ExtendStream: %v", err)
	}

	s := h.stream(t, id)
	if s.TotalAmount != 2000 || s.EndTime != 1500 || s.Duration != 1500 {
		t.Errorf("unexpected stream %+v", s)
	}
	if s.RatePerSecond != 2 {
		t.Errorf("rate = %d, want (2000-0)/(1500-500) = 2", s.RatePerSecond)
	}
	if got := h.balance(custodian); got != 2000 {
		t.Errorf("custody = %d, want 2000", got)
	}
}

func TestToggleAutoRenew(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	if err := h.engine.ToggleAutoRenew(as(creator), id, true); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := h.engine.ToggleAutoRenew(as(subscriber), id, true); err != nil {
		t.Fatalf("ToggleAutoRenew: %v", err)
	}
	if !h.stream(t, id).AutoRenew {
		t.Error("auto-renew not set")
	}
}

func TestRenewStream(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, true)

	h.at(500)
	if _, err := h.engine.RenewStream(as(subscriber), id); !errors.Is(err, orbit.ErrStreamNotActive) {
		t.Fatalf("early renew: expected ErrStreamNotActive, got %v", err)
	}

	h.at(1000)
	renewed, err := h.engine.RenewStream(as(subscriber), id)
	if err != nil {
		t.Fatalf("RenewStream: %v", err)
	}
	if renewed != 2 {
		t.Errorf("renewed id = %d, want 2", renewed)
	}

	old := h.stream(t, id)
	if old.Status != stream.StatusCompleted || old.RenewedBy != renewed {
		t.Errorf("unexpected old stream %+v", old)
	}
	next := h.stream(t, renewed)
	if next.StartTime != 1000 || next.EndTime != 2000 || next.TotalAmount != 1000 || !next.AutoRenew {
		t.Errorf("unexpected renewed stream %+v", next)
	}
	if has, n := h.active(t); !has || n != 1 {
		t.Errorf("active = %v, count = %d; want true, 1", has, n)
	}
	activeID, _, _ := h.engine.ActiveStreamID(context.Background(), subscriber, creator)
	if activeID != renewed {
		t.Errorf("active pair points at %d, want %d", activeID, renewed)
	}

	if _, err := h.engine.RenewStream(as(subscriber), id); !errors.Is(err, orbit.ErrStreamNotActive) {
		t.Errorf("double renew: expected ErrStreamNotActive, got %v", err)
	}

	// The creator can still collect the completed stream without
	// disturbing the replacement's slot.
	net, err := h.engine.Withdraw(as(creator), id)
	if err != nil || net != 980 {
		t.Fatalf("Withdraw old = %d, %v; want 980", net, err)
	}
	if has, n := h.active(t); !has || n != 1 {
		t.Errorf("after final withdraw: active = %v, count = %d; want true, 1", has, n)
	}
	if got := h.balance(subscriber); got != 8000 {
		t.Errorf("subscriber = %d, want 8000", got)
	}
}

func TestRenewStreamPastGrace(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetGracePeriod(as(admin), 100); err != nil {
		t.Fatalf("SetGracePeriod: %v", err)
	}
	id := h.create(t, 1000, 1000, true)

	h.at(1101)
	_, err := h.engine.RenewStream(as(subscriber), id)
	if !errors.Is(err, orbit.ErrInGracePeriod) {
		t.Fatalf("expected ErrInGracePeriod, got %v", err)
	}
	if s := h.stream(t, id); s.Status != stream.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if has, n := h.active(t); has || n != 0 {
		t.Errorf("active = %v, count = %d; want false, 0", has, n)
	}

	// Funds accrued before the end remain collectable.
	if net, err := h.engine.Withdraw(as(creator), id); err != nil || net != 980 {
		t.Errorf("Withdraw = %d, %v; want 980", net, err)
	}
}

func TestRenewStreamRequiresAutoRenew(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	h.at(1000)
	if _, err := h.engine.RenewStream(as(subscriber), id); !errors.Is(err, orbit.ErrStreamNotActive) {
		t.Fatalf("expected ErrStreamNotActive, got %v", err)
	}
}

func TestRenewStreamRejectsClosedStreams(t *testing.T) {
	tests := []struct {
		name  string
		close func(h *harness, id uint64) error
	}{
		{"cancelled", func(h *harness, id uint64) error {
			_, _, err := h.engine.Cancel(as(subscriber), id)
			return err
		}},
		{"terminated", func(h *harness, id uint64) error {
			_, err := h.engine.TerminateStream(as(creator), id)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.create(t, 1000, 1000, true)

			h.at(300)
			if err := tt.close(h, id); err != nil {
				t.Fatalf("close: %v", err)
			}
			before := h.balance(subscriber)

			h.at(1000)
			if _, err := h.engine.RenewStream(as(subscriber), id); !errors.Is(err, orbit.ErrStreamNotActive) {
				t.Fatalf("expected ErrStreamNotActive, got %v", err)
			}
			if has, n := h.active(t); has || n != 0 {
				t.Errorf("active = %v, count = %d; want false, 0", has, n)
			}
			if got := h.balance(subscriber); got != before {
				t.Errorf("subscriber = %d, want %d", got, before)
			}
		})
	}
}

func TestRenewStreamByDelegate(t *testing.T) {
	keeper := types.Address("keeper")
	h := newHarness(t, orbit.WithAuthorizer(auth.NewContextAuthorizer(auth.WithDelegate(keeper))))
	id := h.create(t, 1000, 1000, true)

	h.at(1000)
	if _, err := h.engine.RenewStream(as(types.Address("stranger")), id); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := h.engine.RenewStream(as(keeper), id); err != nil {
		t.Fatalf("RenewStream by delegate: %v", err)
	}
}

func TestTerminateStream(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, false)

	h.at(200)
	if _, err := h.engine.Withdraw(as(creator), id); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	h.at(600)
	refund, err := h.engine.TerminateStream(as(creator), id)
	if err != nil {
		t.Fatalf("TerminateStream: %v", err)
	}
	if refund != 800 {
		t.Errorf("refund = %d, want 800", refund)
	}
	// 196 net from the earlier withdrawal; the 400 accrued since is forfeited.
	if h.balance(creator) != 196 || h.balance(wallet) != 4 {
		t.Errorf("creator = %d, wallet = %d", h.balance(creator), h.balance(wallet))
	}
	if got := h.balance(custodian); got != 0 {
		t.Errorf("custody = %d, want 0", got)
	}
	if has, n := h.active(t); has || n != 0 {
		t.Errorf("active = %v, count = %d; want false, 0", has, n)
	}
	if _, err := h.engine.TerminateStream(as(creator), id); !errors.Is(err, orbit.ErrAlreadyTerminated) {
		t.Errorf("expected ErrAlreadyTerminated, got %v", err)
	}
}

func TestWithdrawAll(t *testing.T) {
	h := newHarness(t)
	other := types.Address("other-subscriber")
	if err := h.book.Mint(other, token, 5000); err != nil {
		t.Fatal(err)
	}

	h.create(t, 1000, 1000, false)
	if _, err := h.engine.CreateStream(as(other), orbit.CreateParams{
		Subscriber: other, Creator: creator, Token: token, Amount: 2000, Duration: 1000,
	}); err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	cancelled, err := h.engine.CreateStream(as(other), orbit.CreateParams{
		Subscriber: other, Creator: types.Address("someone-else"), Token: token, Amount: 10, Duration: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.engine.Cancel(as(other), cancelled); err != nil {
		t.Fatal(err)
	}

	h.at(500)
	if _, err := h.engine.WithdrawAll(as(subscriber), creator); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	accrued, err := h.engine.GetTotalAccrued(context.Background(), creator)
	if err != nil || accrued != 1470 {
		t.Fatalf("GetTotalAccrued = %d, %v; want 1470", accrued, err)
	}

	total, err := h.engine.WithdrawAll(as(creator), creator)
	if err != nil {
		t.Fatalf("WithdrawAll: %v", err)
	}
	if total != 1470 {
		t.Errorf("total = %d, want 490 + 980", total)
	}

	// A second sweep finds nothing and still succeeds.
	total, err = h.engine.WithdrawAll(as(creator), creator)
	if err != nil || total != 0 {
		t.Errorf("second WithdrawAll = %d, %v; want 0, nil", total, err)
	}
}

func TestAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Initialize(as(admin), admin, wallet, platform.Settings{}); !errors.Is(err, orbit.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if err := h.engine.SetPlatformFee(as(creator), 100); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := h.engine.SetPlatformFee(as(admin), 1001); !errors.Is(err, orbit.ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if err := h.engine.SetPlatformFee(as(admin), 1000); err != nil {
		t.Fatalf("SetPlatformFee: %v", err)
	}
	if bps, _ := h.engine.FeeBps(ctx); bps != 1000 {
		t.Errorf("FeeBps = %d, want 1000", bps)
	}

	newWallet := types.Address("new-wallet")
	if err := h.engine.SetPlatformWallet(as(admin), newWallet); err != nil {
		t.Fatalf("SetPlatformWallet: %v", err)
	}
	id := h.create(t, 1000, 1000, false)
	if s := h.stream(t, id); s.PlatformWallet != newWallet {
		t.Errorf("stream wallet = %q, want %q", s.PlatformWallet, newWallet)
	}

	h.at(500)
	if got, _ := h.engine.GetWithdrawable(ctx, id); got != 450 {
		t.Errorf("GetWithdrawable at 10%% = %d, want 450", got)
	}

	next := types.Address("next-admin")
	if err := h.engine.SetAdmin(as(admin), next); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := h.engine.SetGracePeriod(as(admin), 5); !errors.Is(err, orbit.ErrNotAuthorized) {
		t.Errorf("old admin: expected ErrNotAuthorized, got %v", err)
	}
	if err := h.engine.SetGracePeriod(as(next), 5); err != nil {
		t.Errorf("new admin SetGracePeriod: %v", err)
	}
}

func TestInitializeValidatesFee(t *testing.T) {
	e := orbit.New(memory.New(), orbit.WithAuthorizer(auth.AllowAll()))
	bad := uint32(1001)
	err := e.Initialize(context.Background(), admin, wallet, platform.Settings{FeeBps: &bad})
	if !errors.Is(err, orbit.ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if _, err := e.Config(context.Background()); !errors.Is(err, orbit.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestStreamsPaging(t *testing.T) {
	h := newHarness(t)
	for i := range 5 {
		sub := types.Address("sub-" + string(rune('a'+i)))
		if err := h.book.Mint(sub, token, 100); err != nil {
			t.Fatal(err)
		}
		if _, err := h.engine.CreateStream(as(sub), orbit.CreateParams{
			Subscriber: sub, Creator: creator, Token: token, Amount: 100, Duration: 100,
		}); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	page, err := h.engine.Streams(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Streams) != 2 || page.Next != 3 {
		t.Fatalf("page 1 = %d streams, next %d", len(page.Streams), page.Next)
	}

	var seen []uint64
	for from := uint64(1); ; {
		p, err := h.engine.Streams(ctx, from, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range p.Streams {
			seen = append(seen, s.ID)
		}
		if p.Next == 0 {
			break
		}
		from = p.Next
	}
	if len(seen) != 5 || seen[0] != 1 || seen[4] != 5 {
		t.Errorf("paged ids = %v", seen)
	}
}

func TestEventsFollowCommits(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 1000, 1000, true)

	h.at(100)
	_, _ = h.engine.Withdraw(as(creator), id)
	_, _ = h.engine.Withdraw(as(creator), id) // nothing accrued, no event

	h.at(1000)
	if _, err := h.engine.RenewStream(as(subscriber), id); err != nil {
		t.Fatal(err)
	}

	want := []string{"created", "withdrawal", "created", "renewed"}
	got := h.events.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInvariantsOverTime(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, 997, 13, false)

	var prevEarned types.Amount
	for now := int64(0); now <= 20; now += 3 {
		h.at(now)
		if now%2 == 0 {
			_, _ = h.engine.Withdraw(as(creator), id)
		}
		s := h.stream(t, id)
		earned := s.RatePerSecond * types.Amount(min(uint64(now), s.EndTime)-s.StartTime)
		if s.Withdrawn > earned || earned > s.TotalAmount {
			t.Fatalf("t=%d: withdrawn %d, earned %d, total %d", now, s.Withdrawn, earned, s.TotalAmount)
		}
		if earned < prevEarned {
			t.Fatalf("t=%d: earned went backwards", now)
		}
		prevEarned = earned
	}
}

func TestStartRequiresTransferer(t *testing.T) {
	e := orbit.New(memory.New())
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected error without a transferer")
	}
}
