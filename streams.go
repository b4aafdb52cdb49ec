package orbit

import (
	"context"
	"time"

	"github.com/xraph/orbit/accrual"
	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/fee"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// CreateParams are the inputs of CreateStream.
type CreateParams struct {
	Subscriber types.Address
	Creator    types.Address
	Token      types.Address
	Amount     types.Amount
	Duration   uint64
	TierID     uint32
	AutoRenew  bool
}

// CreateStream commits Amount of Token from the subscriber to a new stream
// paying the creator over Duration seconds, and returns its id.
func (e *Engine) CreateStream(ctx context.Context, p CreateParams) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()

	if err := e.authorize(ctx, p.Subscriber); err != nil {
		return 0, err
	}

	u := e.begin()
	s, err := e.stageCreate(ctx, u, p, at, now)
	if err != nil {
		return 0, err
	}

	if err := e.settle(ctx, u, "create_stream", custody.Transfer{
		Token: s.Token, From: s.Subscriber, To: e.custody, Amount: s.TotalAmount,
	}); err != nil {
		return 0, err
	}

	e.logger.Debug("stream created",
		"stream_id", s.ID,
		"subscriber", s.Subscriber,
		"creator", s.Creator,
		"amount", s.TotalAmount,
		"duration", s.Duration,
	)
	e.plugins.EmitStreamCreated(ctx, s)
	return s.ID, nil
}

// stageCreate validates p and stages the new stream with its indices. It
// does not authorize or transfer.
func (e *Engine) stageCreate(ctx context.Context, u *unit, p CreateParams, at time.Time, now uint64) (*stream.Stream, error) {
	if !p.Amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive", Err: ErrInvalidAmount}
	}
	if p.Duration == 0 {
		return nil, ValidationError{Field: "duration_seconds", Message: "must be positive", Err: ErrInvalidDuration}
	}

	if _, exists, err := u.activePair(ctx, p.Subscriber, p.Creator); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrStreamAlreadyExists
	}

	cfg, err := u.config(ctx)
	if err != nil {
		return nil, err
	}

	rate, err := accrual.Rate(p.Amount, p.Duration)
	if err != nil {
		return nil, err
	}
	end := now + p.Duration
	if end < now {
		return nil, ErrOverflow
	}

	s := &stream.Stream{
		Entity:         types.NewEntityAt(at),
		ID:             cfg.NextStreamID,
		Subscriber:     p.Subscriber,
		Creator:        p.Creator,
		Token:          p.Token,
		TotalAmount:    p.Amount,
		RatePerSecond:  rate,
		StartTime:      now,
		EndTime:        end,
		Status:         stream.StatusActive,
		TierID:         p.TierID,
		PlatformWallet: cfg.PlatformWallet,
		AutoRenew:      p.AutoRenew,
		Duration:       p.Duration,
	}

	if err := u.putStream(s, at); err != nil {
		return nil, err
	}
	if err := u.open(ctx, s); err != nil {
		return nil, err
	}
	if err := u.appendStreamID(ctx, subscriberKey(s.Subscriber), s.ID); err != nil {
		return nil, err
	}
	if err := u.appendStreamID(ctx, creatorKey(s.Creator), s.ID); err != nil {
		return nil, err
	}

	cfg.NextStreamID++
	if err := u.putConfig(cfg, at); err != nil {
		return nil, err
	}
	return s, nil
}

// GetWithdrawable returns what the creator would receive, net of the
// platform fee, if they withdrew now. It is zero for streams that are not
// Active.
func (e *Engine) GetWithdrawable(ctx context.Context, id uint64) (types.Amount, error) {
	_, now := e.instant()
	return e.withdrawable(ctx, e.begin(), id, now)
}

func (e *Engine) withdrawable(ctx context.Context, u *unit, id uint64, now uint64) (types.Amount, error) {
	s, err := u.stream(ctx, id)
	if err != nil {
		return 0, err
	}
	if !s.Active() {
		return 0, nil
	}

	gross, err := accrual.Withdrawable(s, now)
	if err != nil {
		return 0, err
	}
	bps, err := u.feeBps(ctx)
	if err != nil {
		return 0, err
	}
	net, _, err := fee.Split(gross, bps)
	return net, err
}

// Withdraw pays the creator everything accrued and not yet withdrawn, less
// the platform fee, and returns the net amount. A withdrawal at or after
// end_time completes the stream.
func (e *Engine) Withdraw(ctx context.Context, id uint64) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()
	return e.withdraw(ctx, id, at, now, true)
}

func (e *Engine) withdraw(ctx context.Context, id uint64, at time.Time, now uint64, authorize bool) (types.Amount, error) {
	u := e.begin()
	s, err := u.stream(ctx, id)
	if err != nil {
		return 0, err
	}
	if authorize {
		if err := e.authorize(ctx, s.Creator); err != nil {
			return 0, err
		}
	}
	if !s.CanWithdraw() {
		return 0, ErrStreamNotActive
	}

	gross, err := accrual.Withdrawable(s, now)
	if err != nil {
		return 0, err
	}
	if !gross.IsPositive() {
		return 0, ErrInsufficientBalance
	}

	bps, err := u.feeBps(ctx)
	if err != nil {
		return 0, err
	}
	net, platformFee, err := fee.Split(gross, bps)
	if err != nil {
		return 0, err
	}

	if s.Withdrawn, err = s.Withdrawn.CheckedAdd(gross); err != nil {
		return 0, err
	}

	if s.Expired(now) {
		wasActive := s.Active()
		if err := s.Transition(stream.StatusCompleted); err != nil {
			return 0, err
		}
		if wasActive {
			if err := u.close(ctx, s); err != nil {
				return 0, err
			}
		}
	}
	if err := u.putStream(s, at); err != nil {
		return 0, err
	}

	if err := e.settle(ctx, u, "withdraw",
		custody.Transfer{Token: s.Token, From: e.custody, To: s.Creator, Amount: net},
		custody.Transfer{Token: s.Token, From: e.custody, To: s.PlatformWallet, Amount: platformFee},
	); err != nil {
		return 0, err
	}

	e.logger.Debug("stream withdrawal",
		"stream_id", s.ID,
		"net", net,
		"fee", platformFee,
		"status", s.Status,
	)
	e.plugins.EmitWithdrawal(ctx, s, net, platformFee)
	return net, nil
}

// Cancel ends an Active stream early. The creator is paid what accrued so
// far, less the fee, and the subscriber is refunded the rest. It returns
// the amount debited on the creator's behalf (net plus fee) and the
// subscriber refund.
func (e *Engine) Cancel(ctx context.Context, id uint64) (creatorTotal, refund types.Amount, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()
	u := e.begin()

	s, err := u.stream(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	if err := e.authorize(ctx, s.Subscriber); err != nil {
		return 0, 0, err
	}
	if !s.Active() {
		return 0, 0, ErrStreamNotActive
	}

	pending, err := accrual.Withdrawable(s, now)
	if err != nil {
		return 0, 0, err
	}
	bps, err := u.feeBps(ctx)
	if err != nil {
		return 0, 0, err
	}
	net, platformFee, err := fee.Split(pending, bps)
	if err != nil {
		return 0, 0, err
	}
	refund = s.TotalAmount.SaturatingSub(s.Withdrawn).SaturatingSub(pending)

	if s.Withdrawn, err = s.Withdrawn.CheckedAdd(pending); err != nil {
		return 0, 0, err
	}
	if err := s.Transition(stream.StatusCancelled); err != nil {
		return 0, 0, err
	}
	if err := u.close(ctx, s); err != nil {
		return 0, 0, err
	}
	if err := u.putStream(s, at); err != nil {
		return 0, 0, err
	}

	if err := e.settle(ctx, u, "cancel",
		custody.Transfer{Token: s.Token, From: e.custody, To: s.Creator, Amount: net},
		custody.Transfer{Token: s.Token, From: e.custody, To: s.PlatformWallet, Amount: platformFee},
		custody.Transfer{Token: s.Token, From: e.custody, To: s.Subscriber, Amount: refund},
	); err != nil {
		return 0, 0, err
	}

	creatorTotal = net + platformFee
	e.logger.Debug("stream cancelled",
		"stream_id", s.ID,
		"creator_total", creatorTotal,
		"refund", refund,
	)
	e.plugins.EmitStreamCancelled(ctx, s, creatorTotal, refund)
	return creatorTotal, refund, nil
}

// ExtendStream tops up an Active stream with amount and seconds. The rate
// is re-derived from the remaining balance over the remaining time.
func (e *Engine) ExtendStream(ctx context.Context, id uint64, amount types.Amount, seconds uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()
	u := e.begin()

	s, err := u.stream(ctx, id)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, s.Subscriber); err != nil {
		return err
	}
	if !s.Active() {
		return ErrStreamNotActive
	}
	if !amount.IsPositive() {
		return ValidationError{Field: "additional_amount", Message: "must be positive", Err: ErrInvalidAmount}
	}
	if seconds == 0 {
		return ValidationError{Field: "additional_seconds", Message: "must be positive", Err: ErrInvalidDuration}
	}

	if s.TotalAmount, err = s.TotalAmount.CheckedAdd(amount); err != nil {
		return err
	}
	if s.EndTime+seconds < s.EndTime || s.Duration+seconds < s.Duration {
		return ErrOverflow
	}
	s.EndTime += seconds
	s.Duration += seconds

	var remaining uint64
	if s.EndTime > now {
		remaining = s.EndTime - now
	}
	if s.RatePerSecond, err = accrual.Rate(s.Remaining(), remaining); err != nil {
		return err
	}
	if err := u.putStream(s, at); err != nil {
		return err
	}

	if err := e.settle(ctx, u, "extend_stream", custody.Transfer{
		Token: s.Token, From: s.Subscriber, To: e.custody, Amount: amount,
	}); err != nil {
		return err
	}

	e.logger.Debug("stream extended",
		"stream_id", s.ID,
		"amount", amount,
		"seconds", seconds,
		"rate_per_second", s.RatePerSecond,
	)
	e.plugins.EmitStreamExtended(ctx, s, amount, seconds)
	return nil
}

// ToggleAutoRenew sets the auto-renew flag of an Active stream.
func (e *Engine) ToggleAutoRenew(ctx context.Context, id uint64, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, _ := e.instant()
	u := e.begin()

	s, err := u.stream(ctx, id)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, s.Subscriber); err != nil {
		return err
	}
	if !s.Active() {
		return ErrStreamNotActive
	}

	s.AutoRenew = enabled
	if err := u.putStream(s, at); err != nil {
		return err
	}
	if err := u.commit(ctx); err != nil {
		return err
	}

	e.plugins.EmitAutoRenewToggled(ctx, s)
	return nil
}

// RenewStream replaces an expired auto-renewing stream with a fresh one on
// the same terms and returns the new id. Anyone may call it; the
// subscriber's authority is still required for the new deposit. Past the
// grace window the stream is completed instead and ErrInGracePeriod is
// returned.
func (e *Engine) RenewStream(ctx context.Context, id uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()
	u := e.begin()

	s, err := u.stream(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.Active() && now < s.EndTime {
		return 0, ErrStreamNotActive
	}
	if !s.CanRenew(now) {
		return 0, ErrStreamNotActive
	}

	grace, err := u.gracePeriod(ctx)
	if err != nil {
		return 0, err
	}
	if s.GraceLapsed(now, grace) {
		return 0, e.lapse(ctx, u, s, at)
	}

	if err := e.authorize(ctx, s.Subscriber); err != nil {
		return 0, err
	}

	// The old slot is released before the replacement claims it.
	if s.Active() {
		if err := u.close(ctx, s); err != nil {
			return 0, err
		}
	}
	if err := s.Transition(stream.StatusCompleted); err != nil {
		return 0, err
	}

	renewed, err := e.stageCreate(ctx, u, CreateParams{
		Subscriber: s.Subscriber,
		Creator:    s.Creator,
		Token:      s.Token,
		Amount:     s.TotalAmount,
		Duration:   s.Duration,
		TierID:     s.TierID,
		AutoRenew:  true,
	}, at, now)
	if err != nil {
		return 0, err
	}

	s.RenewedBy = renewed.ID
	if err := u.putStream(s, at); err != nil {
		return 0, err
	}

	if err := e.settle(ctx, u, "renew_stream", custody.Transfer{
		Token: renewed.Token, From: renewed.Subscriber, To: e.custody, Amount: renewed.TotalAmount,
	}); err != nil {
		return 0, err
	}

	e.logger.Debug("stream renewed",
		"stream_id", s.ID,
		"renewed_by", renewed.ID,
	)
	e.plugins.EmitStreamCreated(ctx, renewed)
	e.plugins.EmitStreamRenewed(ctx, s, renewed)
	return renewed.ID, nil
}

// lapse completes a stream whose renewal window has passed and reports
// ErrInGracePeriod. The completion is committed even though the call fails.
func (e *Engine) lapse(ctx context.Context, u *unit, s *stream.Stream, at time.Time) error {
	if s.Active() {
		if err := u.close(ctx, s); err != nil {
			return err
		}
	}
	if err := s.Transition(stream.StatusCompleted); err != nil {
		return err
	}
	if err := u.putStream(s, at); err != nil {
		return err
	}
	if err := u.commit(ctx); err != nil {
		return err
	}

	e.logger.Debug("renewal window lapsed", "stream_id", s.ID)
	return ErrInGracePeriod
}

// TerminateStream lets the creator end an Active stream. The creator
// forfeits anything accrued but not withdrawn, no fee is charged, and the
// subscriber is refunded the whole remaining balance.
func (e *Engine) TerminateStream(ctx context.Context, id uint64) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()
	u := e.begin()

	s, err := u.stream(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := e.authorize(ctx, s.Creator); err != nil {
		return 0, err
	}
	if !s.Active() {
		return 0, ErrAlreadyTerminated
	}
	if _, err := accrual.Earned(s, now); err != nil {
		return 0, err
	}

	refund := s.Remaining()
	if err := s.Transition(stream.StatusTerminated); err != nil {
		return 0, err
	}
	if err := u.close(ctx, s); err != nil {
		return 0, err
	}
	if err := u.putStream(s, at); err != nil {
		return 0, err
	}

	if err := e.settle(ctx, u, "terminate_stream", custody.Transfer{
		Token: s.Token, From: e.custody, To: s.Subscriber, Amount: refund,
	}); err != nil {
		return 0, err
	}

	e.logger.Debug("stream terminated",
		"stream_id", s.ID,
		"refund", refund,
	)
	e.plugins.EmitStreamTerminated(ctx, s, refund)
	return refund, nil
}

// WithdrawAll withdraws from every stream the creator has ever received
// and returns the summed net amount. Each stream settles on its own; one
// that fails is skipped.
func (e *Engine) WithdrawAll(ctx context.Context, creator types.Address) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, now := e.instant()

	if err := e.authorize(ctx, creator); err != nil {
		return 0, err
	}

	ids, err := e.begin().streamIDs(ctx, creatorKey(creator))
	if err != nil {
		return 0, err
	}

	var (
		total   types.Amount
		paid    int
		skipped MultiError
	)
	for _, id := range ids {
		net, err := e.withdraw(ctx, id, at, now, false)
		if err != nil {
			skipped.Add(err)
			continue
		}
		total = total.SaturatingAdd(net)
		paid++
	}

	if skipped.HasErrors() {
		e.logger.Debug("batch withdrawal skipped streams",
			"creator", creator,
			"skipped", len(skipped.Errors),
			"error", skipped,
		)
	}
	e.plugins.EmitBatchWithdrawal(ctx, creator, total, paid)
	return total, nil
}
