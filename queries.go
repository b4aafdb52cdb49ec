package orbit

import (
	"context"

	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/store"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// GetStream returns the stream with the given id.
func (e *Engine) GetStream(ctx context.Context, id uint64) (*stream.Stream, error) {
	return e.begin().stream(ctx, id)
}

// GetSubscriberStreams returns every stream id the address has paid into,
// oldest first.
func (e *Engine) GetSubscriberStreams(ctx context.Context, subscriber types.Address) ([]uint64, error) {
	return e.begin().streamIDs(ctx, subscriberKey(subscriber))
}

// GetCreatorStreams returns every stream id the address has been paid by,
// oldest first.
func (e *Engine) GetCreatorStreams(ctx context.Context, creator types.Address) ([]uint64, error) {
	return e.begin().streamIDs(ctx, creatorKey(creator))
}

// HasActiveStream reports whether the pair currently has an Active stream.
func (e *Engine) HasActiveStream(ctx context.Context, subscriber, creator types.Address) (bool, error) {
	has, err := e.store.Has(ctx, store.ActivePairKey(subscriber.String(), creator.String()))
	if err != nil {
		return false, err
	}
	return has, nil
}

// ActiveStreamID returns the id of the pair's Active stream, if any.
func (e *Engine) ActiveStreamID(ctx context.Context, subscriber, creator types.Address) (uint64, bool, error) {
	return e.begin().activePair(ctx, subscriber, creator)
}

// GetTotalAccrued sums the net withdrawable amount across the creator's
// streams. Streams that cannot be evaluated are skipped.
func (e *Engine) GetTotalAccrued(ctx context.Context, creator types.Address) (types.Amount, error) {
	_, now := e.instant()
	u := e.begin()

	ids, err := u.streamIDs(ctx, creatorKey(creator))
	if err != nil {
		return 0, err
	}

	var total types.Amount
	for _, id := range ids {
		net, err := e.withdrawable(ctx, u, id, now)
		if err != nil {
			continue
		}
		total = total.SaturatingAdd(net)
	}
	return total, nil
}

// GetActiveSubscriberCount returns how many Active streams pay creator.
func (e *Engine) GetActiveSubscriberCount(ctx context.Context, creator types.Address) (uint64, error) {
	return e.begin().activeCount(ctx, creator)
}

// FeeBps returns the platform fee in basis points, or the default before
// initialization.
func (e *Engine) FeeBps(ctx context.Context) (uint32, error) {
	return e.begin().feeBps(ctx)
}

// GracePeriod returns the renewal window in seconds, or the default before
// initialization.
func (e *Engine) GracePeriod(ctx context.Context) (uint64, error) {
	return e.begin().gracePeriod(ctx)
}

// Config returns the global configuration record.
func (e *Engine) Config(ctx context.Context) (*platform.Config, error) {
	return e.begin().config(ctx)
}

// Streams returns up to limit streams with id >= from, in id order. Page.Next
// is the id to resume from, or zero when no streams remain.
func (e *Engine) Streams(ctx context.Context, from uint64, limit int) (*stream.Page, error) {
	u := e.begin()
	cfg, err := u.config(ctx)
	if err != nil {
		return nil, err
	}
	if from < platform.FirstStreamID {
		from = platform.FirstStreamID
	}
	if limit <= 0 {
		limit = 100
	}

	page := &stream.Page{}
	id := from
	for ; id < cfg.NextStreamID && len(page.Streams) < limit; id++ {
		s, err := u.stream(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		page.Streams = append(page.Streams, s)
	}
	if id < cfg.NextStreamID {
		page.Next = id
	}
	return page, nil
}
