package orbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/orbit/codec"
	"github.com/xraph/orbit/fee"
	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/store"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// unit is one operation's view of the registry. Reads see the unit's own
// staged writes first; nothing reaches the store until commit.
type unit struct {
	st    store.Store
	batch *store.Batch
}

func (e *Engine) begin() *unit {
	return &unit{st: e.store, batch: store.NewBatch()}
}

func (u *unit) load(ctx context.Context, key store.Key, v any) (bool, error) {
	if op, ok := u.batch.Lookup(key); ok {
		if op.Delete {
			return false, nil
		}
		return true, codec.Unmarshal(op.Value, v)
	}

	data, err := u.st.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("orbit: load %s: %w", key, err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("orbit: decode %s: %w", key, err)
	}
	return true, nil
}

func (u *unit) save(key store.Key, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("orbit: encode %s: %w", key, err)
	}
	u.batch.Set(key, data)
	return nil
}

func (u *unit) drop(key store.Key) {
	u.batch.Remove(key)
}

func (u *unit) commit(ctx context.Context) error {
	if u.batch.Len() == 0 {
		return nil
	}
	if err := u.st.Apply(ctx, u.batch); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────

func (u *unit) config(ctx context.Context) (*platform.Config, error) {
	var cfg platform.Config
	ok, err := u.load(ctx, store.ConfigKey(), &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return &cfg, nil
}

func (u *unit) putConfig(cfg *platform.Config, at time.Time) error {
	cfg.Touch(at)
	return u.save(store.ConfigKey(), cfg)
}

// feeBps returns the configured fee, or the default before initialization.
func (u *unit) feeBps(ctx context.Context) (uint32, error) {
	cfg, err := u.config(ctx)
	if errors.Is(err, ErrNotInitialized) {
		return fee.DefaultBps, nil
	}
	if err != nil {
		return 0, err
	}
	return cfg.FeeBps, nil
}

// gracePeriod returns the configured grace period, or the default before
// initialization.
func (u *unit) gracePeriod(ctx context.Context) (uint64, error) {
	cfg, err := u.config(ctx)
	if errors.Is(err, ErrNotInitialized) {
		return platform.DefaultGracePeriod, nil
	}
	if err != nil {
		return 0, err
	}
	return cfg.GracePeriod, nil
}

// ──────────────────────────────────────────────────
// Streams
// ──────────────────────────────────────────────────

func (u *unit) stream(ctx context.Context, id uint64) (*stream.Stream, error) {
	var s stream.Stream
	ok, err := u.load(ctx, store.StreamKey(id), &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStreamNotFound
	}
	return &s, nil
}

func (u *unit) putStream(s *stream.Stream, at time.Time) error {
	s.Touch(at)
	return u.save(store.StreamKey(s.ID), s)
}

// ──────────────────────────────────────────────────
// Address indices
// ──────────────────────────────────────────────────

func (u *unit) streamIDs(ctx context.Context, key store.Key) ([]uint64, error) {
	var ids []uint64
	if _, err := u.load(ctx, key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// appendStreamID adds id to an append-only address index.
func (u *unit) appendStreamID(ctx context.Context, key store.Key, id uint64) error {
	ids, err := u.streamIDs(ctx, key)
	if err != nil {
		return err
	}
	return u.save(key, append(ids, id))
}

func subscriberKey(a types.Address) store.Key { return store.SubscriberStreamsKey(a.String()) }

func creatorKey(a types.Address) store.Key { return store.CreatorStreamsKey(a.String()) }

// ──────────────────────────────────────────────────
// Active pair and count
// ──────────────────────────────────────────────────

func pairKey(subscriber, creator types.Address) store.Key {
	return store.ActivePairKey(subscriber.String(), creator.String())
}

// activePair returns the id of the Active stream for the pair, if any.
func (u *unit) activePair(ctx context.Context, subscriber, creator types.Address) (uint64, bool, error) {
	var id uint64
	ok, err := u.load(ctx, pairKey(subscriber, creator), &id)
	return id, ok, err
}

func (u *unit) activeCount(ctx context.Context, creator types.Address) (uint64, error) {
	var n uint64
	if _, err := u.load(ctx, store.ActiveCountKey(creator.String()), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// adjustActiveCount moves a creator's active count by one, saturating at
// zero on the way down.
func (u *unit) adjustActiveCount(ctx context.Context, creator types.Address, up bool) error {
	n, err := u.activeCount(ctx, creator)
	if err != nil {
		return err
	}
	switch {
	case up:
		n++
	case n > 0:
		n--
	}
	return u.save(store.ActiveCountKey(creator.String()), n)
}

// open records s as the pair's Active stream and counts it.
func (u *unit) open(ctx context.Context, s *stream.Stream) error {
	if err := u.save(pairKey(s.Subscriber, s.Creator), s.ID); err != nil {
		return err
	}
	return u.adjustActiveCount(ctx, s.Creator, true)
}

// close releases the pair slot held by s and uncounts it. A slot that
// already belongs to a different stream is left alone.
func (u *unit) close(ctx context.Context, s *stream.Stream) error {
	id, ok, err := u.activePair(ctx, s.Subscriber, s.Creator)
	if err != nil {
		return err
	}
	if ok && id != s.ID {
		return nil
	}
	if ok {
		u.drop(pairKey(s.Subscriber, s.Creator))
	}
	return u.adjustActiveCount(ctx, s.Creator, false)
}
