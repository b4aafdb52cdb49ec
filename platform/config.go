// Package platform holds the ledger-wide configuration record.
package platform

import (
	"github.com/xraph/orbit/fee"
	"github.com/xraph/orbit/types"
)

// DefaultGracePeriod is the renewal window after a stream's end, in
// seconds, applied when none is configured (24h).
const DefaultGracePeriod uint64 = 86_400

// FirstStreamID is the id assigned to the first stream.
const FirstStreamID uint64 = 1

// Config is the single global configuration record. It exists only after
// initialization.
type Config struct {
	types.Entity

	Admin          types.Address `json:"admin" cbor:"admin"`
	PlatformWallet types.Address `json:"platform_wallet" cbor:"platform_wallet"`
	FeeBps         uint32        `json:"fee_bps" cbor:"fee_bps"`
	GracePeriod    uint64        `json:"grace_period_seconds" cbor:"grace_period_seconds"`
	NextStreamID   uint64        `json:"next_stream_id" cbor:"next_stream_id"`
}

// Settings are the optional parameters of initialization. Nil fields take
// their defaults.
type Settings struct {
	FeeBps      *uint32
	GracePeriod *uint64
}

// New builds the initial configuration record.
func New(admin, wallet types.Address, s Settings) (*Config, error) {
	c := &Config{
		Admin:          admin,
		PlatformWallet: wallet,
		FeeBps:         fee.DefaultBps,
		GracePeriod:    DefaultGracePeriod,
		NextStreamID:   FirstStreamID,
	}
	if s.FeeBps != nil {
		if err := fee.ValidateBps(*s.FeeBps); err != nil {
			return nil, err
		}
		c.FeeBps = *s.FeeBps
	}
	if s.GracePeriod != nil {
		c.GracePeriod = *s.GracePeriod
	}
	return c, nil
}
