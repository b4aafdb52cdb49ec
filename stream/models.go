// Package stream defines the Stream entity and its lifecycle rules.
package stream

import (
	"github.com/xraph/orbit/types"
)

// Status is the lifecycle state of a Stream.
type Status string

const (
	StatusActive     Status = "active"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// Stream is a time-bounded, rate-based payment commitment from a
// subscriber to a creator.
type Stream struct {
	types.Entity

	ID             uint64        `json:"id" cbor:"id"`
	Subscriber     types.Address `json:"subscriber" cbor:"subscriber"`
	Creator        types.Address `json:"creator" cbor:"creator"`
	Token          types.Address `json:"token" cbor:"token"`
	TotalAmount    types.Amount  `json:"total_amount" cbor:"total_amount"`
	RatePerSecond  types.Amount  `json:"rate_per_second" cbor:"rate_per_second"`
	StartTime      uint64        `json:"start_time" cbor:"start_time"`
	EndTime        uint64        `json:"end_time" cbor:"end_time"`
	Withdrawn      types.Amount  `json:"withdrawn" cbor:"withdrawn"`
	Status         Status        `json:"status" cbor:"status"`
	TierID         uint32        `json:"tier_id" cbor:"tier_id"`
	PlatformWallet types.Address `json:"platform_wallet" cbor:"platform_wallet"`
	AutoRenew      bool          `json:"auto_renew" cbor:"auto_renew"`
	Duration       uint64        `json:"duration_seconds" cbor:"duration_seconds"`

	// RenewedBy is the id of the stream that replaced this one via renewal,
	// or zero.
	RenewedBy uint64 `json:"renewed_by,omitempty" cbor:"renewed_by,omitempty"`
}

// Remaining returns the committed value not yet paid out, floored at zero.
func (s *Stream) Remaining() types.Amount {
	return s.TotalAmount.SaturatingSub(s.Withdrawn)
}

// Expired reports whether the accrual window has closed at now.
func (s *Stream) Expired(now uint64) bool {
	return now >= s.EndTime
}

// Page is a slice of streams returned by paging queries.
type Page struct {
	Streams []*Stream `json:"streams"`
	// Next is the id to resume from, or zero when the scan is exhausted.
	Next uint64 `json:"next,omitempty"`
}
