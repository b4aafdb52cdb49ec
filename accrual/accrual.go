// Package accrual computes how much of a stream has been earned at a given
// instant. Every function is pure.
package accrual

import (
	"math"

	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Elapsed returns the accrual seconds at now: min(now, end) - start, or
// zero before start.
func Elapsed(s *stream.Stream, now uint64) uint64 {
	if now < s.StartTime {
		return 0
	}
	upto := now
	if upto > s.EndTime {
		upto = s.EndTime
	}
	return upto - s.StartTime
}

// Earned returns rate_per_second * Elapsed, capped at total_amount. The
// product is checked and reported as types.ErrOverflow instead of
// wrapping. The cap matters after an extension re-spreads the remaining
// balance over the remaining time while start_time stays put.
func Earned(s *stream.Stream, now uint64) (types.Amount, error) {
	elapsed := Elapsed(s, now)
	if elapsed > math.MaxInt64 {
		return 0, types.ErrOverflow
	}
	earned, err := s.RatePerSecond.CheckedMul(int64(elapsed))
	if err != nil {
		return 0, err
	}
	if earned > s.TotalAmount {
		return s.TotalAmount, nil
	}
	return earned, nil
}

// Withdrawable returns earned minus withdrawn, saturating at zero. The
// value is gross of fees.
func Withdrawable(s *stream.Stream, now uint64) (types.Amount, error) {
	earned, err := Earned(s, now)
	if err != nil {
		return 0, err
	}
	return earned.SaturatingSub(s.Withdrawn), nil
}

// Rate returns amount / seconds truncated toward zero. seconds must be
// non-zero.
func Rate(amount types.Amount, seconds uint64) (types.Amount, error) {
	if seconds == 0 || seconds > math.MaxInt64 {
		return 0, types.ErrOverflow
	}
	return amount.CheckedDiv(int64(seconds))
}
