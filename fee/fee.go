// Package fee splits gross payouts into the creator's net share and the
// platform fee.
package fee

import (
	"errors"

	"github.com/xraph/orbit/types"
)

const (
	// Denominator is the basis-point scale: 10000 bps == 100%.
	Denominator = 10_000

	// DefaultBps is the platform fee applied when none is configured (2%).
	DefaultBps uint32 = 200

	// MaxBps is the highest configurable fee (10%).
	MaxBps uint32 = 1_000
)

// ErrInvalidFee is returned when a basis-point value is outside [0, MaxBps].
var ErrInvalidFee = errors.New("orbit: invalid fee")

// ValidateBps checks that bps is a configurable fee.
func ValidateBps(bps uint32) error {
	if bps > MaxBps {
		return ErrInvalidFee
	}
	return nil
}

// Split divides gross into (net, fee) where fee = floor(gross*bps/10000).
// Negative gross is clamped to zero. net+fee == gross always holds.
func Split(gross types.Amount, bps uint32) (net, platform types.Amount, err error) {
	if gross <= 0 {
		return 0, 0, nil
	}
	if err := ValidateBps(bps); err != nil {
		return 0, 0, err
	}

	scaled, err := gross.CheckedMul(int64(bps))
	if err != nil {
		return 0, 0, err
	}
	platform = scaled / Denominator
	return gross - platform, platform, nil
}
