// Package types provides common value types used across Orbit.
package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// ErrOverflow is returned by checked Amount arithmetic when the result does
// not fit in 64 bits.
var ErrOverflow = errors.New("orbit: arithmetic overflow")

// ErrInvalidAmount is returned when a decimal string cannot be represented
// as an Amount at the requested precision.
var ErrInvalidAmount = errors.New("orbit: invalid amount")

// MaxAmount is the largest representable Amount.
const MaxAmount = Amount(math.MaxInt64)

// Amount is a token quantity in the asset's smallest unit (for example
// stroops). All arithmetic is integer-only.
type Amount int64

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// Int64 returns the raw smallest-unit value.
func (a Amount) Int64() int64 { return int64(a) }

// CheckedAdd returns a+b or ErrOverflow.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, ErrOverflow
	}
	return s, nil
}

// CheckedSub returns a-b or ErrOverflow.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, ErrOverflow
	}
	return d, nil
}

// CheckedMul returns a*n or ErrOverflow.
func (a Amount) CheckedMul(n int64) (Amount, error) {
	if a == 0 || n == 0 {
		return 0, nil
	}
	p := int64(a) * n
	if p/n != int64(a) || (int64(a) == -1 && n == math.MinInt64) || (n == -1 && int64(a) == math.MinInt64) {
		return 0, ErrOverflow
	}
	return Amount(p), nil
}

// CheckedDiv returns a/n truncated toward zero. Division by zero and the
// single overflowing quotient are reported as ErrOverflow.
func (a Amount) CheckedDiv(n int64) (Amount, error) {
	if n == 0 || (a == math.MinInt64 && n == -1) {
		return 0, ErrOverflow
	}
	return Amount(int64(a) / n), nil
}

// SaturatingSub returns a-b, floored at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	d, err := a.CheckedSub(b)
	if err != nil {
		if b > 0 {
			return 0
		}
		return MaxAmount
	}
	if d < 0 {
		return 0
	}
	return d
}

// SaturatingAdd returns a+b, clamped to the representable range.
func (a Amount) SaturatingAdd(b Amount) Amount {
	s, err := a.CheckedAdd(b)
	if err != nil {
		if b > 0 {
			return MaxAmount
		}
		return math.MinInt64
	}
	return s
}

// String returns the integer smallest-unit representation.
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// Format renders the amount in major units with the given number of
// decimal places, e.g. Amount(12345678).Format(7) == "1.2345678".
func (a Amount) Format(decimals uint32) string {
	return apd.New(int64(a), -int32(decimals)).Text('f')
}

// ParseAmount parses a major-unit decimal string ("1.5") into smallest
// units at the given precision. Values with more fractional digits than
// decimals are rejected rather than rounded.
func ParseAmount(s string, decimals uint32) (Amount, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Form != apd.Finite {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	ctx := apd.BaseContext.WithPrecision(40)
	var scaled apd.Decimal
	cond, err := ctx.Quantize(&scaled, d, -int32(decimals))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if cond.Inexact() {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}

	scaled.Exponent = 0
	v, err := scaled.Int64()
	if err != nil {
		return 0, ErrOverflow
	}
	return Amount(v), nil
}

// Sum adds amounts with overflow checking.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = total.CheckedAdd(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
