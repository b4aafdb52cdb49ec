package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
)

// ErrInvalidAddress is returned by Address.Validate.
var ErrInvalidAddress = errors.New("orbit: invalid address")

// Address is an opaque, comparable account identity. The engine never
// interprets it; Validate is offered to edges that accept addresses from
// the outside world.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }

// Validate checks that the address is a Stellar account (G...) or contract
// (C...) strkey.
func (a Address) Validate() error {
	s := string(a)
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	case strings.HasPrefix(s, "G"):
		if _, err := strkey.Decode(strkey.VersionByteAccountID, s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, s, err)
		}
	case strings.HasPrefix(s, "C"):
		if _, err := strkey.Decode(strkey.VersionByteContract, s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, s, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	return nil
}
