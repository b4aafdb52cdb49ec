package orbit

import (
	"errors"
	"fmt"

	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/fee"
	"github.com/xraph/orbit/types"
)

// Sentinel errors for the stream ledger. Each aborts only the current
// operation and leaves no partial state behind.
var (
	// Stream errors
	ErrStreamNotFound      = errors.New("orbit: stream not found")
	ErrNotAuthorized       = auth.ErrNotAuthorized
	ErrStreamNotActive     = errors.New("orbit: stream not active")
	ErrInvalidAmount       = types.ErrInvalidAmount
	ErrInvalidDuration     = errors.New("orbit: invalid duration")
	ErrInsufficientBalance = errors.New("orbit: insufficient balance")
	ErrStreamAlreadyExists = errors.New("orbit: active stream already exists for pair")
	ErrNotInitialized      = errors.New("orbit: not initialized")
	ErrOverflow            = types.ErrOverflow
	ErrInvalidFee          = fee.ErrInvalidFee
	ErrInGracePeriod       = errors.New("orbit: renewal grace period lapsed")
	ErrRenewalFailed       = errors.New("orbit: renewal failed")
	ErrAlreadyTerminated   = errors.New("orbit: stream already terminated")

	// Admin errors
	ErrAlreadyInitialized = errors.New("orbit: already initialized")

	// Store errors
	ErrNotFound          = errors.New("orbit: not found")
	ErrStoreClosed       = errors.New("orbit: store is closed")
	ErrTransactionFailed = errors.New("orbit: transaction failed")
	ErrMigrationFailed   = errors.New("orbit: migration failed")

	// Transfer errors
	ErrTransferFailed = errors.New("orbit: transfer failed")
)

// codes maps stream errors to the numeric codes used by the on-chain
// contract these semantics come from.
var codes = []struct {
	err  error
	code int
}{
	{ErrStreamNotFound, 1},
	{ErrNotAuthorized, 2},
	{ErrStreamNotActive, 3},
	{ErrInvalidAmount, 4},
	{ErrInvalidDuration, 5},
	{ErrInsufficientBalance, 6},
	{ErrStreamAlreadyExists, 7},
	{ErrNotInitialized, 8},
	{ErrOverflow, 9},
	{ErrInvalidFee, 10},
	{ErrInGracePeriod, 11},
	{ErrRenewalFailed, 12},
	{ErrAlreadyTerminated, 13},
}

// Code returns the numeric error code for err, or 0 if err is not a
// stream error.
func Code(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return 0
}

// ValidationError represents an input validation failure with details. It
// unwraps to the matching sentinel.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("orbit: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel the validation failure maps to.
func (e ValidationError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "orbit: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("orbit: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStreamNotFound)
}

// IsStateError returns true if the operation was refused because of the
// stream's or ledger's current state.
func IsStateError(err error) bool {
	return errors.Is(err, ErrStreamNotActive) ||
		errors.Is(err, ErrAlreadyTerminated) ||
		errors.Is(err, ErrStreamAlreadyExists) ||
		errors.Is(err, ErrInGracePeriod) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrAlreadyInitialized)
}

// IsValidationError returns true if the error is caused by bad input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidFee) ||
		errors.Is(err, types.ErrInvalidAddress)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried. Time-gated failures such as an early renewal are not
// retryable here; the caller decides when to try again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreClosed) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransferFailed)
}
