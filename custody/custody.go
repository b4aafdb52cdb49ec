// Package custody defines the value-transfer collaborator. The engine moves
// tokens between the subscriber, the ledger's own custody account, the
// creator and the platform wallet only through a Transferer.
package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/orbit/id"
	"github.com/xraph/orbit/types"
)

// Errors returned by custody backends.
var (
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	ErrInvalidTransfer   = errors.New("custody: invalid transfer")
	ErrReversalFailed    = errors.New("custody: reversal failed")
)

// Transfer describes one movement of Amount units of Token.
type Transfer struct {
	Token  types.Address `json:"token"`
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
}

// Validate reports whether the transfer can be attempted at all.
func (t Transfer) Validate() error {
	switch {
	case t.Token.IsZero(), t.From.IsZero(), t.To.IsZero():
		return fmt.Errorf("%w: missing party", ErrInvalidTransfer)
	case !t.Amount.IsPositive():
		return fmt.Errorf("%w: amount %s", ErrInvalidTransfer, t.Amount)
	}
	return nil
}

// Receipt records a completed transfer.
type Receipt struct {
	ID id.TransferID `json:"id"`
	Transfer
	At time.Time `json:"at"`
}

// NewReceipt stamps a receipt for t.
func NewReceipt(t Transfer, at time.Time) Receipt {
	return Receipt{ID: id.NewTransferID(), Transfer: t, At: at.UTC()}
}

// Transferer moves value between accounts. A failed transfer leaves both
// balances unchanged.
type Transferer interface {
	Transfer(ctx context.Context, token, from, to types.Address, amount types.Amount) (Receipt, error)
}

// Batcher is implemented by backends that can apply several transfers as
// one all-or-nothing unit.
type Batcher interface {
	TransferBatch(ctx context.Context, transfers []Transfer) ([]Receipt, error)
}

// Execute applies transfers through t. Legs with a non-positive amount are
// skipped. When t is a Batcher the remaining legs are applied atomically.
// Otherwise they run in order; on the first failure the legs already applied
// are reversed in reverse order and the error is returned with no receipts.
// If a reversal also fails, the error wraps ErrReversalFailed and the
// receipts of the legs that are still applied are returned.
func Execute(ctx context.Context, t Transferer, transfers ...Transfer) ([]Receipt, error) {
	legs := make([]Transfer, 0, len(transfers))
	for _, tr := range transfers {
		if tr.Amount.IsPositive() {
			legs = append(legs, tr)
		}
	}
	if len(legs) == 0 {
		return nil, nil
	}

	if b, ok := t.(Batcher); ok {
		return b.TransferBatch(ctx, legs)
	}

	receipts := make([]Receipt, 0, len(legs))
	for _, leg := range legs {
		r, err := t.Transfer(ctx, leg.Token, leg.From, leg.To, leg.Amount)
		if err != nil {
			if stuck, rerr := reverse(ctx, t, legs[:len(receipts)], receipts); rerr != nil {
				return stuck, fmt.Errorf("%w: %w: %w", err, ErrReversalFailed, rerr)
			}
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

// reverse undoes applied legs newest first. It returns the receipts of the
// legs that remain applied when a compensating transfer fails.
func reverse(ctx context.Context, t Transferer, applied []Transfer, receipts []Receipt) ([]Receipt, error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		leg := applied[i]
		if _, err := t.Transfer(ctx, leg.Token, leg.To, leg.From, leg.Amount); err != nil {
			return receipts[:i+1], err
		}
	}
	return nil, nil
}

// Func adapts a plain function to Transferer.
type Func func(ctx context.Context, token, from, to types.Address, amount types.Amount) (Receipt, error)

// Transfer implements Transferer.
func (f Func) Transfer(ctx context.Context, token, from, to types.Address, amount types.Amount) (Receipt, error) {
	return f(ctx, token, from, to, amount)
}
