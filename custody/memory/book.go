// Package memory provides an in-process custody book. It is intended for
// tests, development and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/types"
)

// Compile-time interface checks.
var (
	_ custody.Transferer = (*Book)(nil)
	_ custody.Batcher    = (*Book)(nil)
)

type account struct {
	holder types.Address
	token  types.Address
}

// Book is a thread-safe balance book keyed by (holder, token).
type Book struct {
	mu       sync.Mutex
	balances map[account]types.Amount
	receipts []custody.Receipt
	now      func() time.Time
}

// Option configures a Book.
type Option func(*Book)

// WithNow sets the time source used to stamp receipts.
func WithNow(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// New creates an empty Book.
func New(opts ...Option) *Book {
	b := &Book{
		balances: make(map[account]types.Amount),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mint credits amount of token to holder out of thin air.
func (b *Book) Mint(holder, token types.Address, amount types.Amount) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: mint %s", custody.ErrInvalidTransfer, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	k := account{holder, token}
	next, err := b.balances[k].CheckedAdd(amount)
	if err != nil {
		return err
	}
	b.balances[k] = next
	return nil
}

// Balance returns holder's balance of token.
func (b *Book) Balance(holder, token types.Address) types.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account{holder, token}]
}

// Receipts returns a copy of every receipt issued so far, oldest first.
func (b *Book) Receipts() []custody.Receipt {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]custody.Receipt, len(b.receipts))
	copy(out, b.receipts)
	return out
}

// Transfer implements custody.Transferer.
func (b *Book) Transfer(ctx context.Context, token, from, to types.Address, amount types.Amount) (custody.Receipt, error) {
	rs, err := b.TransferBatch(ctx, []custody.Transfer{{Token: token, From: from, To: to, Amount: amount}})
	if err != nil {
		return custody.Receipt{}, err
	}
	return rs[0], nil
}

// TransferBatch implements custody.Batcher. Every leg is checked against
// the running balances before any of them is applied.
func (b *Book) TransferBatch(ctx context.Context, transfers []custody.Transfer) ([]custody.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(map[account]types.Amount)
	balance := func(k account) types.Amount {
		if v, ok := staged[k]; ok {
			return v
		}
		return b.balances[k]
	}

	for _, t := range transfers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		src := account{t.From, t.Token}
		dst := account{t.To, t.Token}

		have := balance(src)
		if have < t.Amount {
			return nil, fmt.Errorf("%w: %s holds %s of %s, needs %s",
				custody.ErrInsufficientFunds, t.From, have, t.Token, t.Amount)
		}
		staged[src] = have - t.Amount

		credited, err := balance(dst).CheckedAdd(t.Amount)
		if err != nil {
			return nil, err
		}
		staged[dst] = credited
	}

	for k, v := range staged {
		b.balances[k] = v
	}
	at := b.now()
	receipts := make([]custody.Receipt, 0, len(transfers))
	for _, t := range transfers {
		receipts = append(receipts, custody.NewReceipt(t, at))
	}
	b.receipts = append(b.receipts, receipts...)
	return receipts, nil
}
