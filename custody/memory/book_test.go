package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/orbit/custody"
	"github.com/xraph/orbit/custody/memory"
	"github.com/xraph/orbit/types"
)

const (
	token = types.Address("token")
	alice = types.Address("alice")
	bob   = types.Address("bob")
	carol = types.Address("carol")
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	if err := b.Mint(alice, token, 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	r, err := b.Transfer(ctx, token, alice, bob, 40)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if r.ID.IsNil() || r.Amount != 40 {
		t.Errorf("unexpected receipt %+v", r)
	}
	if got := b.Balance(alice, token); got != 60 {
		t.Errorf("alice = %d, want 60", got)
	}
	if got := b.Balance(bob, token); got != 40 {
		t.Errorf("bob = %d, want 40", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	b := memory.New()
	_ = b.Mint(alice, token, 10)

	_, err := b.Transfer(context.Background(), token, alice, bob, 11)
	if !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := b.Balance(alice, token); got != 10 {
		t.Errorf("alice = %d, want unchanged 10", got)
	}
}

func TestTransferBatchAllOrNothing(t *testing.T) {
	b := memory.New()
	_ = b.Mint(alice, token, 100)

	_, err := b.TransferBatch(context.Background(), []custody.Transfer{
		{Token: token, From: alice, To: bob, Amount: 70},
		{Token: token, From: alice, To: carol, Amount: 40},
	})
	if !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := b.Balance(alice, token); got != 100 {
		t.Errorf("alice = %d, want 100", got)
	}
	if got := b.Balance(bob, token); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
	if n := len(b.Receipts()); n != 0 {
		t.Errorf("expected no receipts, got %d", n)
	}
}

func TestTransferBatchChained(t *testing.T) {
	b := memory.New()
	_ = b.Mint(alice, token, 50)

	rs, err := b.TransferBatch(context.Background(), []custody.Transfer{
		{Token: token, From: alice, To: bob, Amount: 50},
		{Token: token, From: bob, To: carol, Amount: 20},
	})
	if err != nil {
		t.Fatalf("TransferBatch: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(rs))
	}
	if got := b.Balance(bob, token); got != 30 {
		t.Errorf("bob = %d, want 30", got)
	}
	if got := b.Balance(carol, token); got != 20 {
		t.Errorf("carol = %d, want 20", got)
	}
}

func TestExecuteSkipsEmptyLegs(t *testing.T) {
	b := memory.New()
	_ = b.Mint(alice, token, 10)

	rs, err := custody.Execute(context.Background(), b,
		custody.Transfer{Token: token, From: alice, To: bob, Amount: 0},
		custody.Transfer{Token: token, From: alice, To: carol, Amount: 10},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rs) != 1 || rs[0].To != carol {
		t.Errorf("unexpected receipts %+v", rs)
	}
}

// sequential hides the Batcher implementation of a Book and fails any
// transfer into a frozen account.
type sequential struct {
	book   *memory.Book
	frozen map[types.Address]bool
	calls  int
}

func (s *sequential) Transfer(ctx context.Context, tok, from, to types.Address, amt types.Amount) (custody.Receipt, error) {
	s.calls++
	if s.frozen[to] || s.frozen[from] {
		return custody.Receipt{}, errors.New("account frozen")
	}
	return s.book.Transfer(ctx, tok, from, to, amt)
}

func TestExecuteSequentialReversesAppliedLegs(t *testing.T) {
	b := memory.New()
	_ = b.Mint(alice, token, 10)
	seq := &sequential{book: b, frozen: map[types.Address]bool{carol: true}}

	rs, err := custody.Execute(context.Background(), seq,
		custody.Transfer{Token: token, From: alice, To: bob, Amount: 3},
		custody.Transfer{Token: token, From: alice, To: carol, Amount: 2},
		custody.Transfer{Token: token, From: alice, To: bob, Amount: 1},
	)
	if err == nil || errors.Is(err, custody.ErrReversalFailed) {
		t.Fatalf("expected a plain transfer error, got %v", err)
	}
	if len(rs) != 0 {
		t.Errorf("receipts = %d, want 0", len(rs))
	}
	// forward to bob, failed carol, reversal of bob
	if seq.calls != 3 {
		t.Errorf("calls = %d, want 3", seq.calls)
	}
	if a, bb := b.Balance(alice, token), b.Balance(bob, token); a != 10 || bb != 0 {
		t.Errorf("alice = %d, bob = %d; want 10, 0", a, bb)
	}
}

func TestExecuteSequentialReversalFailure(t *testing.T) {
	var calls int
	f := custody.Func(func(_ context.Context, tok, from, to types.Address, amt types.Amount) (custody.Receipt, error) {
		calls++
		if to == carol || from == bob {
			return custody.Receipt{}, custody.ErrInsufficientFunds
		}
		return custody.Receipt{Transfer: custody.Transfer{Token: tok, From: from, To: to, Amount: amt}}, nil
	})

	rs, err := custody.Execute(context.Background(), f,
		custody.Transfer{Token: token, From: alice, To: bob, Amount: 1},
		custody.Transfer{Token: token, From: alice, To: carol, Amount: 1},
	)
	if !errors.Is(err, custody.ErrInsufficientFunds) || !errors.Is(err, custody.ErrReversalFailed) {
		t.Fatalf("expected insufficient funds and reversal failure, got %v", err)
	}
	if calls != 3 || len(rs) != 1 || rs[0].To != bob {
		t.Errorf("calls = %d, receipts = %+v", calls, rs)
	}
}

func TestMintRejectsNegative(t *testing.T) {
	b := memory.New()
	if err := b.Mint(alice, token, -1); !errors.Is(err, custody.ErrInvalidTransfer) {
		t.Fatalf("expected ErrInvalidTransfer, got %v", err)
	}
}
