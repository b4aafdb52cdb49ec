// Package auth provides the authorization collaborator. The engine asks it
// to prove that the caller controls a specific identity exactly once per
// operation, before anything is mutated or transferred.
package auth

import (
	"context"
	"errors"

	"github.com/xraph/orbit/types"
)

// ErrNotAuthorized is returned when the caller cannot act as the required
// identity.
var ErrNotAuthorized = errors.New("orbit: not authorized")

// Authorizer aborts a call unless the caller can act as identity.
type Authorizer interface {
	Require(ctx context.Context, identity types.Address) error
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(ctx context.Context, identity types.Address) error

// Require implements Authorizer.
func (f AuthorizerFunc) Require(ctx context.Context, identity types.Address) error {
	return f(ctx, identity)
}

// AllowAll returns an Authorizer that accepts every caller. Use it only
// when an outer layer has already established authority.
func AllowAll() Authorizer {
	return AuthorizerFunc(func(context.Context, types.Address) error { return nil })
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, caller types.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the authenticated caller carried by ctx.
func CallerFrom(ctx context.Context) (types.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(types.Address)
	if !ok || caller.IsZero() {
		return "", false
	}
	return caller, true
}

// ContextAuthorizer authorizes the caller placed in the context by
// WithCaller, typically by the signature middleware.
type ContextAuthorizer struct {
	delegates map[types.Address]struct{}
}

// Option configures a ContextAuthorizer.
type Option func(*ContextAuthorizer)

// WithDelegate lets the given callers act for any identity. The renewal
// keeper runs under such an identity.
func WithDelegate(callers ...types.Address) Option {
	return func(a *ContextAuthorizer) {
		for _, c := range callers {
			if !c.IsZero() {
				a.delegates[c] = struct{}{}
			}
		}
	}
}

// NewContextAuthorizer creates a ContextAuthorizer.
func NewContextAuthorizer(opts ...Option) *ContextAuthorizer {
	a := &ContextAuthorizer{delegates: make(map[types.Address]struct{})}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Require implements Authorizer.
func (a *ContextAuthorizer) Require(ctx context.Context, identity types.Address) error {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return ErrNotAuthorized
	}
	if caller == identity {
		return nil
	}
	if _, ok := a.delegates[caller]; ok {
		return nil
	}
	return ErrNotAuthorized
}
