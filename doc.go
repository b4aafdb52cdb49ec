// Package orbit provides a time-based payment-streaming ledger for Go
// applications.
//
// A subscriber deposits a lump sum that accrues to a creator continuously
// over a fixed duration at a fixed rate. The creator withdraws what has
// accrued, less a platform fee. Either party can end the stream early and
// the remaining balance is settled pro rata.
//
// Orbit is a library. Persistence, authorization and value transfer are
// collaborators injected into the Engine:
//
//   - store.Store: a key-value map (memory, PostgreSQL, SQLite, MongoDB)
//   - auth.Authorizer: proves the caller may act as an identity
//   - custody.Transferer: moves tokens between accounts
//   - plugin.Plugin: receives events after each committed operation
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/orbit"
//	    "github.com/xraph/orbit/auth"
//	    custodymem "github.com/xraph/orbit/custody/memory"
//	    "github.com/xraph/orbit/platform"
//	    "github.com/xraph/orbit/store/memory"
//	)
//
//	book := custodymem.New()
//	engine := orbit.New(memory.New(),
//	    orbit.WithTransferer(book),
//	    orbit.WithAuthorizer(auth.NewContextAuthorizer()),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	err := engine.Initialize(auth.WithCaller(ctx, admin), admin, wallet, platform.Settings{})
//
//	id, err := engine.CreateStream(auth.WithCaller(ctx, subscriber), orbit.CreateParams{
//	    Subscriber: subscriber,
//	    Creator:    creator,
//	    Token:      token,
//	    Amount:     1_000_000,
//	    Duration:   30 * 24 * 3600,
//	})
//
// # Accrual
//
// A stream earns rate_per_second for every second between start_time and
// end_time. The rate is amount / duration truncated toward zero; the
// truncation residue goes back to the subscriber on cancel or terminate.
// Every product is checked and reported as ErrOverflow rather than
// wrapping, and differences that can go negative because of timing
// saturate at zero.
//
// # Lifecycle
//
// A stream starts Active and moves once to Completed, Cancelled or
// Terminated. A Completed stream still accepts a final withdrawal. At most
// one Active stream exists for each (subscriber, creator) pair.
//
// Auto-renewing streams can be replaced after they end, within the grace
// period, by RenewStream. The keeper package runs that sweep periodically.
//
// # Integration
//
// The extension package mounts the engine in a Forge application, the api
// package serves it over HTTP, and cmd/orbitd runs it as a daemon.
package orbit
