package orbit

import (
	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Address is re-exported from types package.
type Address = types.Address

// Entity is re-exported from types package.
type Entity = types.Entity

// Stream is re-exported from stream package.
type Stream = stream.Stream

// Status is re-exported from stream package.
type Status = stream.Status

// Settings is re-exported from platform package.
type Settings = platform.Settings

// Re-export stream statuses.
const (
	StatusActive     = stream.StatusActive
	StatusCancelled  = stream.StatusCancelled
	StatusCompleted  = stream.StatusCompleted
	StatusTerminated = stream.StatusTerminated
)

// Re-export helpers.
var (
	ParseAmount = types.ParseAmount
	NewEntity   = types.NewEntity
)
