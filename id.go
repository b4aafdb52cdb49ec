package orbit

import "github.com/xraph/orbit/id"

// ID is the TypeID used for Orbit records other than streams.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
