package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/orbit/store"
)

// entryModel is one row of the key-value table. Removed keys are kept as
// tombstones so a batch can be written as a single upsert.
type entryModel struct {
	grove.BaseModel `grove:"table:orbit_kv"`

	Key       string    `grove:"key,pk"`
	Kind      string    `grove:"kind"`
	Value     []byte    `grove:"value"`
	Deleted   bool      `grove:"deleted"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toEntryModel(op store.Op, now time.Time) entryModel {
	m := entryModel{
		Key:       op.Key.String(),
		Kind:      string(op.Key.Kind),
		Deleted:   op.Delete,
		UpdatedAt: now,
	}
	if !op.Delete {
		m.Value = op.Value
	}
	return m
}
