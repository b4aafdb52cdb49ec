package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/orbit/store"
)

type entryModel struct {
	grove.BaseModel `grove:"table:orbit_kv"`

	Key       string    `grove:"key,pk"     bson:"_id"`
	Kind      string    `grove:"kind"       bson:"kind"`
	Value     []byte    `grove:"value"      bson:"value"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toEntryModel(key store.Key, value []byte, now time.Time) *entryModel {
	return &entryModel{
		Key:       key.String(),
		Kind:      string(key.Kind),
		Value:     value,
		UpdatedAt: now,
	}
}
