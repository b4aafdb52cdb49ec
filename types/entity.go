package types

import "time"

// Entity is the base type for persisted Orbit records with timestamps.
type Entity struct {
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
	UpdatedAt time.Time `json:"updated_at" cbor:"updated_at"`
}

// NewEntity creates a new Entity stamped with the current time.
func NewEntity() Entity {
	return NewEntityAt(time.Now())
}

// NewEntityAt creates a new Entity stamped with t.
func NewEntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{
		CreatedAt: t,
		UpdatedAt: t,
	}
}

// Touch updates the UpdatedAt timestamp to t.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// LastModified returns how long before now the entity was last updated.
func (e Entity) LastModified(now time.Time) time.Duration {
	return now.Sub(e.UpdatedAt)
}
