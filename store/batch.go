package store

// Op is a single staged write. Delete ops carry no value.
type Op struct {
	Key    Key
	Value  []byte
	Delete bool
}

// Batch is an ordered set of writes committed atomically by Store.Apply.
// A later write to the same key replaces the earlier one, so each key
// appears at most once.
type Batch struct {
	ops   []Op
	index map[Key]int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{index: make(map[Key]int)}
}

// Set stages value under key.
func (b *Batch) Set(key Key, value []byte) {
	b.put(Op{Key: key, Value: value})
}

// Remove stages the deletion of key.
func (b *Batch) Remove(key Key) {
	b.put(Op{Key: key, Delete: true})
}

func (b *Batch) put(op Op) {
	if b.index == nil {
		b.index = make(map[Key]int)
	}
	if i, ok := b.index[op.Key]; ok {
		b.ops[i] = op
		return
	}
	b.index[op.Key] = len(b.ops)
	b.ops = append(b.ops, op)
}

// Lookup returns the staged op for key, if any.
func (b *Batch) Lookup(key Key) (Op, bool) {
	i, ok := b.index[key]
	if !ok {
		return Op{}, false
	}
	return b.ops[i], true
}

// Ops returns the staged operations in first-write order.
func (b *Batch) Ops() []Op {
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// Len returns the number of distinct keys staged.
func (b *Batch) Len() int { return len(b.ops) }
