package job

// DefaultPoolSize is the number of slots in a pool when none is configured.
const DefaultPoolSize = 10

// Pool is a fixed-capacity ring of slots. A slot's Stage is its ownership
// token: each stage handler keeps its own cursor and only touches the slot
// under that cursor when the slot is in the handler's stage.
type Pool struct {
	slots []Slot
}

// NewPool creates a pool of size empty slots. Buffers are allocated lazily.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{slots: make([]Slot, size)}
}

// Len returns the number of slots.
func (p *Pool) Len() int { return len(p.slots) }

// Slot returns the slot at index i.
func (p *Pool) Slot(i int) *Slot { return &p.slots[i] }

// Next returns the index following i, wrapping around.
func (p *Pool) Next(i int) int { return (i + 1) % len(p.slots) }

// Walk calls fn on every slot from index from through index to, inclusive,
// wrapping around the ring.
func (p *Pool) Walk(from, to int, fn func(i int, s *Slot)) {
	for i := from; ; i = p.Next(i) {
		fn(i, &p.slots[i])
		if i == to {
			return
		}
	}
}

// Idle reports whether every slot is back in StageLoad.
func (p *Pool) Idle() bool {
	for i := range p.slots {
		if p.slots[i].Stage != StageLoad {
			return false
		}
	}
	return true
}

// SetBufferLimit bounds every slot buffer to limit bytes.
func (p *Pool) SetBufferLimit(limit int) {
	for i := range p.slots {
		p.slots[i].Raw.SetLimit(limit)
		p.slots[i].Compressed.SetLimit(limit)
		p.slots[i].Decompressed.SetLimit(limit)
	}
}
