// Package fifo provides a single-producer, single-consumer ring of words,
// shaped like a peripheral data FIFO: fixed depth, non-blocking push/pop.
package fifo

import "sync/atomic"

// Ring is a single-producer, single-consumer ring.
type Ring[T any] struct {
	buf  []T
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)
}

// New returns a ring of the given depth, which must be a power of two >= 2.
func New[T any](depth int) *Ring[T] {
	if depth < 2 || (depth&(depth-1)) != 0 {
		panic("fifo: depth must be power of two >= 2")
	}
	return &Ring[T]{
		buf:  make([]T, depth),
		mask: uint32(depth - 1),
	}
}

func (r *Ring[T]) depth() uint32 { return uint32(len(r.buf)) }

// Len returns the number of queued entries.
func (r *Ring[T]) Len() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Space returns the number of free slots.
func (r *Ring[T]) Space() int { return len(r.buf) - r.Len() }

// Push appends v; false when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if wr-rd >= r.depth() {
		return false
	}
	r.buf[wr&r.mask] = v
	r.wr.Store(wr + 1) // release
	return true
}

// Pop removes the oldest entry; false when empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	if wr == rd {
		return zero, false
	}
	v := r.buf[rd&r.mask]
	r.buf[rd&r.mask] = zero
	r.rd.Store(rd + 1) // release
	return v, true
}

// Reset drops all entries. Only safe when neither side is active.
func (r *Ring[T]) Reset() {
	r.rd.Store(r.wr.Load())
}
