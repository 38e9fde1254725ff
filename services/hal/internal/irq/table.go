// services/hal/internal/irq/table.go
package irq

import (
	"errors"
	"sync"
	"sync/atomic"

	"spiclk-go/services/hal/internal/halcore"
)

var (
	ErrInvalidVector = errors.New("invalid_vector")
	ErrVectorInUse   = errors.New("vector_in_use")
)

// Table is a software interrupt vector table.
//
// Handlers are installed per vector and invoked by Raise from whichever
// goroutine models the hardware. Dispatch is serialised: two handlers never
// run at the same time, matching a single-core NVIC where interrupts preempt
// the main context but not each other.
type Table struct {
	mu       sync.RWMutex
	handlers map[halcore.Vector]*entry

	dispatch sync.Mutex

	spurious uint32 // raises with no enabled handler
}

type entry struct {
	h       halcore.Handler
	enabled bool
}

var _ halcore.Raiser = (*Table)(nil)

func New() *Table {
	return &Table{handlers: make(map[halcore.Vector]*entry)}
}

// SetVector installs h on v (disabled) and returns a function that removes
// it again. The remover is idempotent and only removes this installation.
func (t *Table) SetVector(v halcore.Vector, h halcore.Handler) (func(), error) {
	if v == 0 || h == nil {
		return nil, ErrInvalidVector
	}
	e := &entry{h: h}

	t.mu.Lock()
	if _, taken := t.handlers[v]; taken {
		t.mu.Unlock()
		return nil, ErrVectorInUse
	}
	t.handlers[v] = e
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if cur, ok := t.handlers[v]; ok && cur == e {
				delete(t.handlers, v)
			}
			t.mu.Unlock()
		})
	}, nil
}

// Enable unmasks v. It is a no-op when no handler is installed.
func (t *Table) Enable(v halcore.Vector) { t.setEnabled(v, true) }

// Disable masks v without removing its handler.
func (t *Table) Disable(v halcore.Vector) { t.setEnabled(v, false) }

func (t *Table) setEnabled(v halcore.Vector, on bool) {
	t.mu.Lock()
	if e, ok := t.handlers[v]; ok {
		e.enabled = on
	}
	t.mu.Unlock()
}

// Installed reports whether a handler is installed on v.
func (t *Table) Installed(v halcore.Vector) bool {
	t.mu.RLock()
	_, ok := t.handlers[v]
	t.mu.RUnlock()
	return ok
}

// Raise dispatches v. It reports false when v is masked or has no handler.
func (t *Table) Raise(v halcore.Vector) bool {
	t.dispatch.Lock()
	defer t.dispatch.Unlock()

	t.mu.RLock()
	e, ok := t.handlers[v]
	var h halcore.Handler
	if ok && e.enabled {
		h = e.h
	}
	t.mu.RUnlock()

	if h == nil {
		atomic.AddUint32(&t.spurious, 1)
		return false
	}
	h()
	return true
}

// Spurious counts raises that found no enabled handler.
func (t *Table) Spurious() uint32 { return atomic.LoadUint32(&t.spurious) }
