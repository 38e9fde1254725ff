// services/hal/internal/dma/allocator.go
package dma

import (
	"errors"
	"sync"

	"spiclk-go/services/hal/internal/halcore"
)

var (
	ErrNoChannel = errors.New("no_free_channel")
	ErrNoDMA     = errors.New("no_dma_controller")
)

// Binding is an exclusive reservation of one channel and its vector for
// one transfer direction.
type Binding struct {
	Channel int
	Vector  halcore.Vector
	Dir     halcore.Direction
	Owner   string

	token uint64
}

// Valid reports whether b came from Acquire.
func (b Binding) Valid() bool { return b.token != 0 }

type owner struct {
	devID string
	token uint64
}

// Allocator hands out channels of one controller. A channel has at most
// one owner; Release with a stale binding is a no-op.
type Allocator struct {
	ctrl halcore.DMAController

	mu     sync.Mutex
	owners map[int]owner
	next   uint64
}

func NewAllocator(ctrl halcore.DMAController) *Allocator {
	return &Allocator{ctrl: ctrl, owners: make(map[int]owner)}
}

func (a *Allocator) Controller() halcore.DMAController { return a.ctrl }

// Acquire reserves the lowest free channel for devID.
func (a *Allocator) Acquire(devID string, dir halcore.Direction) (Binding, error) {
	if a == nil || a.ctrl == nil {
		return Binding{}, ErrNoDMA
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := 0; ch < a.ctrl.Channels(); ch++ {
		if _, taken := a.owners[ch]; taken {
			continue
		}
		a.next++
		a.owners[ch] = owner{devID: devID, token: a.next}
		return Binding{
			Channel: ch,
			Vector:  a.ctrl.Vector(ch),
			Dir:     dir,
			Owner:   devID,
			token:   a.next,
		}, nil
	}
	return Binding{}, ErrNoChannel
}

// Release frees b's channel if b still owns it.
func (a *Allocator) Release(b Binding) {
	if a == nil || !b.Valid() {
		return
	}
	a.mu.Lock()
	if cur, ok := a.owners[b.Channel]; ok && cur.token == b.token {
		delete(a.owners, b.Channel)
	}
	a.mu.Unlock()
}

// ReleaseOwner frees every channel held by devID and returns how many
// there were. Used when a peripheral is shut down.
func (a *Allocator) ReleaseOwner(devID string) int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for ch, o := range a.owners {
		if o.devID == devID {
			delete(a.owners, ch)
			n++
		}
	}
	return n
}

// InUse returns the number of reserved channels.
func (a *Allocator) InUse() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.owners)
}

// OwnerOf returns the device holding ch, if any.
func (a *Allocator) OwnerOf(ch int) (string, bool) {
	if a == nil {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.owners[ch]
	return o.devID, ok
}
