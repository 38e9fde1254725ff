// services/hal/internal/dma/allocator_test.go
package dma

import (
	"testing"

	"spiclk-go/services/hal/internal/halcore"
)

// stubCtrl is a controller with n channels and no behaviour.
type stubCtrl struct{ n int }

func (s stubCtrl) Channels() int                       { return s.n }
func (s stubCtrl) Vector(ch int) halcore.Vector        { return halcore.Vector(100 + ch) }
func (s stubCtrl) Start(int, halcore.DMARequest) error { return nil }
func (s stubCtrl) Result(int) error                    { return nil }
func (s stubCtrl) Stop(int)                            {}

func TestAcquireIsExclusive(t *testing.T) {
	a := NewAllocator(stubCtrl{n: 2})

	tx, err := a.Acquire("spi1", halcore.DirMemToPeriph)
	if err != nil {
		t.Fatalf("acquire tx: %v", err)
	}
	rx, err := a.Acquire("spi1", halcore.DirPeriphToMem)
	if err != nil {
		t.Fatalf("acquire rx: %v", err)
	}
	if tx.Channel == rx.Channel {
		t.Fatalf("same channel handed out twice: %d", tx.Channel)
	}
	if tx.Vector != 100 || rx.Vector != 101 {
		t.Fatalf("vectors: %d %d", tx.Vector, rx.Vector)
	}
	if _, err := a.Acquire("spi0", halcore.DirMemToPeriph); err != ErrNoChannel {
		t.Fatalf("third acquire: %v", err)
	}
	if a.InUse() != 2 {
		t.Fatalf("InUse: %d", a.InUse())
	}

	a.Release(tx)
	if owner, ok := a.OwnerOf(tx.Channel); ok {
		t.Fatalf("channel still owned by %q", owner)
	}
	again, err := a.Acquire("spi0", halcore.DirMemToPeriph)
	if err != nil || again.Channel != tx.Channel {
		t.Fatalf("reacquire: %+v %v", again, err)
	}

	// Stale binding does not free the new owner's channel.
	a.Release(tx)
	if owner, _ := a.OwnerOf(again.Channel); owner != "spi0" {
		t.Fatalf("stale release freed channel (owner=%q)", owner)
	}
}

func TestNilControllerReportsNoDMA(t *testing.T) {
	a := NewAllocator(nil)
	if _, err := a.Acquire("spi1", halcore.DirMemToPeriph); err != ErrNoDMA {
		t.Fatalf("acquire without controller: %v", err)
	}
	var nilAlloc *Allocator
	if _, err := nilAlloc.Acquire("spi1", halcore.DirMemToPeriph); err != ErrNoDMA {
		t.Fatalf("nil allocator: %v", err)
	}
	nilAlloc.Release(Binding{})
}

func TestReleaseOwner(t *testing.T) {
	a := NewAllocator(stubCtrl{n: 4})
	_, _ = a.Acquire("spi1", halcore.DirMemToPeriph)
	_, _ = a.Acquire("spi0", halcore.DirMemToPeriph)
	_, _ = a.Acquire("spi1", halcore.DirPeriphToMem)
	if n := a.ReleaseOwner("spi1"); n != 2 {
		t.Fatalf("released %d, want 2", n)
	}
	if a.InUse() != 1 {
		t.Fatalf("in use %d, want 1", a.InUse())
	}
	var nilAlloc *Allocator
	if nilAlloc.ReleaseOwner("spi1") != 0 {
		t.Fatal("nil allocator released channels")
	}
}
