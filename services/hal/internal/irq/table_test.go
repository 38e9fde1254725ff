// services/hal/internal/irq/table_test.go
package irq

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spiclk-go/services/hal/internal/halcore"
)

func vec(n uint16) halcore.Vector { return halcore.Vector(n) }

func TestSetVectorRaiseAndRemove(t *testing.T) {
	tab := New()
	var hits int32
	remove, err := tab.SetVector(7, func() { atomic.AddInt32(&hits, 1) })
	if err != nil {
		t.Fatalf("SetVector: %v", err)
	}

	// Installed but masked.
	if tab.Raise(7) {
		t.Fatal("raise on masked vector dispatched")
	}
	tab.Enable(7)
	if !tab.Raise(7) || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("raise did not dispatch (hits=%d)", hits)
	}

	remove()
	remove() // idempotent
	if tab.Installed(7) {
		t.Fatal("handler still installed")
	}
	if tab.Raise(7) {
		t.Fatal("raise after remove dispatched")
	}
	if tab.Spurious() != 2 {
		t.Fatalf("spurious: got %d want 2", tab.Spurious())
	}
}

func TestSetVectorRejectsDuplicatesAndZero(t *testing.T) {
	tab := New()
	if _, err := tab.SetVector(0, func() {}); err != ErrInvalidVector {
		t.Fatalf("zero vector: %v", err)
	}
	remove, _ := tab.SetVector(3, func() {})
	if _, err := tab.SetVector(3, func() {}); err != ErrVectorInUse {
		t.Fatalf("duplicate: %v", err)
	}

	// A stale remover must not evict a later installation.
	remove()
	if _, err := tab.SetVector(3, func() {}); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	remove()
	if !tab.Installed(3) {
		t.Fatal("stale remover evicted the new handler")
	}
}

func TestDispatchIsSerialised(t *testing.T) {
	tab := New()
	var inside, overlap int32
	h := func() {
		if atomic.AddInt32(&inside, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(200 * time.Microsecond)
		atomic.AddInt32(&inside, -1)
	}
	for _, v := range []uint16{1, 2} {
		if _, err := tab.SetVector(vec(v), h); err != nil {
			t.Fatal(err)
		}
		tab.Enable(vec(v))
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tab.Raise(vec(uint16(1 + i%2)))
		}(i)
	}
	wg.Wait()
	if atomic.LoadInt32(&overlap) != 0 {
		t.Fatal("handlers ran concurrently")
	}
}
