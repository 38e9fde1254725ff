package fifo

import (
	"runtime"
	"sync"
	"testing"
)

func TestPushPopOrderAcrossWrap(t *testing.T) {
	r := New[uint16](8)
	next := uint16(0)
	want := uint16(0)
	for round := 0; round < 100; round++ {
		// Fill partially so indices wrap frequently.
		for i := 0; i < 5; i++ {
			if !r.Push(next) {
				t.Fatalf("push %d refused with len=%d", next, r.Len())
			}
			next++
		}
		for i := 0; i < 5; i++ {
			v, ok := r.Pop()
			if !ok || v != want {
				t.Fatalf("pop: got (%d,%v) want %d", v, ok, want)
			}
			want++
		}
	}
}

func TestFullAndEmpty(t *testing.T) {
	r := New[uint16](4)
	if _, ok := r.Pop(); ok {
		t.Fatal("pop from empty ring succeeded")
	}
	for i := 0; i < 4; i++ {
		if !r.Push(uint16(i)) {
			t.Fatalf("push %d failed", i)
		}
	}
	if r.Push(9) {
		t.Fatal("push into full ring succeeded")
	}
	if r.Space() != 0 || r.Len() != 4 {
		t.Fatalf("len/space: %d/%d", r.Len(), r.Space())
	}
	r.Reset()
	if r.Len() != 0 {
		t.Fatal("reset left entries")
	}
}

func TestNewRejectsBadDepth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for depth 6")
		}
	}()
	New[uint16](6)
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r := New[uint16](16)
	const n = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Push(uint16(i)) {
				i++
				continue
			}
			runtime.Gosched()
		}
	}()
	for i := 0; i < n; {
		v, ok := r.Pop()
		if !ok {
			runtime.Gosched()
			continue
		}
		if v != uint16(i) {
			t.Fatalf("got %d want %d", v, i)
		}
		i++
	}
	wg.Wait()
}
