// bus/bus_test.go
package bus

import (
	"testing"
	"time"
)

func expectPayload(t *testing.T, sub *Subscription, want any) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		if got.Payload != want {
			t.Fatalf("payload: got %v want %v", got.Payload, want)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for %v", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message %v on %s", got.Payload, got.Topic)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("hal", "clock", "state"))
	conn.Publish(b.NewMessage(T("hal", "clock", "state"), "ipo", false))

	expectPayload(t, sub, "ipo")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Retain(T("hal", "spi", "spi1", "status"), "ready")
	sub := conn.Subscribe(T("hal", "spi", "spi1", "status"))
	expectPayload(t, sub, "ready")

	if m, ok := b.Retained(T("hal", "spi", "spi1", "status")); !ok || m.Payload != "ready" {
		t.Fatalf("Retained lookup: %v %v", m, ok)
	}

	// nil payload clears.
	conn.Retain(T("hal", "spi", "spi1", "status"), nil)
	if _, ok := b.Retained(T("hal", "spi", "spi1", "status")); ok {
		t.Fatal("retained value not cleared")
	}
}

func TestWildcardSingleLevel(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")

	all := c.Subscribe(T("hal", "spi", Wildcard, "status"))
	one := c.Subscribe(T("hal", "spi", "spi0", "status"))

	c.Publish(b.NewMessage(T("hal", "spi", "spi1", "status"), "m1", false))
	expectPayload(t, all, "m1")
	expectNoMessage(t, one)

	c.Publish(b.NewMessage(T("hal", "spi", "spi0", "status"), "m2", false))
	expectPayload(t, all, "m2")
	expectPayload(t, one, "m2")

	c.Publish(b.NewMessage(T("hal", "spi", "spi0", "status", "x"), "deep", false))
	expectNoMessage(t, all)
}

func TestRetainedDeliveredToWildcard(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")
	c.Retain(T("hal", "spi", "spi0", "status"), "a")
	c.Retain(T("hal", "clock", "state"), "b")

	sub := c.Subscribe(T("hal", "spi", Wildcard, "status"))
	expectPayload(t, sub, "a")
	expectNoMessage(t, sub)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	sub := c.Subscribe(T("x"))
	for _, p := range []string{"1", "2", "3"} {
		c.Publish(b.NewMessage(T("x"), p, false))
	}
	expectPayload(t, sub, "2")
	expectPayload(t, sub, "3")
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b"))

	s1.Unsubscribe()
	c.Publish(b.NewMessage(T("a"), "gone", false))
	expectNoMessage(t, s1)

	c.Disconnect()
	c.Publish(b.NewMessage(T("b"), "gone", false))
	expectNoMessage(t, s2)
}
