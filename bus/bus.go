// Package bus is a small in-process publish/subscribe hub used to expose
// retained status (transfer engine state, clock state) to observers.
package bus

import (
	"strings"
	"sync"
)

// Wildcard matches exactly one topic level in a subscription.
const Wildcard = "+"

// Topic is a sequence of levels, e.g. T("hal", "spi", "spi1", "status").
type Topic []string

// T builds a Topic.
func T(levels ...string) Topic { return Topic(levels) }

func (t Topic) String() string { return strings.Join(t, "/") }

// Match reports whether concrete topic c matches pattern t.
func (t Topic) Match(c Topic) bool {
	if len(t) != len(c) {
		return false
	}
	for i := range t {
		if t[i] != Wildcard && t[i] != c[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Message / Subscription
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	root     *node
	retained map[string]*Message
	qLen     int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		root:     &node{},
		retained: make(map[string]*Message),
		qLen:     queueLen,
	}
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	for _, m := range b.retained {
		if sub.topic.Match(m.Topic) {
			deliver(sub, m)
		}
	}
}

// deliver never blocks: a full queue drops its oldest message.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func collect(n *node, topic Topic, out []*Subscription) []*Subscription {
	if len(topic) == 0 {
		return append(out, n.subs...)
	}
	if c, ok := n.children[topic[0]]; ok {
		out = collect(c, topic[1:], out)
	}
	if c, ok := n.children[Wildcard]; ok {
		out = collect(c, topic[1:], out)
	}
	return out
}

// Publish delivers a message to all subscribers matching its topic.
// A retained message with nil payload clears the retained value.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		key := msg.Topic.String()
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	for _, sub := range collect(b.root, msg.Topic, nil) {
		deliver(sub, msg)
	}
}

// Retained returns the retained message for a concrete topic, if any.
func (b *Bus) Retained(t Topic) (*Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.retained[t.String()]
	return m, ok
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, t := range sub.topic {
		child, ok := n.children[t]
		if !ok {
			return
		}
		n = child
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Retain publishes payload as the retained value of t.
func (c *Connection) Retain(t Topic, payload any) {
	c.bus.Publish(&Message{Topic: t, Payload: payload, Retained: true})
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect removes all subscriptions of this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		c.bus.unsubscribe(sub)
	}
}
