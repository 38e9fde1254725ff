package platform

import (
	"sync"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
)

// HostClock models the system clock mux. Sources must be present (a
// signal exists) and enabled before they report ready; an optional settle
// count delays readiness by that many Ready polls.
type HostClock struct {
	mu      sync.Mutex
	cur     halcore.ClockSource
	freq    map[halcore.ClockSource]uint32
	present map[halcore.ClockSource]bool
	enabled map[halcore.ClockSource]bool
	settle  map[halcore.ClockSource]int

	selectErr error
	selects   int
}

var _ halcore.ClockHW = (*HostClock)(nil)

// NewHostClock starts on initial, which is present and enabled. Every
// source with a frequency is present unless cleared with SetPresent.
func NewHostClock(freq map[halcore.ClockSource]uint32, initial halcore.ClockSource) *HostClock {
	c := &HostClock{
		cur:     initial,
		freq:    make(map[halcore.ClockSource]uint32, len(freq)),
		present: make(map[halcore.ClockSource]bool, len(freq)),
		enabled: map[halcore.ClockSource]bool{initial: true},
		settle:  make(map[halcore.ClockSource]int),
	}
	for src, hz := range freq {
		c.freq[src] = hz
		c.present[src] = hz != 0
	}
	return c
}

func (c *HostClock) Current() halcore.ClockSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *HostClock) Frequency(src halcore.ClockSource) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq[src]
}

func (c *HostClock) Enable(src halcore.ClockSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, known := c.freq[src]; !known {
		return errcode.New(errcode.Unsupported, "clock.enable", src.String())
	}
	c.enabled[src] = true
	return nil
}

func (c *HostClock) Enabled(src halcore.ClockSource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[src]
}

func (c *HostClock) Disable(src halcore.ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src != c.cur {
		delete(c.enabled, src)
	}
}

func (c *HostClock) Ready(src halcore.ClockSource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled[src] || !c.present[src] {
		return false
	}
	if c.settle[src] > 0 {
		c.settle[src]--
		return false
	}
	return true
}

func (c *HostClock) Select(src halcore.ClockSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled[src] || !c.present[src] {
		return errcode.New(errcode.ClockError, "clock.select", src.String()+" not running")
	}
	if err := c.selectErr; err != nil {
		c.selectErr = nil
		return err
	}
	c.cur = src
	c.selects++
	return nil
}

// SetPresent connects or removes the signal behind src.
func (c *HostClock) SetPresent(src halcore.ClockSource, on bool) {
	c.mu.Lock()
	c.present[src] = on
	c.mu.Unlock()
}

// SetSettle delays readiness of src by n polls.
func (c *HostClock) SetSettle(src halcore.ClockSource, n int) {
	c.mu.Lock()
	c.settle[src] = n
	c.mu.Unlock()
}

// FailSelect makes the next Select fail with err.
func (c *HostClock) FailSelect(err error) {
	c.mu.Lock()
	c.selectErr = err
	c.mu.Unlock()
}

// Selects counts successful Select calls.
func (c *HostClock) Selects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selects
}

// FixedClock is a single-source clock: the chip runs from one oscillator
// and cannot switch at run time.
type FixedClock struct {
	Source halcore.ClockSource
	Hz     uint32
}

var _ halcore.ClockHW = FixedClock{}

func (f FixedClock) Current() halcore.ClockSource { return f.Source }

func (f FixedClock) Frequency(src halcore.ClockSource) uint32 {
	if src != f.Source {
		return 0
	}
	return f.Hz
}

func (f FixedClock) Enable(src halcore.ClockSource) error {
	if src != f.Source {
		return errcode.New(errcode.Unsupported, "clock.enable", src.String())
	}
	return nil
}

func (f FixedClock) Enabled(src halcore.ClockSource) bool { return src == f.Source }

func (f FixedClock) Disable(halcore.ClockSource) {}

func (f FixedClock) Ready(src halcore.ClockSource) bool { return src == f.Source }

func (f FixedClock) Select(src halcore.ClockSource) error { return f.Enable(src) }
