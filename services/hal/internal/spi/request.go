package spi

import (
	"context"
	"sync/atomic"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/spi/frame"
)

const (
	phaseIdle uint32 = iota
	phasePending
	phaseClosing
	phaseDone
)

// Request is one full-duplex transaction. TX and RX hold frame storage
// (see package frame) for Count frames of the engine's configured width.
//
// The engine owns a request from Submit until its terminal outcome. Buffers
// are stable only after Done is closed. A request may be resubmitted once it
// has completed.
type Request struct {
	TX, RX     []uint16
	Count      int
	SSDeassert bool

	// Callback, if set, receives the terminal outcome exactly once. For
	// interrupt and DMA strategies it runs in handler context.
	Callback func(r *Request, code errcode.Code)

	phase atomic.Uint32
	code  atomic.Value // errcode.Code
	done  chan struct{}
}

// Done is closed when the request reaches its terminal outcome, after the
// callback has returned. It is nil before the first Submit.
func (r *Request) Done() <-chan struct{} { return r.done }

// Pending reports whether the request is in flight.
func (r *Request) Pending() bool {
	p := r.phase.Load()
	return p == phasePending || p == phaseClosing
}

// Code is the terminal outcome, or "" while pending or never submitted.
func (r *Request) Code() errcode.Code {
	if r.phase.Load() != phaseDone {
		return ""
	}
	c, _ := r.code.Load().(errcode.Code)
	return c
}

// Err is Code as an error; nil for OK and while pending.
func (r *Request) Err() error { return r.Code().Err() }

// Wait blocks until the outcome or ctx expiry.
func (r *Request) Wait(ctx context.Context) error {
	if r.done == nil {
		return errcode.New(errcode.Error, "spi.wait", "request not submitted")
	}
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return errcode.Wrap(errcode.Timeout, "spi.wait", ctx.Err())
	}
}

func (r *Request) validate(width uint8) error {
	const op = "spi.submit"
	switch {
	case r == nil:
		return errcode.New(errcode.ConfigError, op, "nil request")
	case r.Count <= 0:
		return errcode.New(errcode.ConfigError, op, "count must be positive")
	case len(r.TX) < frame.Units(width, r.Count):
		return errcode.New(errcode.ConfigError, op, "tx storage too short")
	case len(r.RX) != len(r.TX):
		return errcode.New(errcode.ConfigError, op, "rx and tx storage differ in length")
	}
	return nil
}

// arm moves the request to pending. It fails when already in flight.
func (r *Request) arm() bool {
	for {
		p := r.phase.Load()
		if p == phasePending || p == phaseClosing {
			return false
		}
		if r.phase.CompareAndSwap(p, phasePending) {
			r.done = make(chan struct{})
			return true
		}
	}
}

// disarm returns a request that never started back to idle. No outcome is
// delivered.
func (r *Request) disarm() {
	r.phase.CompareAndSwap(phasePending, phaseIdle)
}

// complete records the terminal outcome. Only the first call has effect.
func (r *Request) complete(code errcode.Code) bool {
	if !r.phase.CompareAndSwap(phasePending, phaseClosing) {
		return false
	}
	r.code.Store(code)
	done := r.done
	r.phase.Store(phaseDone)
	if r.Callback != nil {
		r.Callback(r, code)
	}
	close(done)
	return true
}
