package spi

import (
	"context"
	"sync/atomic"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
)

// Interrupt installs a handler on the port's vector. Each raise services
// the FIFOs; the raise that observes completion tears the handler down and
// reports the outcome.
type Interrupt struct{}

func (Interrupt) Mode() Mode { return ModeInterrupt }

func (Interrupt) Execute(_ context.Context, t *Target, req *Request, done func(error)) (func(), error) {
	const op = "spi.interrupt"
	p, ok := t.Port.(halcore.IRQPort)
	if !ok || t.IRQ == nil {
		return nil, errcode.New(errcode.Unsupported, op, "port has no interrupt line")
	}
	v := p.Vector()

	var (
		closed atomic.Bool
		remove func()
	)
	teardown := func() bool {
		if !closed.CompareAndSwap(false, true) {
			return false
		}
		p.EnableIRQ(false)
		t.IRQ.Disable(v)
		remove()
		return true
	}

	rm, err := t.IRQ.SetVector(v, func() {
		fin, err := p.Service()
		switch {
		case err != nil:
			if teardown() {
				done(errcode.Wrap(errcode.CommError, op, err))
			}
		case fin:
			if teardown() {
				done(nil)
			}
		}
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.Busy, op, err)
	}
	remove = rm

	if err := p.Begin(t.xfer(req)); err != nil {
		closed.Store(true)
		remove()
		return nil, errcode.Wrap(errcode.CommError, op, err)
	}
	t.IRQ.Enable(v)
	p.EnableIRQ(true)

	return func() {
		if teardown() {
			p.Abort()
		}
	}, nil
}
