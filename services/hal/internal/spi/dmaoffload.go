package spi

import (
	"context"
	"sync/atomic"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/dma"
	"spiclk-go/services/hal/internal/halcore"
)

// DMA moves both directions through a pair of DMA channels. The transaction
// is complete once both channel handlers have fired, in either order.
// Further firings are ignored.
type DMA struct{}

func (DMA) Mode() Mode { return ModeDMA }

func (DMA) Execute(_ context.Context, t *Target, req *Request, done func(error)) (func(), error) {
	const op = "spi.dma"
	p, ok := t.Port.(halcore.DMAPort)
	if !ok || t.IRQ == nil {
		return nil, errcode.New(errcode.Unsupported, op, "port has no dma request lines")
	}
	if !t.Config.DMA() {
		return nil, errcode.New(errcode.ConfigError, op, "engine configured without dma")
	}
	owner := string(p.ID())

	tx, err := t.DMA.Acquire(owner, halcore.DirMemToPeriph)
	if err != nil {
		return nil, errcode.Wrap(errcode.ChannelUnavailable, op, err)
	}
	rx, err := t.DMA.Acquire(owner, halcore.DirPeriphToMem)
	if err != nil {
		t.DMA.Release(tx)
		return nil, errcode.Wrap(errcode.ChannelUnavailable, op, err)
	}
	ctrl := t.DMA.Controller()
	x := t.xfer(req)

	var (
		bindings  = [2]dma.Binding{tx, rx}
		removes   [2]func()
		fired     [2]atomic.Bool
		remaining atomic.Int32
		closed    atomic.Bool
	)
	remaining.Store(2)

	release := func(stop bool) {
		for i, b := range bindings {
			t.IRQ.Disable(b.Vector)
			if removes[i] != nil {
				removes[i]()
			}
			if stop {
				ctrl.Stop(b.Channel)
			}
			t.DMA.Release(b)
		}
	}

	handler := func(i int) func() {
		return func() {
			if !fired[i].CompareAndSwap(false, true) {
				return
			}
			if err := ctrl.Result(bindings[i].Channel); err != nil {
				// A channel error ends the transfer; the peer may never fire.
				if closed.CompareAndSwap(false, true) {
					p.Abort()
					release(true)
					done(errcode.Wrap(errcode.CommError, op, err))
				}
				return
			}
			if remaining.Add(-1) != 0 {
				return
			}
			if !closed.CompareAndSwap(false, true) {
				return
			}
			release(false)
			done(nil)
		}
	}

	for i, b := range bindings {
		rm, err := t.IRQ.SetVector(b.Vector, handler(i))
		if err != nil {
			closed.Store(true)
			release(false)
			return nil, errcode.Wrap(errcode.ChannelUnavailable, op, err)
		}
		removes[i] = rm
		t.IRQ.Enable(b.Vector)
	}

	if err := p.BeginDMA(x); err != nil {
		closed.Store(true)
		release(false)
		return nil, errcode.Wrap(errcode.CommError, op, err)
	}

	// Receive first so no frame is shifted in before its sink exists.
	reqs := [2]halcore.DMARequest{
		{Dir: halcore.DirMemToPeriph, Mem: req.TX, Count: req.Count, Width: x.Width, Port: p},
		{Dir: halcore.DirPeriphToMem, Mem: req.RX, Count: req.Count, Width: x.Width, Port: p},
	}
	for _, i := range [2]int{1, 0} {
		if err := ctrl.Start(bindings[i].Channel, reqs[i]); err != nil {
			if closed.CompareAndSwap(false, true) {
				p.Abort()
				release(true)
			}
			return nil, errcode.Wrap(errcode.CommError, op, err)
		}
	}

	t.Log.Debug().Str("spi", owner).Int("tx_ch", tx.Channel).Int("rx_ch", rx.Channel).Msg("dma started")

	return func() {
		if closed.CompareAndSwap(false, true) {
			p.Abort()
			release(true)
		}
	}, nil
}
