package spi

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/spi/frame"
)

// DriversBus adapts an engine configured for byte-sized (or narrower)
// frames to tinygo.org/x/drivers.SPI, so stock device drivers can sit on
// top of it. Transfers are blocking and bounded by Timeout.
type DriversBus struct {
	E       *Engine
	Timeout time.Duration
}

var _ drivers.SPI = (*DriversBus)(nil)

const defaultBusTimeout = 100 * time.Millisecond

// Tx clocks out w and captures into r. Either may be nil; when both are
// set they must have the same length.
func (b *DriversBus) Tx(w, r []byte) error {
	const op = "spi.tx"
	n := len(w)
	if n == 0 {
		n = len(r)
	}
	if n == 0 {
		return nil
	}
	if w != nil && r != nil && len(w) != len(r) {
		return errcode.New(errcode.ConfigError, op, "tx and rx lengths differ")
	}
	width := b.E.FrameWidth()
	if !frame.Packed(width) {
		return errcode.New(errcode.Unsupported, op, "frame width above 8 bits")
	}

	units := frame.Units(width, n)
	req := &Request{TX: make([]uint16, units), RX: make([]uint16, units), Count: n}
	for i, v := range w {
		frame.Put(req.TX, width, i, uint16(v))
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultBusTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := b.E.Transfer(ctx, req, Blocking{}); err != nil {
		return err
	}
	for i := range r {
		r[i] = byte(frame.At(req.RX, width, i))
	}
	return nil
}

// Transfer exchanges a single frame.
func (b *DriversBus) Transfer(w byte) (byte, error) {
	var r [1]byte
	if err := b.Tx([]byte{w}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}
