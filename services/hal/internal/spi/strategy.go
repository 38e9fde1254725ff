package spi

import (
	"context"

	"github.com/rs/zerolog"

	"spiclk-go/services/hal/internal/dma"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/irq"
)

type Mode uint8

const (
	ModeBlocking Mode = iota
	ModeInterrupt
	ModeDMA
)

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeInterrupt:
		return "interrupt"
	case ModeDMA:
		return "dma"
	default:
		return "unknown"
	}
}

// ParseMode maps a config/console name to a strategy.
func ParseMode(s string) (Strategy, bool) {
	switch s {
	case "blocking", "sync":
		return Blocking{}, true
	case "interrupt", "irq", "async":
		return Interrupt{}, true
	case "dma":
		return DMA{}, true
	}
	return nil, false
}

// Target is what a strategy drives: the port plus the shared interrupt and
// DMA resources of the platform.
type Target struct {
	Port   halcore.SPIPort
	IRQ    *irq.Table
	DMA    *dma.Allocator
	Config Config
	Log    zerolog.Logger
}

func (t *Target) xfer(req *Request) halcore.Xfer {
	return halcore.Xfer{
		TX:       req.TX,
		RX:       req.RX,
		Count:    req.Count,
		Width:    t.Config.Width,
		Deassert: req.SSDeassert,
	}
}

// Strategy delivers one transaction.
//
// Execute arms the hardware and arranges for done to be called with the
// terminal outcome (nil for success). A strategy may call done from any
// goroutine, including before Execute returns; the engine delivers only
// the first outcome. A non-nil error from Execute means nothing was started
// and done will not be called.
//
// The returned cancel stops the hardware and releases what Execute claimed.
// It must be safe to call after done and more than once.
type Strategy interface {
	Mode() Mode
	Execute(ctx context.Context, t *Target, req *Request, done func(error)) (cancel func(), err error)
}
