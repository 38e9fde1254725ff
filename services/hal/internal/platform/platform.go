// Package platform binds the hardware contracts in halcore to something
// real: loop-back models on the host, machine peripherals on the MCU.
package platform

import (
	"spiclk-go/services/hal/internal/dma"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/irq"
)

// Platform is everything the HAL needs from the board.
type Platform struct {
	Name  string
	IRQ   *irq.Table
	DMA   *dma.Allocator
	SPI   map[halcore.PeripheralID]halcore.SPIPort
	Clock halcore.ClockHW

	// Dependents are the platform peripherals that must be reprogrammed
	// after a system clock change. Board-level ones (console) are added by
	// the board package.
	Dependents []halcore.ClockDependent
}

// Options selects clock frequencies and which optional hardware is present.
type Options struct {
	InternalHz uint32
	LowPowerHz uint32
	ExternalHz uint32

	// ExternalPresent reports whether a signal is wired to the external
	// clock input. Host models only.
	ExternalPresent bool

	DMAChannels int
}

const (
	DefaultInternalHz  = 100_000_000
	DefaultLowPowerHz  = 131_072
	DefaultExternalHz  = 8_000_000
	DefaultDMAChannels = 8
)

func (o Options) withDefaults() Options {
	if o.InternalHz == 0 {
		o.InternalHz = DefaultInternalHz
	}
	if o.LowPowerHz == 0 {
		o.LowPowerHz = DefaultLowPowerHz
	}
	if o.ExternalHz == 0 {
		o.ExternalHz = DefaultExternalHz
	}
	if o.DMAChannels == 0 {
		o.DMAChannels = DefaultDMAChannels
	}
	return o
}

// Port returns the SPI port with the given id.
func (p *Platform) Port(id halcore.PeripheralID) (halcore.SPIPort, bool) {
	sp, ok := p.SPI[id]
	return sp, ok
}
