//go:build !rp2040 && !rp2350

package platform

import (
	"spiclk-go/services/hal/internal/dma"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/irq"
)

// Host vector numbers follow the MAX78000 layout loosely.
const (
	VectorSPI0    halcore.Vector = 16
	VectorSPI1    halcore.Vector = 17
	VectorDMABase halcore.Vector = 64
)

// Default builds the host platform: two loop-back SPI ports, a DMA
// controller and a switchable clock mux.
func Default(opts Options) *Platform {
	opts = opts.withDefaults()
	tbl := irq.New()

	clk := NewHostClock(map[halcore.ClockSource]uint32{
		halcore.ClockInternal: opts.InternalHz,
		halcore.ClockLowPower: opts.LowPowerHz,
		halcore.ClockExternal: opts.ExternalHz,
	}, halcore.ClockInternal)
	clk.SetPresent(halcore.ClockExternal, opts.ExternalPresent)

	spi0 := NewLoopbackPort("spi0", VectorSPI0, tbl, opts.InternalHz)
	spi1 := NewLoopbackPort("spi1", VectorSPI1, tbl, opts.InternalHz)

	return &Platform{
		Name:  "host",
		IRQ:   tbl,
		DMA:   dma.NewAllocator(NewHostDMA(opts.DMAChannels, VectorDMABase, tbl)),
		SPI:   map[halcore.PeripheralID]halcore.SPIPort{"spi0": spi0, "spi1": spi1},
		Clock: clk,
		Dependents: []halcore.ClockDependent{
			spi0,
			spi1,
		},
	}
}
