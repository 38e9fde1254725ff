//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/irq"
)

// Default configures SPI0 on the board-default pins as a polled port. The
// RP2 runs from a fixed clock here and has no DMA wiring, so only the
// blocking strategy is usable; the others report their resource as
// unavailable. Jumper SDO to SDI for the loop-back sweep.
func Default(opts Options) *Platform {
	hz := machine.CPUFrequency()
	bus := machine.SPI0

	p0 := NewDriversPort("spi0", bus, hz/2)
	p0.Apply = func(cfg halcore.PortConfig) error {
		return bus.Configure(machine.SPIConfig{
			Frequency: cfg.BitRate,
			Mode:      uint8(cfg.Mode),
			SCK:       machine.SPI0_SCK_PIN,
			SDO:       machine.SPI0_SDO_PIN,
			SDI:       machine.SPI0_SDI_PIN,
		})
	}

	return &Platform{
		Name:       "rp2",
		IRQ:        irq.New(),
		SPI:        map[halcore.PeripheralID]halcore.SPIPort{"spi0": p0},
		Clock:      FixedClock{Source: halcore.ClockInternal, Hz: hz},
		Dependents: []halcore.ClockDependent{p0},
	}
}
