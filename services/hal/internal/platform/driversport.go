package platform

import (
	"sync"

	"tinygo.org/x/drivers"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi/frame"
)

// driversChunk is how many frames one Service call clocks.
const driversChunk = 8

// DriversPort runs a polled port on top of any tinygo drivers.SPI: the
// machine SPI on the MCU, or a fake in tests. The bus clocks whole bytes,
// so only widths up to 8 are accepted and narrower frames are masked.
type DriversPort struct {
	id    halcore.PeripheralID
	bus   drivers.SPI
	maxHz uint32

	// Apply programs the bus for cfg; nil when the bus is preconfigured.
	Apply func(cfg halcore.PortConfig) error

	mu     sync.Mutex
	cfg    halcore.PortConfig
	x      halcore.Xfer
	idx    int
	active bool
}

var (
	_ halcore.SPIPort        = (*DriversPort)(nil)
	_ halcore.ClockDependent = (*DriversPort)(nil)
)

func NewDriversPort(id halcore.PeripheralID, bus drivers.SPI, maxHz uint32) *DriversPort {
	return &DriversPort{id: id, bus: bus, maxHz: maxHz}
}

func (p *DriversPort) ID() halcore.PeripheralID { return p.id }
func (p *DriversPort) Name() string             { return string(p.id) }
func (p *DriversPort) MaxBitRate() uint32       { return p.maxHz }

func (p *DriversPort) Configure(cfg halcore.PortConfig) error {
	const op = "drivers.configure"
	switch {
	case cfg.Role != halcore.RoleController:
		return errcode.New(errcode.Unsupported, op, "controller role only")
	case cfg.Interface != halcore.InterfaceStandard:
		return errcode.New(errcode.Unsupported, op, cfg.Interface.String())
	case !frame.Packed(cfg.Width):
		return errcode.New(errcode.Unsupported, op, "frames wider than 8 bits")
	case cfg.DMA:
		return errcode.New(errcode.Unsupported, op, "no dma request lines")
	}
	if p.Apply != nil {
		if err := p.Apply(cfg); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

func (p *DriversPort) Shutdown() error {
	p.Abort()
	return nil
}

// Reinit reapplies the configuration so the bus divisor follows the new
// system clock.
func (p *DriversPort) Reinit(uint32) error {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()
	if p.Apply == nil || cfg.BitRate == 0 {
		return nil
	}
	return p.Apply(cfg)
}

func (p *DriversPort) Begin(x halcore.Xfer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return errcode.New(errcode.Busy, "drivers.begin", "transfer active")
	}
	if !frame.Packed(x.Width) {
		return errcode.New(errcode.Unsupported, "drivers.begin", "frames wider than 8 bits")
	}
	p.x, p.idx, p.active = x, 0, true
	return nil
}

func (p *DriversPort) Service() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return false, nil
	}
	w := p.x.Width
	for n := 0; n < driversChunk && p.idx < p.x.Count; n++ {
		r, err := p.bus.Transfer(byte(frame.At(p.x.TX, w, p.idx)))
		if err != nil {
			p.active = false
			return false, err
		}
		frame.Put(p.x.RX, w, p.idx, uint16(r))
		p.idx++
	}
	if p.idx < p.x.Count {
		return false, nil
	}
	p.active = false
	return true, nil
}

func (p *DriversPort) Abort() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}
