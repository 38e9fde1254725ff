package platform

import (
	"errors"
	"sync"
	"time"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi/frame"
	"spiclk-go/x/assert"
	"spiclk-go/x/fifo"
	"spiclk-go/x/mathx"
	"spiclk-go/x/timex"
)

const (
	loopbackFIFODepth = 8
	minIRQPace        = 20 * time.Microsecond
	maxIRQPace        = 5 * time.Millisecond
)

var ErrNotConfigured = errors.New("not_configured")

// LoopbackPort models a serial peripheral whose data-out is wired to its
// own data-in. Frames pass through transmit and receive FIFOs of fixed
// depth, so Service moves at most one FIFO's worth per call.
//
// The port implements SPIPort, IRQPort and DMAPort, and re-derives its
// maximum bit rate from the system clock as a ClockDependent.
type LoopbackPort struct {
	id     halcore.PeripheralID
	vec    halcore.Vector
	raiser halcore.Raiser

	mu         sync.Mutex
	sysHz      uint32
	cfg        halcore.PortConfig
	configured bool

	x       halcore.Xfer
	active  bool
	dmaMode bool
	txIdx   int
	rxIdx   int
	txq     *fifo.Ring[uint16]
	rxq     *fifo.Ring[uint16]

	irqStop chan struct{}

	stall     bool
	fault     error
	deasserts int
	transfers int
}

var (
	_ halcore.IRQPort        = (*LoopbackPort)(nil)
	_ halcore.DMAPort        = (*LoopbackPort)(nil)
	_ halcore.ClockDependent = (*LoopbackPort)(nil)
)

// NewLoopbackPort creates a port raising vec on r while an interrupt
// driven transfer is active.
func NewLoopbackPort(id halcore.PeripheralID, vec halcore.Vector, r halcore.Raiser, sysHz uint32) *LoopbackPort {
	return &LoopbackPort{
		id:     id,
		vec:    vec,
		raiser: r,
		sysHz:  sysHz,
		txq:    fifo.New[uint16](loopbackFIFODepth),
		rxq:    fifo.New[uint16](loopbackFIFODepth),
	}
}

func (p *LoopbackPort) ID() halcore.PeripheralID { return p.id }
func (p *LoopbackPort) Vector() halcore.Vector   { return p.vec }
func (p *LoopbackPort) Name() string             { return string(p.id) }

// MaxBitRate is a quarter of the peripheral clock.
func (p *LoopbackPort) MaxBitRate() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sysHz / 4
}

func (p *LoopbackPort) Configure(cfg halcore.PortConfig) error {
	const op = "loopback.configure"
	if cfg.Role != halcore.RoleController {
		return errcode.New(errcode.Unsupported, op, "peripheral role needs an external controller")
	}
	if cfg.Interface != halcore.InterfaceStandard {
		return errcode.New(errcode.Unsupported, op, cfg.Interface.String()+" interface not wired")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return errcode.New(errcode.Busy, op, "transfer active")
	}
	if cfg.BitRate > p.sysHz/4 {
		return errcode.New(errcode.ConfigError, op, "bit rate above peripheral clock / 4")
	}
	p.cfg = cfg
	p.configured = true
	return nil
}

func (p *LoopbackPort) Shutdown() error {
	p.mu.Lock()
	p.resetLocked()
	p.configured = false
	p.mu.Unlock()
	p.EnableIRQ(false)
	return nil
}

// Reinit re-derives timing after a system clock change. The configured
// rate must still be reachable.
func (p *LoopbackPort) Reinit(sysHz uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sysHz = sysHz
	if p.configured && p.cfg.BitRate > sysHz/4 {
		return errcode.New(errcode.ConfigError, "loopback.reinit", "bit rate unreachable at new clock")
	}
	return nil
}

func (p *LoopbackPort) begin(x halcore.Xfer, dmaMode bool) error {
	const op = "loopback.begin"
	if !p.configured {
		return errcode.Wrap(errcode.ConfigError, op, ErrNotConfigured)
	}
	if p.active {
		return errcode.New(errcode.Busy, op, "transfer active")
	}
	if !frame.ValidWidth(x.Width) || x.Count <= 0 {
		return errcode.New(errcode.ConfigError, op, "bad transfer shape")
	}
	p.txq.Reset()
	p.rxq.Reset()
	p.x = x
	p.active = true
	p.dmaMode = dmaMode
	p.txIdx, p.rxIdx = 0, 0
	return nil
}

func (p *LoopbackPort) Begin(x halcore.Xfer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(x, false)
}

func (p *LoopbackPort) BeginDMA(x halcore.Xfer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(x, true)
}

// Service fills the transmit FIFO, shifts the wire and drains the receive
// FIFO once.
func (p *LoopbackPort) Service() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.dmaMode {
		return false, nil
	}
	if p.fault != nil {
		err := p.fault
		p.fault = nil
		p.resetLocked()
		return false, err
	}
	if p.stall {
		return false, nil
	}

	w := p.x.Width
	for p.txIdx < p.x.Count && p.txq.Push(frame.At(p.x.TX, w, p.txIdx)) {
		p.txIdx++
	}
	for p.txq.Len() > 0 && p.rxq.Space() > 0 {
		v, _ := p.txq.Pop()
		p.rxq.Push(v & frame.Mask(w))
	}
	for p.rxIdx < p.x.Count {
		v, ok := p.rxq.Pop()
		if !ok {
			break
		}
		frame.Put(p.x.RX, w, p.rxIdx, v)
		p.rxIdx++
	}
	assert.That(p.rxIdx <= p.x.Count, "rxIdx <= Count")
	if p.rxIdx < p.x.Count {
		return false, nil
	}
	p.endLocked()
	return true, nil
}

// WriteData is the transmit data register as seen by a DMA channel. With
// the wire looped back a written frame lands in the receive FIFO.
func (p *LoopbackPort) WriteData(v uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || !p.dmaMode || p.stall || p.rxq.Space() == 0 {
		return false
	}
	p.txIdx++
	return p.rxq.Push(v & frame.Mask(p.x.Width))
}

// ReadData is the receive data register as seen by a DMA channel.
func (p *LoopbackPort) ReadData() (uint16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || !p.dmaMode {
		return 0, false
	}
	v, ok := p.rxq.Pop()
	if !ok {
		return 0, false
	}
	p.rxIdx++
	if p.rxIdx >= p.x.Count {
		p.endLocked()
	}
	return v, true
}

func (p *LoopbackPort) Abort() {
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()
}

func (p *LoopbackPort) endLocked() {
	if p.x.Deassert {
		p.deasserts++
	}
	p.transfers++
	p.active = false
}

func (p *LoopbackPort) resetLocked() {
	p.active = false
	p.txq.Reset()
	p.rxq.Reset()
}

// EnableIRQ starts or stops the interrupt line. The line raises at the
// rate a FIFO's worth of frames takes on the wire. It may be turned off
// from inside the handler.
func (p *LoopbackPort) EnableIRQ(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !on {
		if p.irqStop != nil {
			close(p.irqStop)
			p.irqStop = nil
		}
		return
	}
	if p.irqStop != nil || p.raiser == nil {
		return
	}
	pace := mathx.Clamp(timex.FrameTime(p.cfg.BitRate, p.cfg.Width, loopbackFIFODepth), minIRQPace, maxIRQPace)
	stop := make(chan struct{})
	p.irqStop = stop
	go p.irqLoop(stop, pace)
}

func (p *LoopbackPort) irqLoop(stop <-chan struct{}, pace time.Duration) {
	t := time.NewTicker(pace)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		select {
		case <-stop:
			return
		default:
		}
		p.raiser.Raise(p.vec)
	}
}

// ---- test hooks ----

// SetStall freezes the wire: nothing moves until it is released.
func (p *LoopbackPort) SetStall(on bool) {
	p.mu.Lock()
	p.stall = on
	p.mu.Unlock()
}

// InjectFault makes the next Service fail with err.
func (p *LoopbackPort) InjectFault(err error) {
	p.mu.Lock()
	p.fault = err
	p.mu.Unlock()
}

// Deasserts counts transfers that ended with chip-select released.
func (p *LoopbackPort) Deasserts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deasserts
}

// Transfers counts transfers that ran to completion.
func (p *LoopbackPort) Transfers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transfers
}

// Active reports whether a transfer is armed.
func (p *LoopbackPort) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *LoopbackPort) Config() halcore.PortConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}
