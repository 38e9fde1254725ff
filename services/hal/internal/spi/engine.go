package spi

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"spiclk-go/bus"
	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/dma"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/irq"
	"spiclk-go/x/assert"
)

// Options wires an engine to the shared platform resources. All fields are
// optional; a nil IRQ table or DMA allocator disables the strategies that
// need them.
type Options struct {
	IRQ    *irq.Table
	DMA    *dma.Allocator
	Log    *zerolog.Logger
	Status *bus.Connection // retained status on hal/spi/<id>/status
}

// Engine owns one serial peripheral instance. At most one request is in
// flight; a second Submit is rejected with Busy rather than queued.
type Engine struct {
	port halcore.SPIPort
	irq  *irq.Table
	dma  *dma.Allocator
	log  zerolog.Logger
	pub  *bus.Connection

	mu       sync.Mutex
	state    State
	last     errcode.Code
	cfg      Config
	inflight *Request
	stopCtx  context.CancelFunc
	stopHW   func()
}

func New(port halcore.SPIPort, opts Options) *Engine {
	lg := zerolog.Nop()
	if opts.Log != nil {
		lg = *opts.Log
	}
	e := &Engine{
		port:  port,
		irq:   opts.IRQ,
		dma:   opts.DMA,
		log:   lg.With().Str("spi", string(port.ID())).Logger(),
		pub:   opts.Status,
		state: StateIdle,
	}
	e.mu.Lock()
	e.publishLocked()
	e.mu.Unlock()
	return e
}

func (e *Engine) ID() halcore.PeripheralID { return e.port.ID() }

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Config is the last applied configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// FrameWidth is the configured frame width in bits, 0 before Configure.
func (e *Engine) FrameWidth() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Width
}

// StatusTopic is where the engine publishes its retained Status.
func StatusTopic(id halcore.PeripheralID) bus.Topic {
	return bus.T("hal", "spi", string(id), "status")
}

func (e *Engine) statusLocked() Status {
	return Status{ID: string(e.port.ID()), State: e.state, Last: e.last, Width: e.cfg.Width}
}

func (e *Engine) publishLocked() {
	if e.pub == nil {
		return
	}
	e.pub.Retain(StatusTopic(e.port.ID()), e.statusLocked())
}

func (e *Engine) setLocked(s State) {
	if e.state == s {
		return
	}
	e.log.Debug().Str("from", e.state.String()).Str("to", s.String()).Msg("state")
	e.state = s
	e.publishLocked()
}

// Configure validates cfg and programs the port. Invalid arguments leave
// the engine untouched; a port rejection restores the previous state.
func (e *Engine) Configure(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateTransferring, StateConfiguring:
		return errcode.New(errcode.Busy, "spi.configure", e.state.String())
	}
	if err := cfg.validate(e.port.MaxBitRate()); err != nil {
		return err
	}

	prev := e.state
	e.setLocked(StateConfiguring)
	if err := e.port.Configure(cfg.port()); err != nil {
		e.state = prev
		e.publishLocked()
		e.log.Warn().Err(err).Msg("port rejected configuration")
		return errcode.Wrap(errcode.ConfigError, "spi.configure", err)
	}
	e.cfg = cfg
	e.setLocked(StateReady)
	e.log.Info().
		Uint8("width", cfg.Width).
		Uint32("rate", cfg.BitRate).
		Uint8("mode", uint8(cfg.Mode)).
		Bool("dma", cfg.DMA()).
		Msg("configured")
	return nil
}

// Submit starts req with strategy s. For Blocking it returns once the
// transaction has ended, with its outcome; otherwise it returns as soon as
// the transfer is running and the outcome arrives on req.
func (e *Engine) Submit(req *Request, s Strategy) error {
	return e.submit(context.Background(), req, s)
}

// Transfer is Submit followed by a wait bounded by ctx. On expiry the
// transaction is aborted with Timeout.
func (e *Engine) Transfer(ctx context.Context, req *Request, s Strategy) error {
	if err := e.submit(ctx, req, s); err != nil {
		return err
	}
	select {
	case <-req.Done():
	case <-ctx.Done():
		e.abort(req, errcode.Timeout)
		<-req.Done()
	}
	return req.Err()
}

func (e *Engine) submit(parent context.Context, req *Request, s Strategy) error {
	const op = "spi.submit"
	if s == nil {
		return errcode.New(errcode.ConfigError, op, "nil strategy")
	}

	e.mu.Lock()
	if e.state != StateReady {
		st := e.state
		e.mu.Unlock()
		return errcode.New(errcode.Busy, op, st.String())
	}
	cfg := e.cfg
	if err := req.validate(cfg.Width); err != nil {
		e.mu.Unlock()
		return err
	}
	if s.Mode() == ModeDMA && !cfg.DMA() {
		e.mu.Unlock()
		return errcode.New(errcode.ConfigError, op, "engine configured without dma")
	}
	if !req.arm() {
		e.mu.Unlock()
		return errcode.New(errcode.Busy, op, "request already in flight")
	}
	ctx, cancel := context.WithCancel(parent)
	e.inflight = req
	e.stopCtx = cancel
	e.stopHW = nil
	e.setLocked(StateTransferring)
	e.mu.Unlock()

	t := &Target{Port: e.port, IRQ: e.irq, DMA: e.dma, Config: cfg, Log: e.log}
	stop, err := s.Execute(ctx, t, req, func(err error) { e.finish(req, err) })
	if err != nil {
		e.mu.Lock()
		if e.inflight == req {
			e.inflight = nil
			e.stopCtx = nil
			e.last = errcode.Of(err)
			e.setLocked(StateReady)
		}
		e.mu.Unlock()
		cancel()
		req.disarm()
		e.log.Warn().Err(err).Str("mode", s.Mode().String()).Msg("transfer not started")
		return err
	}

	e.mu.Lock()
	if e.inflight == req {
		e.stopHW = stop
		stop = nil
	}
	e.mu.Unlock()
	if stop != nil {
		// Already finished or aborted: make sure nothing is left armed.
		stop()
	}

	if s.Mode() == ModeBlocking {
		<-req.Done()
		return req.Err()
	}
	return nil
}

// finish records the strategy's outcome for req. Outcomes for a request
// that is no longer in flight (aborted) are dropped.
func (e *Engine) finish(req *Request, err error) {
	code := errcode.Of(err)

	e.mu.Lock()
	if e.inflight != req {
		e.mu.Unlock()
		return
	}
	assert.That(e.state == StateTransferring, "state == StateTransferring")
	e.inflight = nil
	cancel := e.stopCtx
	e.stopCtx, e.stopHW = nil, nil
	e.last = code
	if code.Failed() {
		e.setLocked(StateError)
	} else {
		e.setLocked(StateComplete)
	}
	e.setLocked(StateReady)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if code.Failed() {
		e.log.Warn().Err(err).Int("count", req.Count).Msg("transfer failed")
	} else {
		e.log.Debug().Int("count", req.Count).Msg("transfer complete")
	}
	req.complete(code)
}

// Abort cancels the in-flight transaction, if any. Its outcome is Canceled
// and the engine returns to Ready without waiting for the hardware.
func (e *Engine) Abort() error {
	e.mu.Lock()
	req := e.inflight
	e.mu.Unlock()
	if req == nil {
		return nil
	}
	e.abort(req, errcode.Canceled)
	return nil
}

func (e *Engine) abort(req *Request, code errcode.Code) {
	e.mu.Lock()
	if e.inflight != req {
		e.mu.Unlock()
		return
	}
	e.inflight = nil
	cancel, stop := e.stopCtx, e.stopHW
	e.stopCtx, e.stopHW = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stop != nil {
		stop()
	}

	e.mu.Lock()
	e.last = code
	e.setLocked(StateError)
	e.setLocked(StateReady)
	e.mu.Unlock()

	e.log.Warn().Str("code", string(code)).Msg("transfer aborted")
	req.complete(code)
}

// Shutdown powers the port down and frees any DMA channels still held by it.
// An engine that was never configured has nothing to power down and stays
// Idle.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateTransferring, StateConfiguring:
		return errcode.New(errcode.Busy, "spi.shutdown", e.state.String())
	case StateShutDown, StateIdle:
		return nil
	}
	if err := e.port.Shutdown(); err != nil {
		return errcode.Wrap(errcode.Error, "spi.shutdown", err)
	}
	if n := e.dma.ReleaseOwner(string(e.port.ID())); n > 0 {
		e.log.Warn().Int("channels", n).Msg("released leftover dma channels")
	}
	e.setLocked(StateShutDown)
	return nil
}
