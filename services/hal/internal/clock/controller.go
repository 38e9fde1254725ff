// Package clock switches the system clock source and hands the new
// frequency to whatever must be reprogrammed afterwards.
//
// A switch either fails before anything changes (ClockError, state as
// before) or applies the new source, marks dependents invalid and calls the
// reinit hook. Only a successful hook makes dependents valid again; a hook
// failure is reported as ReinitError and the clock is not reverted.
package clock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spiclk-go/bus"
	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
)

type Source = halcore.ClockSource

const (
	Internal = halcore.ClockInternal
	LowPower = halcore.ClockLowPower
	External = halcore.ClockExternal
)

var ErrNotReady = errors.New("source_not_ready")

// State is the board clock state. It is the retained payload on
// hal/clock/state.
type State struct {
	Source          Source `json:"source"`
	FrequencyHz     uint32 `json:"hz"`
	DependentsValid bool   `json:"valid"`
	Switching       bool   `json:"switching,omitempty"`
}

// ReinitHook reprograms clock-derived peripherals for the new state.
type ReinitHook interface {
	Reinit(ctx context.Context, st State) error
}

type HookFunc func(ctx context.Context, st State) error

func (f HookFunc) Reinit(ctx context.Context, st State) error { return f(ctx, st) }

var Topic = bus.T("hal", "clock", "state")

const (
	DefaultStabilizeTimeout = 50 * time.Millisecond
	DefaultPollInterval     = 100 * time.Microsecond
)

type Options struct {
	Hook             ReinitHook
	StabilizeTimeout time.Duration
	PollInterval     time.Duration
	Log              *zerolog.Logger
	Status           *bus.Connection
}

// Controller is the only writer of the clock State.
type Controller struct {
	hw     halcore.ClockHW
	hook   ReinitHook
	settle time.Duration
	poll   time.Duration
	log    zerolog.Logger
	pub    *bus.Connection

	// sw serialises switches; mu guards st for readers.
	sw sync.Mutex
	mu sync.Mutex
	st State
}

// New reads the active source from hw. Dependents are assumed valid: the
// board was brought up on this clock.
func New(hw halcore.ClockHW, opts Options) *Controller {
	lg := zerolog.Nop()
	if opts.Log != nil {
		lg = *opts.Log
	}
	c := &Controller{
		hw:     hw,
		hook:   opts.Hook,
		settle: opts.StabilizeTimeout,
		poll:   opts.PollInterval,
		log:    lg.With().Str("svc", "clock").Logger(),
		pub:    opts.Status,
	}
	if c.settle <= 0 {
		c.settle = DefaultStabilizeTimeout
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	cur := hw.Current()
	c.st = State{Source: cur, FrequencyHz: hw.Frequency(cur), DependentsValid: true}
	c.publish()
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

func (c *Controller) set(st State) {
	c.mu.Lock()
	c.st = st
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) publish() {
	if c.pub == nil {
		return
	}
	c.pub.Retain(Topic, c.State())
}

// Switch moves the system clock to target.
func (c *Controller) Switch(ctx context.Context, target Source) error {
	const op = "clock.switch"
	c.sw.Lock()
	defer c.sw.Unlock()

	prev := c.State()
	if prev.Source == target {
		if prev.DependentsValid {
			return nil
		}
		// A previous reinit failed; run it again on the active clock.
		return c.reinit(ctx, prev)
	}

	c.log.Info().Str("from", prev.Source.String()).Str("to", target.String()).Msg("switching")
	sw := prev
	sw.Switching = true
	c.set(sw)

	// A source started only for this attempt is stopped again on failure.
	wasOn := c.hw.Enabled(target)
	fail := func(err error, msg string) error {
		if !wasOn {
			c.hw.Disable(target)
		}
		c.set(prev)
		c.log.Warn().Err(err).Str("to", target.String()).Msg(msg)
		return errcode.Wrap(errcode.ClockError, op, err)
	}

	if err := c.hw.Enable(target); err != nil {
		return fail(err, "enable failed")
	}
	if err := c.waitReady(ctx, target); err != nil {
		return fail(err, "source unstable")
	}
	if err := c.hw.Select(target); err != nil {
		return fail(err, "select failed")
	}

	next := State{Source: target, FrequencyHz: c.hw.Frequency(target)}
	c.set(next)
	return c.reinit(ctx, next)
}

func (c *Controller) reinit(ctx context.Context, st State) error {
	if c.hook != nil {
		if err := c.hook.Reinit(ctx, st); err != nil {
			c.log.Error().Err(err).Uint32("hz", st.FrequencyHz).Msg("reinit failed")
			return errcode.Wrap(errcode.ReinitError, "clock.reinit", err)
		}
	}
	st.DependentsValid = true
	c.set(st)
	c.log.Info().Str("source", st.Source.String()).Uint32("hz", st.FrequencyHz).Msg("clock switched")
	return nil
}

// waitReady polls the hardware until src is stable, bounded by the
// stabilisation timeout and ctx.
func (c *Controller) waitReady(ctx context.Context, src Source) error {
	if c.hw.Ready(src) {
		return nil
	}
	deadline := time.NewTimer(c.settle)
	defer deadline.Stop()
	tick := time.NewTicker(c.poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrNotReady
		case <-tick.C:
			if c.hw.Ready(src) {
				return nil
			}
		}
	}
}
