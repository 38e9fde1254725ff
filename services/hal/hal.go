// Package hal wires the serial transfer engines, the clock controller and
// the board reinit hook onto a platform, and runs the reference workflows
// (width sweep, clock switch demo) on top of them.
package hal

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"tinygo.org/x/drivers"

	"spiclk-go/bus"
	"spiclk-go/services/hal/config"
	"spiclk-go/services/hal/internal/board"
	"spiclk-go/services/hal/internal/clock"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/platform"
	"spiclk-go/services/hal/internal/spi"
)

type System struct {
	cfg      config.Config
	plat     *platform.Platform
	engines  map[halcore.PeripheralID]*spi.Engine
	clock    *clock.Controller
	board    *board.Board
	console  *board.Console
	log      zerolog.Logger
	platName string
}

// New builds the system on the default platform for this build.
func New(cfg config.Config, conn *bus.Connection, log *zerolog.Logger) (*System, error) {
	plat := platform.Default(platform.Options{
		InternalHz:      cfg.Clock.InternalHz,
		LowPowerHz:      cfg.Clock.LowPowerHz,
		ExternalHz:      cfg.Clock.ExternalHz,
		ExternalPresent: cfg.Clock.ExternalPresent,
	})
	return NewWith(cfg, plat, board.DefaultConsole(cfg.Console.Baud), conn, log)
}

// NewWith builds the system on an explicit platform and console.
func NewWith(cfg config.Config, plat *platform.Platform, con *board.Console, conn *bus.Connection, log *zerolog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lg := zerolog.Nop()
	if log != nil {
		lg = *log
	}

	brd := board.New(&lg, plat.Dependents...)
	if con != nil {
		brd.Add(con)
		if err := con.Reinit(plat.Clock.Frequency(plat.Clock.Current())); err != nil {
			return nil, fmt.Errorf("console: %w", err)
		}
	}

	s := &System{
		cfg:      cfg,
		plat:     plat,
		engines:  make(map[halcore.PeripheralID]*spi.Engine, len(plat.SPI)),
		board:    brd,
		console:  con,
		log:      lg,
		platName: plat.Name,
	}
	for id, port := range plat.SPI {
		s.engines[id] = spi.New(port, spi.Options{IRQ: plat.IRQ, DMA: plat.DMA, Log: &lg, Status: conn})
	}
	s.clock = clock.New(plat.Clock, clock.Options{
		Hook:             brd,
		StabilizeTimeout: cfg.Clock.StabilizeTimeout,
		Log:              &lg,
		Status:           conn,
	})
	return s, nil
}

func (s *System) Config() config.Config    { return s.cfg }
func (s *System) Clock() *clock.Controller { return s.clock }
func (s *System) Board() *board.Board      { return s.board }
func (s *System) Console() *board.Console  { return s.console }
func (s *System) Platform() string         { return s.platName }

// Engine returns the engine for id; "" selects the configured instance.
func (s *System) Engine(id string) (*spi.Engine, error) {
	if id == "" {
		id = s.cfg.SPI.Instance
	}
	e, ok := s.engines[halcore.PeripheralID(id)]
	if !ok {
		return nil, fmt.Errorf("unknown spi instance %q", id)
	}
	return e, nil
}

// DriversBus exposes e as a tinygo drivers.SPI for byte-oriented device
// drivers. Transfers are bounded by the configured spi timeout.
func (s *System) DriversBus(e *spi.Engine) drivers.SPI {
	return &spi.DriversBus{E: e, Timeout: s.cfg.SPI.Timeout}
}

// Instances lists the SPI instance ids in order.
func (s *System) Instances() []string {
	out := make([]string, 0, len(s.engines))
	for id := range s.engines {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

// Demo runs the reference workflows from the configuration: the width
// sweep on the configured instance and strategy, then the clock switch
// demo. A clock failure ends the demo; sweep mismatches do not.
func (s *System) Demo(ctx context.Context) error {
	rs, err := s.Sweep(ctx, "", nil)
	if err != nil {
		return err
	}
	if Passed(rs) {
		s.log.Info().Int("widths", len(rs)).Msg("sweep passed")
	} else {
		s.log.Warn().Int("widths", len(rs)).Msg("sweep had failures")
	}

	target, ok := halcore.ParseClockSource(s.cfg.Clock.Target)
	if !ok {
		return fmt.Errorf("unknown clock target %q", s.cfg.Clock.Target)
	}
	return s.ClockDemo(ctx, target)
}
