package hal

import (
	"context"
	"fmt"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/spi"
	"spiclk-go/services/hal/internal/spi/frame"
)

// WidthResult is the outcome of one sweep step.
type WidthResult struct {
	Width    uint8
	Code     errcode.Code
	Mismatch int // first differing storage unit, -1 when the payload matched
}

// Sweep runs the loop-back check for every frame width in the configured
// range: configure, fill, transfer, compare against the reference layout,
// shut down. A payload mismatch is recorded as CommError and the sweep
// moves on; a configuration failure ends it.
func (s *System) Sweep(ctx context.Context, instance string, strategy spi.Strategy) ([]WidthResult, error) {
	e, err := s.Engine(instance)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		var ok bool
		if strategy, ok = spi.ParseMode(s.cfg.SPI.Strategy); !ok {
			return nil, fmt.Errorf("unknown strategy %q", s.cfg.SPI.Strategy)
		}
	}
	sc := s.cfg.SPI
	lg := s.log.With().Str("spi", string(e.ID())).Str("mode", strategy.Mode().String()).Logger()

	var results []WidthResult
	for w := sc.SweepMin; w <= sc.SweepMax; w++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		cfg := s.cfg.SPIConfig(w)
		if strategy.Mode() != spi.ModeDMA {
			cfg.UseDMATX, cfg.UseDMARX = false, false
		}
		if err := e.Configure(cfg); err != nil {
			lg.Error().Err(err).Uint8("width", w).Msg("configure failed")
			return results, err
		}
		if got := e.FrameWidth(); got != w {
			_ = e.Shutdown()
			return results, errcode.New(errcode.ConfigError, "hal.sweep",
				fmt.Sprintf("width reads back %d, want %d", got, w))
		}

		res := WidthResult{Width: w, Code: errcode.OK, Mismatch: -1}
		req := &spi.Request{
			TX:         frame.Fill(sc.Pattern, sc.DataLen),
			RX:         make([]uint16, sc.DataLen),
			Count:      sc.DataLen,
			SSDeassert: sc.Deassert,
		}
		tctx, cancel := context.WithTimeout(ctx, sc.Timeout)
		err := e.Transfer(tctx, req, strategy)
		cancel()

		switch {
		case err != nil:
			res.Code = errcode.Of(err)
			lg.Warn().Err(err).Uint8("width", w).Msg("transfer failed")
		default:
			if i := frame.Compare(req.RX, frame.Expected(sc.Pattern, w, sc.DataLen)); i >= 0 {
				res.Code, res.Mismatch = errcode.CommError, i
				lg.Warn().Uint8("width", w).Int("unit", i).Msg("payload mismatch")
			} else {
				lg.Info().Uint8("width", w).Msg("payload ok")
			}
		}
		results = append(results, res)

		if err := e.Shutdown(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// Passed reports whether every step of a sweep succeeded.
func Passed(rs []WidthResult) bool {
	for _, r := range rs {
		if r.Code.Failed() {
			return false
		}
	}
	return len(rs) > 0
}
