package hal

import (
	"context"
	"time"

	"spiclk-go/services/hal/internal/clock"
	"spiclk-go/services/hal/internal/halcore"
)

// ClockDemo counts down, switches to target, counts 0..Count while running
// from it, and switches back to the internal oscillator when configured to.
// A failed switch to target ends the demo with the clock untouched.
func (s *System) ClockDemo(ctx context.Context, target halcore.ClockSource) error {
	d := s.cfg.Demo

	for i := d.Countdown; i > 0; i-- {
		s.log.Info().Int("in", i).Str("to", target.String()).Msg("clock switch countdown")
		if err := sleep(ctx, d.Interval); err != nil {
			return err
		}
	}

	if err := s.clock.Switch(ctx, target); err != nil {
		s.log.Error().Err(err).Str("to", target.String()).Msg("clock switch failed")
		return err
	}
	st := s.clock.State()
	s.log.Info().Str("source", st.Source.String()).Uint32("hz", st.FrequencyHz).
		Uint32("baud", s.consoleBaud()).Msg("running on new clock")

	for i := 0; i <= d.Count; i++ {
		s.log.Info().Int("count", i).Msg("tick")
		if err := sleep(ctx, d.Interval); err != nil {
			return err
		}
	}

	if !s.cfg.Clock.Revert || target == clock.Internal {
		return nil
	}
	if err := s.clock.Switch(ctx, clock.Internal); err != nil {
		s.log.Error().Err(err).Msg("revert to internal clock failed")
		return err
	}
	s.log.Info().Msg("reverted to internal clock")
	return nil
}

func (s *System) consoleBaud() uint32 {
	if s.console == nil {
		return 0
	}
	return s.console.ActualBaud()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
