// Package board is the reinit hook: after a clock switch it reprograms
// every clock-derived peripheral on the board.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"spiclk-go/services/hal/internal/clock"
	"spiclk-go/services/hal/internal/halcore"
)

type Board struct {
	log zerolog.Logger

	mu     sync.Mutex
	deps   []halcore.ClockDependent
	calls  int
	lastHz uint32
}

var _ clock.ReinitHook = (*Board)(nil)

func New(log *zerolog.Logger, deps ...halcore.ClockDependent) *Board {
	lg := zerolog.Nop()
	if log != nil {
		lg = *log
	}
	return &Board{log: lg.With().Str("svc", "board").Logger(), deps: deps}
}

// Add registers another dependent.
func (b *Board) Add(d halcore.ClockDependent) {
	b.mu.Lock()
	b.deps = append(b.deps, d)
	b.mu.Unlock()
}

// Reinit hands the new frequency to every dependent. All dependents are
// tried; the failures are joined.
func (b *Board) Reinit(ctx context.Context, st clock.State) error {
	b.mu.Lock()
	deps := append([]halcore.ClockDependent(nil), b.deps...)
	b.calls++
	b.lastHz = st.FrequencyHz
	b.mu.Unlock()

	var errs []error
	for _, d := range deps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Reinit(st.FrequencyHz); err != nil {
			b.log.Warn().Err(err).Str("dep", d.Name()).Uint32("hz", st.FrequencyHz).Msg("reinit failed")
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		b.log.Debug().Str("dep", d.Name()).Uint32("hz", st.FrequencyHz).Msg("reinit")
	}
	return errors.Join(errs...)
}

// Calls counts Reinit invocations.
func (b *Board) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// LastHz is the frequency of the most recent Reinit.
func (b *Board) LastHz() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHz
}
