package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spiclk-go/bus"
	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/platform"
)

type hookRec struct {
	calls []State
	fail  error
}

func (h *hookRec) Reinit(_ context.Context, st State) error {
	h.calls = append(h.calls, st)
	if h.fail != nil {
		err := h.fail
		h.fail = nil
		return err
	}
	return nil
}

func newHW(external bool) *platform.HostClock {
	hw := platform.NewHostClock(map[halcore.ClockSource]uint32{
		Internal: 100_000_000,
		LowPower: 131_072,
		External: 8_000_000,
	}, Internal)
	hw.SetPresent(External, external)
	return hw
}

func newController(hw halcore.ClockHW, h ReinitHook) *Controller {
	return New(hw, Options{Hook: h, StabilizeTimeout: 10 * time.Millisecond, PollInterval: time.Millisecond})
}

func TestInternalExternalInternal(t *testing.T) {
	hw := newHW(true)
	h := &hookRec{}
	c := newController(hw, h)
	ctx := context.Background()

	require.Equal(t, State{Source: Internal, FrequencyHz: 100_000_000, DependentsValid: true}, c.State())

	require.NoError(t, c.Switch(ctx, External))
	require.Len(t, h.calls, 1)
	require.Equal(t, State{Source: External, FrequencyHz: 8_000_000}, h.calls[0], "hook sees invalid dependents")
	require.Equal(t, State{Source: External, FrequencyHz: 8_000_000, DependentsValid: true}, c.State())

	require.NoError(t, c.Switch(ctx, Internal))
	require.Len(t, h.calls, 2)
	require.Equal(t, State{Source: Internal, FrequencyHz: 100_000_000, DependentsValid: true}, c.State())
	require.Equal(t, Internal, hw.Current())
}

func TestUnavailableSourceKeepsState(t *testing.T) {
	hw := newHW(false)
	h := &hookRec{}
	c := newController(hw, h)
	before := c.State()

	err := c.Switch(context.Background(), External)
	require.ErrorIs(t, err, errcode.ClockError)
	require.ErrorIs(t, err, ErrNotReady)
	require.Equal(t, before, c.State())
	require.True(t, c.State().DependentsValid)
	require.Empty(t, h.calls)
	require.Equal(t, Internal, hw.Current())
	require.False(t, hw.Enabled(External), "failed attempt stops the source again")
}

func TestSlowSourceWithinTimeout(t *testing.T) {
	hw := newHW(true)
	hw.SetSettle(External, 3)
	c := newController(hw, nil)
	require.NoError(t, c.Switch(context.Background(), External))
	require.Equal(t, External, c.State().Source)
}

func TestSelectFailureIsClockError(t *testing.T) {
	hw := newHW(true)
	hw.FailSelect(errors.New("mux stuck"))
	h := &hookRec{}
	c := newController(hw, h)

	require.ErrorIs(t, c.Switch(context.Background(), External), errcode.ClockError)
	require.Equal(t, Internal, c.State().Source)
	require.Empty(t, h.calls)
	require.False(t, hw.Enabled(External))
	require.True(t, hw.Enabled(Internal))
}

func TestFailedSwitchKeepsRunningSourceEnabled(t *testing.T) {
	hw := newHW(true)
	c := newController(hw, nil)
	ctx := context.Background()
	require.NoError(t, c.Switch(ctx, External))

	hw.FailSelect(errors.New("mux stuck"))
	require.ErrorIs(t, c.Switch(ctx, Internal), errcode.ClockError)
	require.Equal(t, External, c.State().Source)
	require.True(t, hw.Enabled(Internal), "internal was running before the attempt")
	require.True(t, hw.Enabled(External))
}

func TestCanceledWaitIsClockError(t *testing.T) {
	hw := newHW(true)
	hw.SetSettle(External, 1_000_000)
	c := New(hw, Options{StabilizeTimeout: time.Second, PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := c.Switch(ctx, External)
	require.ErrorIs(t, err, errcode.ClockError)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, Internal, c.State().Source)
}

func TestReinitFailureLeavesNewClock(t *testing.T) {
	hw := newHW(true)
	h := &hookRec{fail: errors.New("uart divisor out of range")}
	c := newController(hw, h)
	ctx := context.Background()

	err := c.Switch(ctx, External)
	require.ErrorIs(t, err, errcode.ReinitError)
	require.NotErrorIs(t, err, errcode.ClockError)
	require.Equal(t, State{Source: External, FrequencyHz: 8_000_000}, c.State())
	require.Equal(t, External, hw.Current(), "not reverted")

	// Same source with invalid dependents retries the hook.
	require.NoError(t, c.Switch(ctx, External))
	require.Len(t, h.calls, 2)
	require.True(t, c.State().DependentsValid)

	// Same source with valid dependents is a no-op.
	require.NoError(t, c.Switch(ctx, External))
	require.Len(t, h.calls, 2)
}

func TestStatePublished(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("clock")
	hw := newHW(true)
	c := New(hw, Options{Status: conn, Hook: HookFunc(func(context.Context, State) error { return nil })})

	msg, ok := b.Retained(Topic)
	require.True(t, ok)
	require.Equal(t, c.State(), msg.Payload)

	require.NoError(t, c.Switch(context.Background(), External))
	msg, _ = b.Retained(Topic)
	require.Equal(t, State{Source: External, FrequencyHz: 8_000_000, DependentsValid: true}, msg.Payload)
}
