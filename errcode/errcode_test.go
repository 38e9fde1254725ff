package errcode

import (
	"errors"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"ok":                  OK,
		"comm_error":          CommError,
		"config_error":        ConfigError,
		"clock_error":         ClockError,
		"busy":                Busy,
		"channel_unavailable": ChannelUnavailable,
		"reinit_error":        ReinitError,
		"timeout":             Timeout,
		"canceled":            Canceled,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestOfExtractsFromWrapper(t *testing.T) {
	cause := errors.New("phy fault")
	err := Wrap(ClockError, "clock.switch", cause)

	if Of(err) != ClockError {
		t.Fatalf("Of: got %q", Of(err))
	}
	if !errors.Is(err, ClockError) {
		t.Fatal("errors.Is should match the code")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should reach the cause")
	}
	if errors.Is(err, Busy) {
		t.Fatal("errors.Is matched the wrong code")
	}
	if got := err.Error(); got != "clock.switch: clock_error: phy fault" {
		t.Fatalf("message: %q", got)
	}
}

func TestOfDefaults(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to OK")
	}
	if Of(Busy) != Busy {
		t.Fatal("bare code should map to itself")
	}
	if Of(errors.New("x")) != Error {
		t.Fatal("foreign error should map to Error")
	}
}

func TestCodeErr(t *testing.T) {
	if OK.Err() != nil {
		t.Fatal("OK.Err should be nil")
	}
	if CommError.Err() != CommError {
		t.Fatal("CommError.Err should be itself")
	}
	if !Timeout.Failed() || OK.Failed() {
		t.Fatal("Failed mismatch")
	}
}
