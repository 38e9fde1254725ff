// services/hal/internal/halcore/types_test.go

package halcore

import "testing"

func TestClockModeBits(t *testing.T) {
	cases := []struct {
		m          ClockMode
		cpol, cpha bool
	}{
		{0, false, false},
		{1, false, true},
		{2, true, false},
		{3, true, true},
	}
	for _, c := range cases {
		if c.m.CPOL() != c.cpol || c.m.CPHA() != c.cpha {
			t.Fatalf("mode %d: CPOL=%v CPHA=%v", c.m, c.m.CPOL(), c.m.CPHA())
		}
	}
}

func TestParseClockSource(t *testing.T) {
	for name, want := range map[string]ClockSource{
		"internal": ClockInternal, "ipo": ClockInternal,
		"lowpower": ClockLowPower, "inro": ClockLowPower,
		"external": ClockExternal, "extclk": ClockExternal,
	} {
		got, ok := ParseClockSource(name)
		if !ok || got != want {
			t.Fatalf("%s: got %v %v", name, got, ok)
		}
		if _, ok := ParseClockSource(got.String()); !ok {
			t.Fatalf("String() of %v does not parse back", got)
		}
	}
	if _, ok := ParseClockSource("pll"); ok {
		t.Fatal("unknown source accepted")
	}
}
