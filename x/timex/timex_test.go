package timex

import (
	"testing"
	"time"
)

func TestBitPeriod(t *testing.T) {
	if got := BitPeriod(100_000); got != 10*time.Microsecond {
		t.Fatalf("100 kHz: got %v", got)
	}
	if got := BitPeriod(0); got != time.Second {
		t.Fatalf("zero rate: got %v", got)
	}
}

func TestFrameTime(t *testing.T) {
	if got := FrameTime(100_000, 8, 100); got != 8*time.Millisecond {
		t.Fatalf("8x100 @100k: got %v", got)
	}
	if FrameTime(100_000, 8, 0) != 0 {
		t.Fatal("empty transfer should take no time")
	}
}
