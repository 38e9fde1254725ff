package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// BitPeriod returns the duration of one bit clock at rateHz.
// rateHz==0 is coerced to 1 to avoid division by zero.
func BitPeriod(rateHz uint32) time.Duration {
	if rateHz == 0 {
		rateHz = 1
	}
	return time.Duration(uint64(time.Second) / uint64(rateHz))
}

// FrameTime returns the wire time for n frames of width bits at rateHz.
func FrameTime(rateHz uint32, width uint8, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return BitPeriod(rateHz) * time.Duration(int(width)*n)
}
