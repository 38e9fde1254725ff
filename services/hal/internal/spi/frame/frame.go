// Package frame maps logical frames of 2..16 bits onto 16-bit storage.
//
// Storage layout follows the peripheral FIFO:
//
//	width <= 8: one frame per byte, two per storage unit, low byte first.
//	            Units beyond ceil(n/2) are zero.
//	width  > 8: one frame per unit.
//
// Every frame is masked to its width on the way in and on the way out.
package frame

import "spiclk-go/x/mathx"

const (
	MinWidth = 2
	MaxWidth = 16
)

// ValidWidth reports whether w is a supported frame width.
func ValidWidth(w uint8) bool { return mathx.Between(w, MinWidth, MaxWidth) }

// Mask returns the low w bits set.
func Mask(w uint8) uint16 {
	if w >= 16 {
		return 0xFFFF
	}
	return uint16(0xFFFF) >> (16 - w)
}

// Packed reports whether w stores two frames per unit.
func Packed(w uint8) bool { return w <= 8 }

// Units returns the number of storage units n frames occupy.
func Units(w uint8, n int) int {
	if n <= 0 {
		return 0
	}
	if Packed(w) {
		return int(mathx.CeilDiv(uint(n), 2))
	}
	return n
}

// At returns frame i of storage, masked to w.
func At(storage []uint16, w uint8, i int) uint16 {
	if Packed(w) {
		u := storage[i/2]
		if i%2 == 1 {
			u >>= 8
		}
		return u & Mask(w)
	}
	return storage[i] & Mask(w)
}

// Put writes frame i of storage, masked to w. In packed layout the
// neighbouring frame in the same unit is preserved.
func Put(storage []uint16, w uint8, i int, v uint16) {
	v &= Mask(w)
	if Packed(w) {
		shift := uint(i%2) * 8
		u := storage[i/2] &^ (0x00FF << shift)
		storage[i/2] = u | v<<shift
		return
	}
	storage[i] = v
}

// Pack lays out words as frames of width w. The result has len(words)
// units, matching a transmit buffer of one unit per logical word.
func Pack(words []uint16, w uint8) []uint16 {
	out := make([]uint16, len(words))
	for i, v := range words {
		Put(out, w, i, v)
	}
	return out
}

// Unpack extracts n frames of width w from storage.
func Unpack(storage []uint16, w uint8, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = At(storage, w, i)
	}
	return out
}

// Fill returns n units all set to pattern (raw, unmasked).
func Fill(pattern uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = pattern
	}
	return out
}

// Expected is the receive storage a loop-back wire produces when n frames
// of width w are clocked out of storage filled with pattern.
//
// For w <= 8 the low units carry (Mask(w)<<8 | Mask(w)) & pattern, an odd
// final frame leaves only the low byte, and the tail is zero. For w > 8
// every unit is pattern & Mask(w).
func Expected(pattern uint16, w uint8, n int) []uint16 {
	return Pack(Unpack(Fill(pattern, n), w, n), w)
}

// Compare returns the index of the first differing unit, or -1.
// Length mismatch counts as a difference at the shorter length.
func Compare(got, want []uint16) int {
	n := mathx.Min(len(got), len(want))
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			return i
		}
	}
	if len(got) != len(want) {
		return n
	}
	return -1
}
