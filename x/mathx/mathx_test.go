package mathx

import "testing"

func TestBetweenAndClamp(t *testing.T) {
	if !Between(2, 2, 16) || !Between(16, 16, 2) || Between(17, 2, 16) || Between(1, 2, 16) {
		t.Fatal("Between bounds")
	}
	if Clamp(0, 2, 16) != 2 || Clamp(40, 16, 2) != 16 || Clamp(9, 2, 16) != 9 {
		t.Fatal("Clamp bounds")
	}
	if Min(3, 7) != 3 || Min(uint8(9), 4) != 4 {
		t.Fatal("Min")
	}
}

func TestDivisions(t *testing.T) {
	if CeilDiv[uint](7, 2) != 4 || CeilDiv[uint](8, 2) != 4 || CeilDiv[uint](1, 0) != 0 {
		t.Fatal("CeilDiv")
	}
	// 60 MHz / (16 * 115200) = 32.55 -> 33
	if RoundDiv[uint32](60_000_000, 16*115200) != 33 {
		t.Fatal("RoundDiv")
	}
	if RoundDiv[uint32](5, 0) != 0 {
		t.Fatal("RoundDiv by zero")
	}
}
