package qdec

// TransitionCode is (previous<<2)|current, always in 0..15.
type TransitionCode uint8

// Transition combines two consecutive phase samples.
func Transition(prev, cur PhaseState) TransitionCode {
	return TransitionCode((prev&0b11)<<2 | cur&0b11)
}

// deltaTable maps every transition code to a step delta. Codes where both
// bits changed at once (a missed edge) decode to 0, as do unchanged states.
var deltaTable = [16]int8{
	0b0000: 0,
	0b0001: +1,
	0b0010: -1,
	0b0011: 0,
	0b0100: -1,
	0b0101: 0,
	0b0110: 0,
	0b0111: +1,
	0b1000: +1,
	0b1001: 0,
	0b1010: 0,
	0b1011: -1,
	0b1100: 0,
	0b1101: -1,
	0b1110: +1,
	0b1111: 0,
}

// Delta returns the signed step for a transition code: +1 clockwise,
// -1 counter-clockwise, 0 for no movement or an invalid jump.
func (c TransitionCode) Delta() int8 {
	return deltaTable[c&0x0f]
}

// IsGlitch reports whether both phase bits flipped in one sample.
func (c TransitionCode) IsGlitch() bool {
	prev := (c >> 2) & 0b11
	cur := c & 0b11
	return prev^cur == 0b11
}

// Decode returns the step delta between two consecutive phase samples.
func Decode(prev, cur PhaseState) int8 {
	return Transition(prev, cur).Delta()
}
