package qdec

import "fmt"

// Line is a single digital input. Value returns 0 for low and any other
// value for high.
type Line interface {
	Value() (int, error)
}

// PhaseState packs the two encoder lines as (A<<1)|B.
type PhaseState uint8

// PhaseFromLevels builds a PhaseState from raw line levels.
func PhaseFromLevels(a, b int) PhaseState {
	var s PhaseState
	if a != 0 {
		s |= 0b10
	}
	if b != 0 {
		s |= 0b01
	}
	return s
}

// A reports the level of line A.
func (s PhaseState) A() bool { return s&0b10 != 0 }

// B reports the level of line B.
func (s PhaseState) B() bool { return s&0b01 != 0 }

func (s PhaseState) String() string {
	return fmt.Sprintf("%02b", uint8(s&0b11))
}

// SamplePhase reads both lines and packs them into a PhaseState.
// A failed read is returned wrapping ErrIO and must not be decoded.
func SamplePhase(a, b Line) (PhaseState, error) {
	va, err := a.Value()
	if err != nil {
		return 0, fmt.Errorf("%w: line a: %v", ErrIO, err)
	}
	vb, err := b.Value()
	if err != nil {
		return 0, fmt.Errorf("%w: line b: %v", ErrIO, err)
	}
	return PhaseFromLevels(va, vb), nil
}
