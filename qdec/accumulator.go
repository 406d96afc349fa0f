package qdec

import (
	"fmt"
	"math"
	"sync"
)

// Reading is the rotation reported by one ReadAndReset.
//
// In degrees mode Whole is whole degrees and Frac the remainder in
// millionths of a degree. In ticks mode Whole is the tick count and Frac the
// delta of the most recent step. Both parts carry the sign of the rotation.
//
// Pulses is the raw step count behind a degrees reading, so consumers can
// sum readings without compounding the truncated Frac.
type Reading struct {
	Mode   ModeKind `json:"mode"`
	Whole  int32    `json:"whole"`
	Frac   int32    `json:"frac"`
	Pulses int32    `json:"pulses,omitempty"`
}

// IsZero reports whether the reading carries no movement.
func (r Reading) IsZero() bool { return r.Whole == 0 && r.Frac == 0 && r.Pulses == 0 }

// Degrees returns the reading as a float. Only meaningful in degrees mode.
func (r Reading) Degrees() float64 {
	return float64(r.Whole) + float64(r.Frac)/1e6
}

func (r Reading) String() string {
	if r.Mode == ModeDegrees {
		return fmt.Sprintf("%d deg + %d udeg", r.Whole, r.Frac)
	}
	return fmt.Sprintf("%d ticks (last %+d)", r.Whole, r.Frac)
}

// Accumulator integrates step deltas and hands them out exactly once.
//
// Record is called from the decode worker and ReadAndReset from any
// goroutine; both hold mu for a handful of arithmetic operations only.
//
// pulses is an int32 and wraps like any Go int32 on overflow. The degrees
// conversion is done in int64, so pulses*360 cannot overflow.
type Accumulator struct {
	mode Mode

	mu        sync.Mutex
	pulses    int32
	ticks     int32
	lastDelta int8
}

// NewAccumulator returns an accumulator for a validated mode.
func NewAccumulator(m Mode) (*Accumulator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Accumulator{mode: m}, nil
}

// Mode returns the configured reporting mode.
func (a *Accumulator) Mode() Mode { return a.mode }

// Record adds one decoded delta.
func (a *Accumulator) Record(delta int8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pulses += int32(delta)
	if a.mode.Kind != ModeTicks {
		return
	}

	res := int32(a.mode.Resolution)
	a.ticks += a.pulses / res
	a.lastDelta = delta
	a.pulses %= res
}

// ReadAndReset returns everything recorded since the previous call and
// clears it. A record racing with this call lands either in this reading or
// intact in the next one.
func (a *Accumulator) ReadAndReset() Reading {
	a.mu.Lock()
	pulses, ticks, last := a.pulses, a.ticks, a.lastDelta
	if a.mode.Kind == ModeDegrees {
		a.pulses = 0
	} else {
		// the sub-tick remainder stays for the next tick
		a.ticks = 0
		a.lastDelta = 0
	}
	a.mu.Unlock()

	if a.mode.Kind == ModeTicks {
		return Reading{Mode: ModeTicks, Whole: ticks, Frac: int32(last)}
	}
	return DegreesReading(int64(pulses), a.mode.StepsPerRotation)
}

// Pending returns un-read pulses without resetting them.
func (a *Accumulator) Pending() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pulses
}

// DegreesReading converts a pulse count at steps per rotation into a degrees
// reading. Whole and Pulses saturate at the int32 range.
func DegreesReading(pulses int64, steps int) Reading {
	whole, frac := PulsesToDegrees(pulses, steps)
	return Reading{
		Mode:   ModeDegrees,
		Whole:  clampInt32(whole),
		Frac:   int32(frac),
		Pulses: clampInt32(pulses),
	}
}

// PulsesToDegrees returns whole degrees and the remainder in millionths of a
// degree, both truncated toward zero. steps must be positive.
func PulsesToDegrees(pulses int64, steps int) (whole, frac int64) {
	s := int64(steps)
	scaled := pulses * FullRotation
	return scaled / s, scaled % s * 1_000_000 / s
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
