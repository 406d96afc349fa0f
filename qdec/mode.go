package qdec

import "fmt"

// FullRotation is the number of degrees reported for one revolution.
const FullRotation = 360

// ModeKind selects how accumulated pulses are reported.
type ModeKind uint8

const (
	// ModeTicks reports whole ticks of Resolution pulses plus the last step delta.
	ModeTicks ModeKind = iota
	// ModeDegrees reports degrees of rotation as whole + micro-degree parts.
	ModeDegrees
)

func (k ModeKind) String() string {
	switch k {
	case ModeTicks:
		return "ticks"
	case ModeDegrees:
		return "degrees"
	default:
		return fmt.Sprintf("ModeKind(%d)", uint8(k))
	}
}

func (k ModeKind) MarshalText() ([]byte, error) {
	switch k {
	case ModeTicks, ModeDegrees:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown mode kind %d", uint8(k))
	}
}

func (k *ModeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ticks":
		*k = ModeTicks
	case "degrees":
		*k = ModeDegrees
	default:
		return fmt.Errorf("unknown mode %q (want ticks or degrees)", string(b))
	}
	return nil
}

// Mode is the reporting convention of an accumulator. Exactly one of
// Resolution and StepsPerRotation is meaningful, selected by Kind. Build it
// with TicksMode, DegreesMode or ModeFromLegacy.
type Mode struct {
	Kind             ModeKind
	Resolution       int // pulses per tick (ModeTicks)
	StepsPerRotation int // pulses per revolution (ModeDegrees)
}

// TicksMode returns a ticks-mode configuration. resolution must be > 0.
func TicksMode(resolution int) (Mode, error) {
	m := Mode{Kind: ModeTicks, Resolution: resolution}
	if err := m.Validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

// DegreesMode returns a degrees-mode configuration. steps must be > 0.
func DegreesMode(steps int) (Mode, error) {
	m := Mode{Kind: ModeDegrees, StepsPerRotation: steps}
	if err := m.Validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

// ModeFromLegacy maps the single-field form, where steps == 0 selects ticks
// mode with the given resolution, onto a Mode.
func ModeFromLegacy(steps, resolution int) (Mode, error) {
	if steps == 0 {
		return TicksMode(resolution)
	}
	return DegreesMode(steps)
}

// Validate rejects settings that would divide by zero at read time.
func (m Mode) Validate() error {
	switch m.Kind {
	case ModeTicks:
		if m.Resolution <= 0 {
			return fmt.Errorf("%w: resolution must be > 0 in ticks mode (got %d)", ErrInvalidConfig, m.Resolution)
		}
	case ModeDegrees:
		if m.StepsPerRotation <= 0 {
			return fmt.Errorf("%w: steps_per_rotation must be > 0 in degrees mode (got %d)", ErrInvalidConfig, m.StepsPerRotation)
		}
	default:
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, m.Kind)
	}
	return nil
}

func (m Mode) String() string {
	if m.Kind == ModeDegrees {
		return fmt.Sprintf("degrees(steps=%d)", m.StepsPerRotation)
	}
	return fmt.Sprintf("ticks(resolution=%d)", m.Resolution)
}
