package qdec

import (
	"errors"
	"testing"
)

func TestMode_RejectsZeroAtConstruction(t *testing.T) {
	if _, err := DegreesMode(0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("DegreesMode(0): expected ErrInvalidConfig, got %v", err)
	}
	if _, err := TicksMode(0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("TicksMode(0): expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewAccumulator(Mode{Kind: ModeDegrees}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewAccumulator(degrees, 0 steps): expected ErrInvalidConfig, got %v", err)
	}
	if err := (Mode{Kind: ModeKind(9), Resolution: 1}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("unknown kind: expected ErrInvalidConfig, got %v", err)
	}
}

func TestModeFromLegacy(t *testing.T) {
	m, err := ModeFromLegacy(0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != ModeTicks || m.Resolution != 4 {
		t.Fatalf("steps=0 should select ticks(4), got %v", m)
	}

	m, err = ModeFromLegacy(24, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != ModeDegrees || m.StepsPerRotation != 24 {
		t.Fatalf("steps=24 should select degrees(24), got %v", m)
	}

	if _, err := ModeFromLegacy(0, 0); err == nil {
		t.Fatalf("steps=0 resolution=0 should fail")
	}
}

func TestModeKind_Text(t *testing.T) {
	b, err := ModeDegrees.MarshalText()
	if err != nil || string(b) != "degrees" {
		t.Fatalf("MarshalText: got %q, %v", b, err)
	}
	var k ModeKind
	if err := k.UnmarshalText([]byte("ticks")); err != nil || k != ModeTicks {
		t.Fatalf("UnmarshalText(ticks): got %v, %v", k, err)
	}
	if err := k.UnmarshalText([]byte("radians")); err == nil {
		t.Fatalf("UnmarshalText(radians) should fail")
	}
}
