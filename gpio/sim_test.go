package gpio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"qdecd/qdec"
)

func TestSim_StepFollowsGrayCycle(t *testing.T) {
	var edges atomic.Int32
	s := NewSim(0b00, func() { edges.Add(1) })
	s.SetSettle(0)

	want := []qdec.PhaseState{0b01, 0b11, 0b10, 0b00, 0b01}
	for i, w := range want {
		if err := s.Step(context.Background(), 1); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if got := s.Phase(); got != w {
			t.Fatalf("step %d: got %v, want %v", i, got, w)
		}
	}
	if got := edges.Load(); got != int32(len(want)) {
		t.Fatalf("edges: got %d, want %d", got, len(want))
	}

	if err := s.Step(context.Background(), -2); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := s.Phase(); got != 0b10 {
		t.Fatalf("after two ccw steps: got %v, want 10", got)
	}
}

func TestSim_LinesReflectState(t *testing.T) {
	s := NewSim(0b10, nil)
	a, b := s.Lines()

	got, err := qdec.SamplePhase(a, b)
	if err != nil {
		t.Fatalf("SamplePhase: %v", err)
	}
	if got != 0b10 {
		t.Fatalf("got %v, want 10", got)
	}

	s.Fail(errors.New("unplugged"))
	if _, err := qdec.SamplePhase(a, b); !errors.Is(err, qdec.ErrIO) {
		t.Fatalf("expected ErrIO while failing, got %v", err)
	}
}

func TestSim_SetSameStateNoEdge(t *testing.T) {
	var edges atomic.Int32
	s := NewSim(0b01, func() { edges.Add(1) })
	s.Set(0b01)
	if got := edges.Load(); got != 0 {
		t.Fatalf("edges for unchanged state: %d", got)
	}
}

func TestSim_StepHonorsCancel(t *testing.T) {
	s := NewSim(0, nil)
	s.SetSettle(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Step(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := s.Edges(); got != 1 {
		t.Fatalf("edges before cancel took effect: got %d, want 1", got)
	}
}

func TestSim_DrivesEncoder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mode, err := qdec.DegreesMode(24)
	if err != nil {
		t.Fatalf("DegreesMode: %v", err)
	}
	enc, err := qdec.NewEncoder(qdec.Config{Name: "sim", Mode: mode})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	pair, err := Open(Spec{Backend: BackendSim}, enc.Edge, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pair.Close()

	if err := enc.Init(pair.A, pair.B); err != nil {
		t.Fatalf("Init: %v", err)
	}
	go enc.Run(ctx)

	if err := pair.Sim.Detents(ctx, 2); err != nil {
		t.Fatalf("Detents: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for enc.Stats().Moves < 8 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := enc.ReadRotation()
	if got.Whole != 120 || got.Frac != 0 {
		t.Fatalf("two detents at 24 steps: got %v, want 120 deg", got)
	}
}
