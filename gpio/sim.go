package gpio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"qdecd/qdec"
)

// grayCycle is the clockwise phase order.
var grayCycle = [4]qdec.PhaseState{0b00, 0b01, 0b11, 0b10}

// DefaultSettle is the pause between simulated steps, long enough for a
// decode worker to sample each intermediate state.
const DefaultSettle = 2 * time.Millisecond

// Sim is an in-memory encoder. Moving it changes the line levels and
// raises an edge, like turning a real knob.
type Sim struct {
	mu     sync.Mutex
	state  qdec.PhaseState
	err    error
	settle time.Duration

	onEdge func()
	edges  atomic.Uint64
}

// NewSim returns a simulated encoder resting at initial.
func NewSim(initial qdec.PhaseState, onEdge func()) *Sim {
	if onEdge == nil {
		onEdge = func() {}
	}
	return &Sim{state: initial & 0b11, onEdge: onEdge, settle: DefaultSettle}
}

type simLine struct {
	sim *Sim
	bit qdec.PhaseState
}

func (l simLine) Value() (int, error) {
	l.sim.mu.Lock()
	defer l.sim.mu.Unlock()
	if l.sim.err != nil {
		return 0, l.sim.err
	}
	if l.sim.state&l.bit != 0 {
		return 1, nil
	}
	return 0, nil
}

// Lines returns line A and line B.
func (s *Sim) Lines() (qdec.Line, qdec.Line) {
	return simLine{sim: s, bit: 0b10}, simLine{sim: s, bit: 0b01}
}

// SetSettle changes the pause between steps taken by Step.
func (s *Sim) SetSettle(d time.Duration) {
	s.mu.Lock()
	s.settle = d
	s.mu.Unlock()
}

// Phase returns the current line state.
func (s *Sim) Phase() qdec.PhaseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Edges returns how many edges have been raised.
func (s *Sim) Edges() uint64 { return s.edges.Load() }

// Fail makes subsequent line reads return err. Pass nil to recover.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Set forces the line state, raising an edge if it changed. Jumping both
// bits at once simulates a missed edge.
func (s *Sim) Set(p qdec.PhaseState) {
	s.mu.Lock()
	changed := s.state != p&0b11
	s.state = p & 0b11
	s.mu.Unlock()
	if changed {
		s.edges.Add(1)
		s.onEdge()
	}
}

// Step moves n quarter cycles, clockwise for n > 0. It pauses for the
// settle time between steps and stops early if ctx is canceled.
func (s *Sim) Step(ctx context.Context, n int) error {
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}

	s.mu.Lock()
	settle := s.settle
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		if i > 0 && settle > 0 {
			t := time.NewTimer(settle)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		s.Set(nextPhase(s.Phase(), dir))
	}
	return nil
}

// Detents turns the knob n full Gray cycles.
func (s *Sim) Detents(ctx context.Context, n int) error {
	return s.Step(ctx, n*len(grayCycle))
}

func nextPhase(p qdec.PhaseState, dir int) qdec.PhaseState {
	idx := 0
	for i, g := range grayCycle {
		if g == p {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(grayCycle)) % len(grayCycle)
	return grayCycle[idx]
}
