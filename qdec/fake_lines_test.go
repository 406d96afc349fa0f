package qdec

import (
	"sync"
	"testing"
	"time"
)

// fakeLine is a settable Line for tests.
type fakeLine struct {
	mu  sync.Mutex
	v   int
	err error
}

func (l *fakeLine) Value() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v, l.err
}

func (l *fakeLine) set(v int) {
	l.mu.Lock()
	l.v = v
	l.mu.Unlock()
}

func (l *fakeLine) fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

type fakePair struct {
	a, b *fakeLine
}

func newFakePair(s PhaseState) fakePair {
	p := fakePair{a: &fakeLine{}, b: &fakeLine{}}
	p.set(s)
	return p
}

func (p fakePair) set(s PhaseState) {
	av, bv := 0, 0
	if s.A() {
		av = 1
	}
	if s.B() {
		bv = 1
	}
	p.a.set(av)
	p.b.set(bv)
}

// clockwise is one full Gray cycle, each step decoding to +1.
var clockwise = []PhaseState{0b01, 0b11, 0b10, 0b00}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
