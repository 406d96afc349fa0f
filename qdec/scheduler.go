package qdec

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SchedulerConfig configures deferred sampling and idle detection.
type SchedulerConfig struct {
	// IdleTimeout is the quiet period after the last edge before OnIdle is
	// called. Zero disables idle detection.
	IdleTimeout time.Duration

	// PollInterval, when > 0, also samples on a fixed cadence. Polled samples
	// only re-arm the idle timer if the phase changed.
	PollInterval time.Duration

	// OnIdle is called once per Active -> Idle transition, from a timer
	// goroutine. It must not block.
	OnIdle func()
}

// Scheduler moves sampling out of the edge callback into a single worker
// goroutine and watches for inactivity.
//
// Trigger may be called from any goroutine at any rate. Edges arriving while
// a sample is already queued coalesce into it. The worker clears the queued
// flag before sampling, so an edge that lands during decode schedules one
// more sample.
type Scheduler struct {
	cfg    SchedulerConfig
	sample func() bool

	pending atomic.Bool
	kick    chan struct{}

	idleMu    sync.Mutex
	idleTimer *time.Timer
	idleGen   uint64
	idle      bool

	samples   atomic.Uint64
	idleCount atomic.Uint64
}

// NewScheduler returns a scheduler that runs sample on its worker. sample
// reports whether the phase changed.
func NewScheduler(cfg SchedulerConfig, sample func() bool) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		sample: sample,
		kick:   make(chan struct{}, 1),
		idle:   true,
	}
}

// Trigger schedules one sample. It never blocks.
func (s *Scheduler) Trigger() {
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run executes scheduled samples until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	var pollC <-chan time.Time
	if s.cfg.PollInterval > 0 {
		t := time.NewTicker(s.cfg.PollInterval)
		defer t.Stop()
		pollC = t.C
	}
	defer s.stopIdle()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.kick:
			s.pending.Store(false)
			s.samples.Add(1)
			s.sample()
			s.armIdle()

		case <-pollC:
			s.samples.Add(1)
			if s.sample() {
				s.armIdle()
			}
		}
	}
}

// Idle reports whether no edge has been seen for IdleTimeout. A scheduler
// that has never seen an edge is idle.
func (s *Scheduler) Idle() bool {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	return s.idle
}

// Samples returns the number of samples the worker has run.
func (s *Scheduler) Samples() uint64 { return s.samples.Load() }

// IdleEvents returns the number of idle notifications delivered.
func (s *Scheduler) IdleEvents() uint64 { return s.idleCount.Load() }

func (s *Scheduler) armIdle() {
	if s.cfg.IdleTimeout <= 0 {
		return
	}

	s.idleMu.Lock()
	defer s.idleMu.Unlock()

	s.idleGen++
	s.idle = false
	gen := s.idleGen

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.cfg.IdleTimeout, func() { s.fireIdle(gen) })
}

// fireIdle runs on the timer goroutine. A stale generation means an edge
// re-armed the timer after this one was scheduled.
func (s *Scheduler) fireIdle(gen uint64) {
	s.idleMu.Lock()
	if gen != s.idleGen || s.idle {
		s.idleMu.Unlock()
		return
	}
	s.idle = true
	s.idleMu.Unlock()

	s.idleCount.Add(1)
	if s.cfg.OnIdle != nil {
		s.cfg.OnIdle()
	}
}

func (s *Scheduler) stopIdle() {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
