package qdec

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_CoalescesTriggersDuringSample(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	s := NewScheduler(SchedulerConfig{}, func() bool {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return true
	})
	go s.Run(ctx)

	s.Trigger()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("first sample never ran")
	}

	for i := 0; i < 100; i++ {
		s.Trigger()
	}
	close(release)

	waitUntil(t, time.Second, func() bool { return calls.Load() == 2 }, "expected a second, coalesced sample")
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Fatalf("samples: got %d, want 2", got)
	}
}

func TestScheduler_IdleNotifiesOncePerQuietPeriod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var idles atomic.Int32
	s := NewScheduler(SchedulerConfig{
		IdleTimeout: 30 * time.Millisecond,
		OnIdle:      func() { idles.Add(1) },
	}, func() bool { return true })
	go s.Run(ctx)

	if !s.Idle() {
		t.Fatalf("a fresh scheduler should be idle")
	}

	for i := 0; i < 5; i++ {
		s.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	waitUntil(t, time.Second, func() bool { return idles.Load() == 1 }, "expected one idle notification")
	time.Sleep(100 * time.Millisecond)
	if got := idles.Load(); got != 1 {
		t.Fatalf("idle notifications after one burst: got %d, want 1", got)
	}
	if !s.Idle() {
		t.Fatalf("scheduler should report idle")
	}

	// Idle -> Active is silent, the next quiet period notifies again.
	s.Trigger()
	waitUntil(t, time.Second, func() bool { return idles.Load() == 2 }, "expected a second idle notification")
	if got := s.IdleEvents(); got != 2 {
		t.Fatalf("IdleEvents: got %d, want 2", got)
	}
}

func TestScheduler_EdgeCancelsPendingIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var idles atomic.Int32
	s := NewScheduler(SchedulerConfig{
		IdleTimeout: 80 * time.Millisecond,
		OnIdle:      func() { idles.Add(1) },
	}, func() bool { return true })
	go s.Run(ctx)

	for i := 0; i < 10; i++ {
		s.Trigger()
		time.Sleep(20 * time.Millisecond)
	}
	if got := idles.Load(); got != 0 {
		t.Fatalf("idle fired while edges kept arriving: %d", got)
	}
	if s.Idle() {
		t.Fatalf("scheduler should be active")
	}
	waitUntil(t, time.Second, func() bool { return idles.Load() == 1 }, "expected idle after edges stopped")
}

func TestScheduler_ZeroTimeoutDisablesIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var idles atomic.Int32
	s := NewScheduler(SchedulerConfig{OnIdle: func() { idles.Add(1) }}, func() bool { return true })
	go s.Run(ctx)

	s.Trigger()
	waitUntil(t, time.Second, func() bool { return s.Samples() == 1 }, "sample did not run")
	time.Sleep(30 * time.Millisecond)
	if got := idles.Load(); got != 0 {
		t.Fatalf("idle fired with zero timeout: %d", got)
	}
}

func TestScheduler_PollOnlyArmsIdleOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changed atomic.Bool
	var idles atomic.Int32
	s := NewScheduler(SchedulerConfig{
		IdleTimeout:  20 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		OnIdle:       func() { idles.Add(1) },
	}, func() bool { return changed.Swap(false) })
	go s.Run(ctx)

	waitUntil(t, time.Second, func() bool { return s.Samples() >= 5 }, "poll samples did not run")
	time.Sleep(40 * time.Millisecond)
	if got := idles.Load(); got != 0 {
		t.Fatalf("unchanged polls armed idle: %d notifications", got)
	}

	changed.Store(true)
	waitUntil(t, time.Second, func() bool { return idles.Load() == 1 }, "expected idle after a polled change")
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(SchedulerConfig{IdleTimeout: 10 * time.Millisecond}, func() bool { return true })
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	s.Trigger()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
