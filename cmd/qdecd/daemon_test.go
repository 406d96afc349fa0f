package main

import (
	"context"
	"testing"
	"time"

	"qdecd/qdec"
)

type daemonHarness struct {
	set    *EncoderSet
	events chan Event
	sink   chan StateBroadcast
	cancel context.CancelFunc
	done   chan struct{}
}

func startDaemon(t *testing.T, cfgs ...EncoderConfig) *daemonHarness {
	t.Helper()
	h := &daemonHarness{
		events: make(chan Event, eventQueueSize),
		sink:   make(chan StateBroadcast, broadcastQueueSize),
		done:   make(chan struct{}),
	}
	onIdle := func(name string) {
		h.events <- EncoderIdle{Encoder: name, At: time.Now()}
	}
	h.set = startSimSet(t, onIdle, cfgs...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		runDaemon(ctx, h.events, h.set, NewDaemonState(h.set.Infos()), 100, []chan<- StateBroadcast{h.sink}, testLogger())
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func TestDaemon_PublishesRotationAndTotals(t *testing.T) {
	h := startDaemon(t, simEncoder("knob", 24, 0))

	turn(t, h.set, "knob", 4)

	var whole int32
	deadline := time.After(2 * time.Second)
	for whole < 60 {
		select {
		case b := <-h.sink:
			r, ok := b.(BroadcastRotation)
			if !ok {
				continue
			}
			if r.Encoder != "knob" || r.Reading.Mode != qdec.ModeDegrees {
				t.Fatalf("unexpected broadcast: %+v", r)
			}
			whole += r.Reading.Whole
		case <-deadline:
			t.Fatalf("timeout waiting for rotation; got %d degrees", whole)
		}
	}
	if whole != 60 {
		t.Fatalf("expected 60 degrees, got %d", whole)
	}

	snap, err := requestSnapshot(context.Background(), h.events)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Encoders) != 1 {
		t.Fatalf("expected 1 encoder, got %d", len(snap.Encoders))
	}
	e := snap.Encoders[0]
	if e.TotalWhole != 60 || e.TotalFrac != 0 {
		t.Fatalf("expected total 60, got %d + %d", e.TotalWhole, e.TotalFrac)
	}
	if e.Stats == nil || e.Stats.Moves != 4 {
		t.Fatalf("expected stats with 4 moves, got %+v", e.Stats)
	}
}

func TestDaemon_IdleBroadcastOncePerQuietPeriod(t *testing.T) {
	h := startDaemon(t, simEncoder("knob", 24, 30))

	turn(t, h.set, "knob", 2)

	idles := 0
	timeout := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case b := <-h.sink:
			if _, ok := b.(BroadcastEncoderIdle); ok {
				idles++
			}
		case <-timeout:
			break loop
		}
	}
	if idles != 1 {
		t.Fatalf("expected exactly 1 idle broadcast, got %d", idles)
	}
}

func TestDaemon_ReadRequestResetsEncoder(t *testing.T) {
	// At 1 Hz the read itself drains the encoder.
	h := &daemonHarness{
		events: make(chan Event, eventQueueSize),
		done:   make(chan struct{}),
	}
	h.set = startSimSet(t, nil, simEncoder("knob", 24, 0))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(h.done)
		runDaemon(ctx, h.events, h.set, NewDaemonState(h.set.Infos()), 1, nil, testLogger())
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	turn(t, h.set, "knob", -2)

	res, err := requestRead(context.Background(), h.events, "knob", "test")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Reading.Whole != -30 {
		t.Fatalf("expected -30 degrees, got %v", res.Reading)
	}
	if res.Degrees == nil || *res.Degrees != -30 {
		t.Fatalf("expected degrees -30, got %v", res.Degrees)
	}

	res, err = requestRead(context.Background(), h.events, "knob", "test")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !res.Reading.IsZero() {
		t.Fatalf("expected zero after reset, got %v", res.Reading)
	}

	if _, err := requestRead(context.Background(), h.events, "missing", "test"); err == nil {
		t.Fatalf("expected error for unknown encoder")
	}
}

func TestDaemon_ReadSeesRotationAcrossTicks(t *testing.T) {
	h := startDaemon(t, simEncoder("knob", 24, 0))

	turn(t, h.set, "knob", 4)
	// Let several 10ms report ticks drain the encoder.
	time.Sleep(100 * time.Millisecond)

	res, err := requestRead(context.Background(), h.events, "knob", "ipc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Reading.Whole != 60 || res.Reading.Frac != 0 {
		t.Fatalf("expected 60 degrees since the last read, got %v", res.Reading)
	}

	res, err = requestRead(context.Background(), h.events, "knob", "ipc")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !res.Reading.IsZero() {
		t.Fatalf("expected zero after reset, got %v", res.Reading)
	}

	turn(t, h.set, "knob", -1)
	time.Sleep(50 * time.Millisecond)
	res, err = requestRead(context.Background(), h.events, "knob", "http")
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if res.Reading.Whole != -15 {
		t.Fatalf("expected -15 degrees, got %v", res.Reading)
	}
}

func TestDaemon_SimStepThroughEvents(t *testing.T) {
	h := startDaemon(t, simEncoder("knob", 24, 0))
	enc, _ := h.set.Get("knob")

	h.events <- SimStep{Encoder: "knob", Steps: 4}

	waitUntil(t, time.Second, func() bool {
		return enc.enc.Stats().Moves == 4
	}, "sim_step not applied")
}
