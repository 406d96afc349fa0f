package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitUntil polls cond until it returns true or timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func simEncoder(name string, steps, idleMS int) EncoderConfig {
	return EncoderConfig{
		Name:             name,
		Backend:          "sim",
		StepsPerRotation: steps,
		Resolution:       1,
		IdleMS:           idleMS,
	}
}

// startSimSet opens sim encoders and runs them until the test ends.
func startSimSet(t *testing.T, onIdle func(string), cfgs ...EncoderConfig) *EncoderSet {
	t.Helper()
	set, err := OpenEncoders(cfgs, onIdle, testLogger())
	if err != nil {
		t.Fatalf("OpenEncoders: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = set.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = set.Close()
	})
	return set
}

// turn steps a sim encoder and waits until every step has been decoded.
func turn(t *testing.T, set *EncoderSet, name string, steps int) {
	t.Helper()
	h, ok := set.Get(name)
	if !ok || h.pair.Sim == nil {
		t.Fatalf("no sim encoder %q", name)
	}
	before := h.enc.Stats().Moves
	if err := h.pair.Sim.Step(context.Background(), steps); err != nil {
		t.Fatalf("Step: %v", err)
	}
	n := steps
	if n < 0 {
		n = -n
	}
	waitUntil(t, time.Second, func() bool {
		return h.enc.Stats().Moves >= before+uint64(n)
	}, "steps not decoded")
}
