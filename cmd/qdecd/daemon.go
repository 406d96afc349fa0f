package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The daemon loop is the only place that executes side effects (encoder reads).
//   - Read results are turned into Events and fed back into the reducer.
//   - Broadcasts fan out to sinks without blocking the loop.
//
// ============================================================================

// runDaemon receives Events, emits a Tick at reportHz, reduces events into
// (state, commands, broadcasts) and executes commands against the encoders.
//
// It exits when ctx is canceled or the events channel is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	set *EncoderSet,
	state *DaemonState,
	reportHz int,
	sinks []chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if reportHz <= 0 {
		reportHz = defaultReportHz
	}

	ticker := time.NewTicker(time.Second / time.Duration(reportHz))
	defer ticker.Stop()

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcasts []StateBroadcast) {
		for _, b := range bcasts {
			for _, sink := range sinks {
				select {
				case sink <- b:
				default:
					logger.Warn("broadcast sink full; dropping", "broadcast", broadcastName(b))
				}
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(ctx, set, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			enqueueEvent(Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}

func broadcastName(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastRotation:
		return "rotation"
	case BroadcastEncoderIdle:
		return "encoder_idle"
	default:
		return "unknown"
	}
}
