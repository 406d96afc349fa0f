package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qdecd/qdec"
)

var (
	errUnknownEncoder = errors.New("unknown encoder")
	errNotSimulated   = errors.New("encoder is not on the sim backend")
)

// runEffect executes a single reducer-emitted Command against the encoders
// and emits observation Events via onEvent.
//
// It must never call Reduce directly; sequencing is the daemon loop's job.
func runEffect(
	ctx context.Context,
	set *EncoderSet,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdReadAll:
		for _, h := range set.handles {
			r := h.enc.ReadRotation()
			if r.IsZero() {
				continue
			}
			onEvent(ReadingObserved{
				Encoder: h.name,
				Reading: r,
				Idle:    h.enc.Idle(),
				Source:  c.Source,
				At:      now,
			})
		}

	case CmdReadEncoder:
		h, ok := set.Get(c.Encoder)
		if !ok {
			onEvent(EncoderCommandFailed{Encoder: c.Encoder, Command: cmd, Err: errUnknownEncoder, At: now})
			replyRead(c.Reply, unknownEncoderResult(c.Encoder), logger)
			return
		}
		onEvent(ReadingObserved{
			Encoder: h.name,
			Reading: h.enc.ReadRotation(),
			Idle:    h.enc.Idle(),
			Source:  c.Source,
			At:      now,
			Reply:   c.Reply,
		})

	case CmdReplyReading:
		replyRead(c.Reply, c.Result, logger)

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		snap := c.Snapshot
		for i := range snap.Encoders {
			if h, ok := set.Get(snap.Encoders[i].Name); ok {
				st := h.enc.Stats()
				snap.Encoders[i].Stats = &st
			}
		}

		// Never block the daemon loop.
		select {
		case c.Reply <- snap:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case CmdSimStep:
		h, ok := set.Get(c.Encoder)
		if !ok {
			onEvent(EncoderCommandFailed{Encoder: c.Encoder, Command: cmd, Err: errUnknownEncoder, At: now})
			return
		}
		if h.pair.Sim == nil {
			logger.Warn("sim_step on non-sim encoder", "encoder", c.Encoder)
			onEvent(EncoderCommandFailed{Encoder: c.Encoder, Command: cmd, Err: errNotSimulated, At: now})
			return
		}
		// Steps settle between edges; run off the loop.
		go func() {
			if err := h.pair.Sim.Step(ctx, c.Steps); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("sim step interrupted", "encoder", c.Encoder, "error", err)
			}
		}()

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

func replyRead(reply chan ReadResult, res ReadResult, logger *slog.Logger) {
	if reply == nil {
		return
	}
	select {
	case reply <- res:
	default:
		logger.Warn("read reply channel not ready; dropping result", "encoder", res.Encoder)
	}
}

// readingDegrees returns the reading in degrees for degrees-mode readings.
func readingDegrees(r qdec.Reading) (float64, bool) {
	if r.Mode != qdec.ModeDegrees {
		return 0, false
	}
	return r.Degrees(), true
}
