package main

import (
	"time"

	"qdecd/qdec"
)

// This file holds the reducer building blocks:
//
//   - Events: inputs to the reducer (ticks, encoder observations, client requests)
//   - Commands: side effects the daemon loop executes against the encoders
//   - Broadcasts: state changes published to WebSocket clients and exporters
//
// Reduce performs no I/O. The daemon loop executes Commands and feeds the
// resulting observations back in as Events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop at the report cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// TimedEvent wraps a payload event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// ReadingObserved is emitted after a non-empty read of an encoder, and after
// every read done on behalf of a client request. Reply is set for the latter.
type ReadingObserved struct {
	Encoder string
	Reading qdec.Reading
	Idle    bool   // encoder idle flag at read time
	Source  string // "tick", "ipc", "http"
	At      time.Time
	Reply   chan ReadResult
}

func (ReadingObserved) eventMarker() {}

// EncoderIdle is emitted when an encoder has been quiet for its idle timeout.
type EncoderIdle struct {
	Encoder string
	At      time.Time
}

func (EncoderIdle) eventMarker() {}

// EncoderCommandFailed is emitted when executing a Command fails.
type EncoderCommandFailed struct {
	Encoder string
	Command Command
	Err     error
	At      time.Time
}

func (EncoderCommandFailed) eventMarker() {}

// RequestStateSnapshot asks the loop for a copy of the state. Reply must be
// buffered; the loop never blocks on it.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// RequestReading asks the loop for the rotation of one encoder since the
// previous client read, and resets it.
type RequestReading struct {
	Encoder string
	Source  string
	Reply   chan ReadResult
}

func (RequestReading) eventMarker() {}

// ReadResult is the answer to RequestReading.
type ReadResult struct {
	Encoder string       `json:"encoder"`
	Reading qdec.Reading `json:"reading"`
	Degrees *float64     `json:"degrees,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a state change published outside the daemon loop.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastRotation carries one observed reading and the new totals.
type BroadcastRotation struct {
	Encoder    string
	Reading    qdec.Reading
	TotalWhole int64
	TotalFrac  int64
	At         time.Time
}

func (BroadcastRotation) broadcastMarker() {}

// BroadcastEncoderIdle is published once per Active -> Idle transition.
type BroadcastEncoderIdle struct {
	Encoder string
	At      time.Time
}

func (BroadcastEncoderIdle) broadcastMarker() {}

// ==============================
// Reducer
// ==============================

// ReduceResult is the output of Reduce: next state, Commands to execute and
// Broadcasts to publish.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer. It must not perform I/O or block, and only
// mutates the state it returns.
func Reduce(s *DaemonState, e Event) ReduceResult {
	if s == nil {
		s = NewDaemonState(nil)
	}

	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case Tick:
		cmds = append(cmds, CmdReadAll{Source: "tick"})

	case ReadingObserved:
		enc, ok := s.Encoders[ev.Encoder]
		if !ok {
			if ev.Reply != nil {
				cmds = append(cmds, CmdReplyReading{Reply: ev.Reply, Result: unknownEncoderResult(ev.Encoder)})
			}
			break
		}
		if !ev.Reading.IsZero() {
			enc.ApplyReading(ev.Reading, ev.At)
			if ev.Idle {
				markIdle(enc, ev.At)
			} else {
				enc.Idle = false
			}
			bcasts = append(bcasts, BroadcastRotation{
				Encoder:    enc.Name,
				Reading:    ev.Reading,
				TotalWhole: enc.TotalWhole,
				TotalFrac:  enc.TotalFrac,
				At:         ev.At,
			})
		}
		if ev.Reply != nil {
			cmds = append(cmds, CmdReplyReading{Reply: ev.Reply, Result: newReadResult(enc.Name, enc.TakeUnread())})
		}

	case EncoderIdle:
		enc, ok := s.Encoders[ev.Encoder]
		if !ok {
			break
		}
		// The encoder notifies once per quiet period; publish every one.
		markIdle(enc, ev.At)
		bcasts = append(bcasts, BroadcastEncoderIdle{Encoder: enc.Name, At: ev.At})

	case EncoderCommandFailed:
		if enc, ok := s.Encoders[ev.Encoder]; ok && ev.Err != nil {
			enc.LastError = ev.Err.Error()
			enc.LastErrorAt = ev.At
		}

	case RequestStateSnapshot:
		if at.IsZero() {
			at = time.Now()
		}
		cmds = append(cmds, CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot(at)})

	case RequestReading:
		if _, ok := s.Encoders[ev.Encoder]; !ok {
			cmds = append(cmds, CmdReplyReading{Reply: ev.Reply, Result: unknownEncoderResult(ev.Encoder)})
			break
		}
		// Drain the encoder first so the answer includes rotation the next
		// tick would have picked up.
		cmds = append(cmds, CmdReadEncoder{Encoder: ev.Encoder, Source: ev.Source, Reply: ev.Reply})

	case SimStep:
		cmds = append(cmds, CmdSimStep{Encoder: ev.Encoder, Steps: ev.Steps})

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}

func newReadResult(name string, r qdec.Reading) ReadResult {
	res := ReadResult{Encoder: name, Reading: r}
	if deg, ok := readingDegrees(r); ok {
		res.Degrees = &deg
	}
	return res
}

func unknownEncoderResult(name string) ReadResult {
	return ReadResult{Encoder: name, Error: errUnknownEncoder.Error()}
}

func markIdle(enc *EncoderState, at time.Time) {
	if !enc.Idle {
		enc.IdleAt = at
	}
	enc.Idle = true
}
