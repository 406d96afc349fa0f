package main

import (
	"math"
	"time"

	"qdecd/qdec"
)

// DaemonState is the daemon-owned state container. Only the daemon loop
// touches it; other goroutines get copies through StateSnapshot.
type DaemonState struct {
	// Encoders by name, and their configured order for snapshots.
	Encoders map[string]*EncoderState
	Order    []string
}

// EncoderState is what the daemon knows about one encoder from the readings
// it has observed.
type EncoderState struct {
	Name             string
	Mode             qdec.ModeKind
	StepsPerRotation int

	// Running totals since start. Degrees mode derives whole degrees and a
	// micro-degree part from TotalPulses; ticks mode only uses TotalWhole.
	TotalPulses int64
	TotalWhole  int64
	TotalFrac   int64

	// Rotation observed since the last client read. The report tick drains
	// the encoder, so client reads are answered from here.
	UnreadPulses int64
	UnreadTicks  int64
	UnreadLast   int32

	LastReading   qdec.Reading
	LastReadingAt time.Time
	Readings      uint64

	Idle   bool
	IdleAt time.Time

	LastError   string
	LastErrorAt time.Time
}

// EncoderInfo is the static description used to seed DaemonState.
type EncoderInfo struct {
	Name             string
	Mode             qdec.ModeKind
	StepsPerRotation int
}

// NewDaemonState returns a state with one idle entry per encoder.
func NewDaemonState(encoders []EncoderInfo) *DaemonState {
	s := &DaemonState{Encoders: make(map[string]*EncoderState, len(encoders))}
	for _, e := range encoders {
		s.Encoders[e.Name] = &EncoderState{
			Name:             e.Name,
			Mode:             e.Mode,
			StepsPerRotation: e.StepsPerRotation,
			Idle:             true,
		}
		s.Order = append(s.Order, e.Name)
	}
	return s
}

func (e *EncoderState) degrees() bool {
	return e.Mode == qdec.ModeDegrees && e.StepsPerRotation > 0
}

// ApplyReading folds one reading into the running totals and the unread
// balance.
func (e *EncoderState) ApplyReading(r qdec.Reading, at time.Time) {
	e.LastReading = r
	e.LastReadingAt = at
	e.Readings++

	if e.degrees() {
		e.TotalPulses += int64(r.Pulses)
		e.UnreadPulses += int64(r.Pulses)
		e.TotalWhole, e.TotalFrac = qdec.PulsesToDegrees(e.TotalPulses, e.StepsPerRotation)
		return
	}
	e.TotalWhole += int64(r.Whole)
	e.UnreadTicks += int64(r.Whole)
	e.UnreadLast = r.Frac
}

// TakeUnread returns the rotation observed since the previous call and
// clears it.
func (e *EncoderState) TakeUnread() qdec.Reading {
	if e.degrees() {
		r := qdec.DegreesReading(e.UnreadPulses, e.StepsPerRotation)
		e.UnreadPulses = 0
		return r
	}
	r := qdec.Reading{Mode: qdec.ModeTicks, Whole: saturate32(e.UnreadTicks), Frac: e.UnreadLast}
	e.UnreadTicks, e.UnreadLast = 0, 0
	return r
}

func saturate32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// StateSnapshot is a consistent copy of the daemon state for clients.
type StateSnapshot struct {
	At       time.Time         `json:"at"`
	Encoders []EncoderSnapshot `json:"encoders"`
}

type EncoderSnapshot struct {
	Name          string        `json:"name"`
	Mode          qdec.ModeKind `json:"mode"`
	TotalPulses   int64         `json:"total_pulses,omitempty"`
	TotalWhole    int64         `json:"total_whole"`
	TotalFrac     int64         `json:"total_frac"`
	LastReading   qdec.Reading  `json:"last_reading"`
	LastReadingAt time.Time     `json:"last_reading_at"`
	Readings      uint64        `json:"readings"`
	Idle          bool          `json:"idle"`
	IdleAt        time.Time     `json:"idle_at"`
	LastError     string        `json:"last_error,omitempty"`

	// Stats is filled from the live encoder when the snapshot is published.
	Stats *qdec.Stats `json:"stats,omitempty"`
}

// Snapshot copies the state. It never shares pointers with s.
func (s *DaemonState) Snapshot(at time.Time) StateSnapshot {
	snap := StateSnapshot{At: at, Encoders: make([]EncoderSnapshot, 0, len(s.Order))}
	for _, name := range s.Order {
		e := s.Encoders[name]
		if e == nil {
			continue
		}
		snap.Encoders = append(snap.Encoders, EncoderSnapshot{
			Name:          e.Name,
			Mode:          e.Mode,
			TotalPulses:   e.TotalPulses,
			TotalWhole:    e.TotalWhole,
			TotalFrac:     e.TotalFrac,
			LastReading:   e.LastReading,
			LastReadingAt: e.LastReadingAt,
			Readings:      e.Readings,
			Idle:          e.Idle,
			IdleAt:        e.IdleAt,
			LastError:     e.LastError,
		})
	}
	return snap
}
