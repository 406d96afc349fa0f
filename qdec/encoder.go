// Package qdec decodes two-phase quadrature encoder signals into rotation.
//
// An Encoder owns the phase state and pulse accumulator of one physical
// device. Edge callbacks only schedule work; sampling and decoding run on a
// single worker goroutine started by Run, and readers call ReadRotation from
// anywhere.
package qdec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Channel identifies what a caller asks the encoder for.
type Channel uint8

const (
	ChannelAll Channel = iota
	ChannelRotation
)

func (c Channel) String() string {
	switch c {
	case ChannelAll:
		return "all"
	case ChannelRotation:
		return "rotation"
	default:
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
}

// Config describes one encoder.
type Config struct {
	Name string
	Mode Mode

	IdleTimeout  time.Duration
	PollInterval time.Duration

	// OnIdle is called once each time the encoder goes quiet for IdleTimeout.
	OnIdle func()

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Stats is a point-in-time copy of the encoder counters.
type Stats struct {
	Samples    uint64 `json:"samples"`
	Moves      uint64 `json:"moves"`
	Glitches   uint64 `json:"glitches"`
	ReadErrors uint64 `json:"read_errors"`
	IdleEvents uint64 `json:"idle_events"`
	Pending    int32  `json:"pending"`
	Idle       bool   `json:"idle"`
}

// Encoder decodes one quadrature encoder.
type Encoder struct {
	name   string
	logger *slog.Logger

	acc   *Accumulator
	sched *Scheduler

	a, b  Line
	state PhaseState // worker-owned after Init
	ready atomic.Bool

	moves      atomic.Uint64
	glitches   atomic.Uint64
	readErrors atomic.Uint64
}

// NewEncoder validates cfg and returns an encoder that still needs Init.
// Edge may be called before Init; the sample is taken once Run starts.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: encoder name must not be empty", ErrInvalidConfig)
	}
	if cfg.IdleTimeout < 0 || cfg.PollInterval < 0 {
		return nil, fmt.Errorf("%w: %s: durations must be >= 0", ErrInvalidConfig, cfg.Name)
	}
	acc, err := NewAccumulator(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Encoder{
		name:   cfg.Name,
		logger: logger.With("encoder", cfg.Name),
		acc:    acc,
	}
	e.sched = NewScheduler(SchedulerConfig{
		IdleTimeout:  cfg.IdleTimeout,
		PollInterval: cfg.PollInterval,
		OnIdle:       cfg.OnIdle,
	}, e.sample)
	return e, nil
}

// Init attaches the phase lines and takes the initial sample.
func (e *Encoder) Init(a, b Line) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: %s: both phase lines are required", ErrNotReady, e.name)
	}
	st, err := SamplePhase(a, b)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotReady, e.name, err)
	}
	e.a, e.b = a, b
	e.state = st
	e.ready.Store(true)
	e.logger.Debug("encoder initialized", "phase", st.String(), "mode", e.acc.Mode().String())
	return nil
}

// Name returns the configured encoder name.
func (e *Encoder) Name() string { return e.name }

// Mode returns the reporting mode.
func (e *Encoder) Mode() Mode { return e.acc.Mode() }

// Edge is the edge callback for either phase line. It never blocks.
func (e *Encoder) Edge() { e.sched.Trigger() }

// Run runs the decode worker until ctx is canceled.
func (e *Encoder) Run(ctx context.Context) error {
	if !e.ready.Load() {
		return fmt.Errorf("%s: %w", e.name, ErrNotInitialized)
	}
	e.sched.Run(ctx)
	return nil
}

// Fetch samples both lines, decodes against the previous sample and records
// the delta. It must only be called from the goroutine running decode work;
// Run does this on every scheduled sample.
func (e *Encoder) Fetch(ch Channel) error {
	if ch != ChannelAll && ch != ChannelRotation {
		return fmt.Errorf("%s: fetch %v: %w", e.name, ch, ErrNotSupported)
	}
	if !e.ready.Load() {
		return fmt.Errorf("%s: %w", e.name, ErrNotInitialized)
	}
	_, err := e.step()
	return err
}

// step returns whether the phase changed.
func (e *Encoder) step() (bool, error) {
	cur, err := SamplePhase(e.a, e.b)
	if err != nil {
		e.readErrors.Add(1)
		return false, fmt.Errorf("%s: %w", e.name, err)
	}

	prev := e.state
	if cur == prev {
		return false, nil
	}

	code := Transition(prev, cur)
	delta := code.Delta()
	e.state = cur

	if code.IsGlitch() {
		e.glitches.Add(1)
	}
	if delta != 0 {
		e.moves.Add(1)
	}
	// A glitch records 0 so ticks mode reports no last step.
	e.acc.Record(delta)
	e.logger.Debug("phase change", "prev", prev.String(), "cur", cur.String(), "delta", delta)
	return true, nil
}

func (e *Encoder) sample() bool {
	changed, err := e.step()
	if err != nil {
		e.logger.Debug("sample failed", "error", err)
	}
	return changed
}

// Read returns the rotation since the previous read.
func (e *Encoder) Read(ch Channel) (Reading, error) {
	if ch != ChannelRotation {
		return Reading{}, fmt.Errorf("%s: read %v: %w", e.name, ch, ErrNotSupported)
	}
	return e.ReadRotation(), nil
}

// ReadRotation returns and clears the accumulated rotation.
func (e *Encoder) ReadRotation() Reading {
	return e.acc.ReadAndReset()
}

// Idle reports whether the encoder is currently quiet.
func (e *Encoder) Idle() bool { return e.sched.Idle() }

// Stats returns the encoder counters.
func (e *Encoder) Stats() Stats {
	return Stats{
		Samples:    e.sched.Samples(),
		Moves:      e.moves.Load(),
		Glitches:   e.glitches.Load(),
		ReadErrors: e.readErrors.Load(),
		IdleEvents: e.sched.IdleEvents(),
		Pending:    e.acc.Pending(),
		Idle:       e.sched.Idle(),
	}
}
