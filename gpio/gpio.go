// Package gpio opens the two phase lines of an encoder on one of several
// backends and forwards their edges to a callback.
package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"qdecd/qdec"
)

// Backend names accepted by Open.
const (
	BackendCdev   = "cdev"
	BackendSysfs  = "sysfs"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

// ErrUnsupported is returned for a backend that is not available on this
// platform.
var ErrUnsupported = errors.New("gpio: backend not supported on this platform")

// Spec describes where the phase lines of one encoder live.
type Spec struct {
	Backend string

	// Chip is the gpiochip name or path for the cdev backend.
	Chip string

	// A and B are line offsets (cdev, sysfs) or pin names (periph).
	A, B string

	PullUp    bool
	ActiveLow bool
	Debounce  time.Duration

	// Consumer labels the line request in the kernel (cdev only).
	Consumer string
}

// Pair is an opened pair of phase lines.
type Pair struct {
	A, B qdec.Line

	// Sim is set for the sim backend so callers can drive it.
	Sim *Sim

	closeFn func() error
}

// Close releases the lines and stops any edge watchers.
func (p *Pair) Close() error {
	if p == nil || p.closeFn == nil {
		return nil
	}
	fn := p.closeFn
	p.closeFn = nil
	return fn()
}

// Open requests both lines described by spec. onEdge is called for every
// edge on either line, possibly from several goroutines; it must not block.
func Open(spec Spec, onEdge func(), logger *slog.Logger) (*Pair, error) {
	if onEdge == nil {
		onEdge = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch spec.Backend {
	case BackendCdev:
		return openCdev(spec, onEdge, logger)
	case BackendSysfs:
		return openSysfs(spec, onEdge, logger)
	case BackendPeriph:
		return openPeriph(spec, onEdge, logger)
	case BackendSim, "":
		sim := NewSim(0, onEdge)
		a, b := sim.Lines()
		return &Pair{A: a, B: b, Sim: sim}, nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", spec.Backend)
	}
}

func parseOffset(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("gpio: line %s: offset must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}

func levelToValue(high, activeLow bool) int {
	if high != activeLow {
		return 1
	}
	return 0
}
