//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/warthog618/go-gpiocdev"
)

type cdevLine struct {
	l *gpiocdev.Line
}

// Value returns the logical level; active-low is applied by the kernel.
func (c cdevLine) Value() (int, error) {
	return c.l.Value()
}

func openCdev(spec Spec, onEdge func(), logger *slog.Logger) (*Pair, error) {
	offA, err := parseOffset("a", spec.A)
	if err != nil {
		return nil, err
	}
	offB, err := parseOffset("b", spec.B)
	if err != nil {
		return nil, err
	}
	chip := spec.Chip
	if chip == "" {
		chip = "gpiochip0"
	}
	consumer := spec.Consumer
	if consumer == "" {
		consumer = "qdecd"
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onEdge() }),
	}
	if spec.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	if spec.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if spec.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(spec.Debounce))
	}

	la, err := gpiocdev.RequestLine(chip, offA, opts...)
	if err != nil {
		return nil, fmt.Errorf("gpio: request %s line %d: %w", chip, offA, err)
	}
	lb, err := gpiocdev.RequestLine(chip, offB, opts...)
	if err != nil {
		_ = la.Close()
		return nil, fmt.Errorf("gpio: request %s line %d: %w", chip, offB, err)
	}

	logger.Debug("cdev lines requested", "chip", chip, "a", offA, "b", offB, "debounce", spec.Debounce)

	return &Pair{
		A: cdevLine{l: la},
		B: cdevLine{l: lb},
		closeFn: func() error {
			return errors.Join(la.Close(), lb.Close())
		},
	}, nil
}
