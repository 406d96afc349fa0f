package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// periphEdgeWait bounds each WaitForEdge call so watchers notice Close.
const periphEdgeWait = 200 * time.Millisecond

var periphInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

type periphLine struct {
	pin       pgpio.PinIO
	activeLow bool
}

func (p periphLine) Value() (int, error) {
	return levelToValue(bool(p.pin.Read()), p.activeLow), nil
}

func openPeriph(spec Spec, onEdge func(), logger *slog.Logger) (*Pair, error) {
	if err := periphInit(); err != nil {
		return nil, fmt.Errorf("gpio: periph host init: %w", err)
	}
	if spec.Debounce > 0 {
		logger.Warn("periph backend ignores debounce", "a", spec.A, "b", spec.B)
	}

	pull := pgpio.Float
	if spec.PullUp {
		pull = pgpio.PullUp
	}

	pins := make([]pgpio.PinIO, 0, 2)
	for _, name := range []string{spec.A, spec.B} {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio: periph pin %q not found", name)
		}
		if err := pin.In(pull, pgpio.BothEdges); err != nil {
			return nil, fmt.Errorf("gpio: periph pin %s: %w", name, err)
		}
		pins = append(pins, pin)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, pin := range pins {
		wg.Add(1)
		go func(pin pgpio.PinIO) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if pin.WaitForEdge(periphEdgeWait) {
					onEdge()
				}
			}
		}(pin)
	}

	logger.Debug("periph pins configured", "a", spec.A, "b", spec.B, "pull", pull.String())

	return &Pair{
		A: periphLine{pin: pins[0], activeLow: spec.ActiveLow},
		B: periphLine{pin: pins[1], activeLow: spec.ActiveLow},
		closeFn: func() error {
			close(stop)
			wg.Wait()
			return errors.Join(pins[0].Halt(), pins[1].Halt())
		},
	}, nil
}
