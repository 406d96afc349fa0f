package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"qdecd/gpio"
	"qdecd/qdec"
)

type encoderHandle struct {
	name string
	enc  *qdec.Encoder
	pair *gpio.Pair
}

// EncoderSet owns the configured encoders and their phase lines.
type EncoderSet struct {
	handles []*encoderHandle
	byName  map[string]*encoderHandle
}

// OpenEncoders creates every configured encoder, opens its lines and takes
// the initial sample. onIdle is called with the encoder name each time an
// encoder goes quiet; it must not block.
//
// On error everything opened so far is closed again.
func OpenEncoders(cfgs []EncoderConfig, onIdle func(name string), logger *slog.Logger) (*EncoderSet, error) {
	set := &EncoderSet{byName: make(map[string]*encoderHandle, len(cfgs))}

	for _, c := range cfgs {
		h, err := openEncoder(c, onIdle, logger)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		set.handles = append(set.handles, h)
		set.byName[h.name] = h
		logger.Info("encoder ready",
			"encoder", h.name,
			"backend", c.Backend,
			"mode", h.enc.Mode().String(),
			"idle_ms", c.IdleMS,
			"poll_ms", c.PollMS)
	}
	return set, nil
}

func openEncoder(c EncoderConfig, onIdle func(string), logger *slog.Logger) (*encoderHandle, error) {
	mode, err := c.Mode()
	if err != nil {
		return nil, fmt.Errorf("encoder %s: %w", c.Name, err)
	}

	name := c.Name
	enc, err := qdec.NewEncoder(qdec.Config{
		Name:         name,
		Mode:         mode,
		IdleTimeout:  time.Duration(c.IdleMS) * time.Millisecond,
		PollInterval: time.Duration(c.PollMS) * time.Millisecond,
		OnIdle: func() {
			if onIdle != nil {
				onIdle(name)
			}
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	pair, err := gpio.Open(c.GPIOSpec(), enc.Edge, logger.With("encoder", name))
	if err != nil {
		return nil, fmt.Errorf("encoder %s: open lines: %w", name, err)
	}
	if err := enc.Init(pair.A, pair.B); err != nil {
		_ = pair.Close()
		return nil, err
	}
	return &encoderHandle{name: name, enc: enc, pair: pair}, nil
}

// Run drives every encoder until ctx is canceled or one of them fails.
func (s *EncoderSet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range s.handles {
		g.Go(func() error {
			return h.enc.Run(ctx)
		})
	}
	return g.Wait()
}

// Get returns the named encoder handle.
func (s *EncoderSet) Get(name string) (*encoderHandle, bool) {
	if s == nil {
		return nil, false
	}
	h, ok := s.byName[name]
	return h, ok
}

// Names returns encoder names in configured order.
func (s *EncoderSet) Names() []string {
	names := make([]string, 0, len(s.handles))
	for _, h := range s.handles {
		names = append(names, h.name)
	}
	return names
}

// Infos returns the static encoder descriptions for NewDaemonState.
func (s *EncoderSet) Infos() []EncoderInfo {
	infos := make([]EncoderInfo, 0, len(s.handles))
	for _, h := range s.handles {
		m := h.enc.Mode()
		infos = append(infos, EncoderInfo{Name: h.name, Mode: m.Kind, StepsPerRotation: m.StepsPerRotation})
	}
	return infos
}

// Close releases all phase lines.
func (s *EncoderSet) Close() error {
	var errs []error
	for _, h := range s.handles {
		if err := h.pair.Close(); err != nil {
			errs = append(errs, fmt.Errorf("encoder %s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
