package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errDaemonBusy = errors.New("daemon did not answer in time")

// requestSnapshot asks the daemon loop for a state snapshot.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)
	if err := send(ctx, events, RequestStateSnapshot{Reply: reply}); err != nil {
		return StateSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case <-time.After(requestTimeout):
		return StateSnapshot{}, errDaemonBusy
	}
}

// requestRead asks the daemon loop to read and reset one encoder.
func requestRead(ctx context.Context, events chan<- Event, name, source string) (ReadResult, error) {
	reply := make(chan ReadResult, 1)
	if err := send(ctx, events, RequestReading{Encoder: name, Source: source, Reply: reply}); err != nil {
		return ReadResult{}, err
	}
	select {
	case res := <-reply:
		if res.Error != "" {
			return res, fmt.Errorf("%s: %s", name, res.Error)
		}
		return res, nil
	case <-ctx.Done():
		return ReadResult{}, ctx.Err()
	case <-time.After(requestTimeout):
		return ReadResult{}, errDaemonBusy
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(requestTimeout):
		return errDaemonBusy
	}
}
