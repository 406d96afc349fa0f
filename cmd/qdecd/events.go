package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// IPC payload events
// ============================================================================
// These are the requests external clients can send over the IPC socket.
// ReadRotation and GetState are answered with data; the IPC server turns
// them into RequestReading / RequestStateSnapshot round trips.
// ============================================================================

// ReadRotation reads and resets one encoder.
type ReadRotation struct {
	Encoder string `json:"encoder"`
}

func (ReadRotation) eventMarker() {}

// GetState requests a state snapshot.
type GetState struct{}

func (GetState) eventMarker() {}

// SimStep turns a sim-backend encoder by Steps quarter cycles
// (positive = clockwise).
type SimStep struct {
	Encoder string `json:"encoder"`
	Steps   int    `json:"steps"`
}

func (SimStep) eventMarker() {}

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "read_rotation":
		var e ReadRotation
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ReadRotation: %w", err)
		}
		if e.Encoder == "" {
			return nil, fmt.Errorf("read_rotation: encoder must not be empty")
		}
		return e, nil

	case "get_state":
		return GetState{}, nil

	case "sim_step":
		var e SimStep
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SimStep: %w", err)
		}
		if e.Encoder == "" {
			return nil, fmt.Errorf("sim_step: encoder must not be empty")
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ReadRotation:
		env.Type = "read_rotation"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ReadRotation: %w", err)
		}
		env.Data = data

	case GetState:
		env.Type = "get_state"

	case SimStep:
		env.Type = "sim_step"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SimStep: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
