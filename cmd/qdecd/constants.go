package main

import "time"

// ============================================================================
// Defaults
// ============================================================================

const (
	// Pulses per revolution of a 24-detent encoder decoded on every edge.
	defaultStepsPerRotation = 96

	// Quiet period before an encoder is reported idle.
	defaultIdleMS = 250

	// Rate at which accumulated rotation is read and published.
	defaultReportHz = 50

	defaultInfluxMeasurement = "qdec.rotation"
)

const (
	// requestTimeout bounds round trips through the daemon loop made on
	// behalf of IPC, HTTP and WebSocket clients.
	requestTimeout = 1 * time.Second

	// eventQueueSize is the buffer of the daemon event channel.
	eventQueueSize = 256

	// broadcastQueueSize is the buffer of each broadcast sink.
	broadcastQueueSize = 256
)
