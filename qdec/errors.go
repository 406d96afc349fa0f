package qdec

import "errors"

var (
	// ErrNotReady is returned when a phase line cannot be read during Init.
	ErrNotReady = errors.New("qdec: gpio not ready")

	// ErrIO wraps a failed line read after initialization.
	ErrIO = errors.New("qdec: line read failed")

	// ErrInvalidConfig is returned for rejected mode or encoder settings.
	ErrInvalidConfig = errors.New("qdec: invalid config")

	// ErrNotSupported is returned when reading a channel other than rotation.
	ErrNotSupported = errors.New("qdec: channel not supported")

	// ErrNotInitialized is returned by Run and Fetch before Init succeeded.
	ErrNotInitialized = errors.New("qdec: encoder not initialized")
)
