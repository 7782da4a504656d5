package telemetry

import "errors"

// Sentinel errors for the telemetry recorder. Check with errors.Is().
var (
	// ErrDisabled is returned by Connect when telemetry is disabled in config.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection fails.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected is returned for operations on a closed recorder.
	ErrNotConnected = errors.New("telemetry: not connected")
)
