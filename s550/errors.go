package s550

import "errors"

// Errors reported by the protocol layers. Callers distinguish them with
// errors.Is; none of them are retried automatically.
var (
	// ErrMalformed means a frame was too short or missing its start/end
	// markers. Fatal to the current operation.
	ErrMalformed = errors.New("malformed sysex frame")

	// ErrNotForUs means the frame carried a foreign vendor or model ID.
	// Such frames are ignored, never treated as a failure.
	ErrNotForUs = errors.New("frame is not for this device model")

	// ErrRejected is an RJC response from the device.
	ErrRejected = errors.New("device rejected the request")

	// ErrDevice is an ERR response from the device.
	ErrDevice = errors.New("device reported an error")

	// ErrTimeout means the device stopped responding. Bulk reads that
	// already received data resolve with partial data instead.
	ErrTimeout = errors.New("timeout waiting for device")

	// ErrDeviceIDMismatch means a rejection or error arrived from a device
	// whose ID differs from the configured one. Distinguished from a plain
	// timeout because a misconfigured ID is otherwise invisible.
	ErrDeviceIDMismatch = errors.New("response from mismatched device ID")

	// ErrInvalidAddress means a bulk address with an odd low byte. Raised
	// before any I/O.
	ErrInvalidAddress = errors.New("bulk address must have an even low byte")

	errBadChecksum = errors.New("bad checksum")
)
