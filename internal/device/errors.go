package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when registering a device with an ID that is
	// already live. With UUID allocation this indicates a caller bug.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidCommand is returned when a command does not apply to the
	// device's variant (e.g. turn_on sent to a sensor). The device state
	// is never mutated on this error.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrInvalidParameter is returned when a configuration value is out of
	// the variant's accepted range (e.g. negative sample interval).
	ErrInvalidParameter = errors.New("device: invalid parameter")

	// ErrInvalidKind is returned when a device kind is not recognised.
	ErrInvalidKind = errors.New("device: invalid kind")
)
