package sim

import "errors"

// Domain errors for the sim package.
var (
	// ErrAlreadyRunning is returned when starting a device task that is
	// already running.
	ErrAlreadyRunning = errors.New("sim: device task already running")

	// ErrNotRunning is returned when stopping a device task that is not
	// running.
	ErrNotRunning = errors.New("sim: device task not running")

	// ErrFleetFull is returned when creating a device would exceed the
	// configured device limit.
	ErrFleetFull = errors.New("sim: device limit reached")
)
