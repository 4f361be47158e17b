package sim

import "errors"

var (
	// ErrInvalidConfig is returned by Start when configuration validation
	// fails. The simulation is not started.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrStateConflict is returned when a control command does not apply to
	// the coordinator's current state (e.g. Pause before Start). The command
	// is a no-op; the coordinator stays healthy.
	ErrStateConflict = errors.New("state conflict")
)
