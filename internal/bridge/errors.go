package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrBadPayload is returned when a command payload does not decode
	// or lacks required fields.
	ErrBadPayload = errors.New("bridge: bad command payload")

	// ErrUnknownCommand is returned for command names outside the
	// supported set.
	ErrUnknownCommand = errors.New("bridge: unknown command")

	// ErrMissingValue is returned when a command that requires a value
	// arrives without one.
	ErrMissingValue = errors.New("bridge: command requires a value")

	// ErrUnknownController is returned when a command targets an entity
	// on a controller this bridge does not manage.
	ErrUnknownController = errors.New("bridge: unknown controller")
)
