package hub

import "errors"

// Domain errors for the hub package.
var (
	// ErrInvalidEntityID is returned when an entity identifier does not
	// parse into type, controller, and node components.
	ErrInvalidEntityID = errors.New("hub: invalid entity id")

	// ErrUnknownEntity is returned when a command targets an entity the
	// current enumeration does not contain.
	ErrUnknownEntity = errors.New("hub: unknown entity")

	// ErrWrongController is returned when a command targets an entity
	// belonging to a different controller.
	ErrWrongController = errors.New("hub: wrong controller")
)
