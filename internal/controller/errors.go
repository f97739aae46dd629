package controller

import "errors"

// Domain errors for the controller package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, controller.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a controller ID does not exist.
	ErrNotFound = errors.New("controller: not found")

	// ErrExists is returned when creating a controller with an ID that already exists.
	ErrExists = errors.New("controller: already exists")

	// ErrInvalidID is returned when an identifier is empty, too long, or
	// not a lowercase slug.
	ErrInvalidID = errors.New("controller: invalid id")

	// ErrInvalidName is returned when a controller name is empty or too long.
	ErrInvalidName = errors.New("controller: invalid name")

	// ErrInvalidAddress is returned when the address is not a websocket URL.
	ErrInvalidAddress = errors.New("controller: invalid address")
)
