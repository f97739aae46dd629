package zwavejs

import "errors"

// Domain errors for the zwavejs package.
var (
	// ErrNotConnected is returned when a command is issued without an
	// established session.
	ErrNotConnected = errors.New("zwavejs: not connected")

	// ErrHandshake is returned when the server greeting or schema
	// negotiation fails.
	ErrHandshake = errors.New("zwavejs: handshake failed")

	// ErrCommandFailed is returned when the server reports a command
	// result with success=false.
	ErrCommandFailed = errors.New("zwavejs: command failed")

	// ErrCommandTimeout is returned when the server does not answer a
	// command within the configured timeout.
	ErrCommandTimeout = errors.New("zwavejs: command timed out")

	// ErrClosed is returned when the session has been closed.
	ErrClosed = errors.New("zwavejs: session closed")
)
