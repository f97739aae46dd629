package discovery

import "errors"

// Domain errors for mDNS discovery.
var (
	// ErrNoServersFound is returned when the browse window closes with
	// no Z-Wave JS Server instances seen.
	ErrNoServersFound = errors.New("discovery: no z-wave js server instances found")

	// ErrBrowseFailed is returned when the underlying mDNS browse
	// fails outright.
	ErrBrowseFailed = errors.New("discovery: browse failed")
)
