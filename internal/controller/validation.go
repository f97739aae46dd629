package controller

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validation constants.
const (
	maxIDLength   = 50
	maxNameLength = 100
	idPattern     = `^[a-z0-9]+(?:[-_][a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// Validate checks a controller configuration before persistence.
// Returns an error describing the first validation failure found.
//
// The ID format forbids "." because controller IDs are embedded as the
// middle component of entity identifiers, which use "." as delimiter.
func Validate(c *Config) error {
	if c == nil {
		return ErrInvalidID
	}

	if c.ID == "" || len(c.ID) > maxIDLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidID, maxIDLength)
	}
	if !idRegex.MatchString(c.ID) {
		return fmt.Errorf("%w: %q must be a lowercase slug", ErrInvalidID, c.ID)
	}

	if c.Name == "" || len(c.Name) > maxNameLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, maxNameLength)
	}

	// Address may be empty; discovery can resolve it at startup.
	if c.Address != "" {
		if err := validateAddress(c.Address); err != nil {
			return err
		}
	}

	return nil
}

// validateAddress ensures the address is a ws:// or wss:// URL with a host.
func validateAddress(address string) error {
	u, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: %q: scheme must be ws or wss", ErrInvalidAddress, address)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, address)
	}
	return nil
}
