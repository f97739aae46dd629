package controller

import "time"

// Config describes one Z-Wave controller the bridge supervises.
//
// ID doubles as the middle component of every entity identifier built
// for the controller's devices, so it must never contain the entity id
// delimiter. Validation enforces this.
type Config struct {
	// ID is the unique controller identifier (lowercase slug).
	ID string `json:"id"`

	// Name is the human-readable controller name.
	Name string `json:"name"`

	// Address is the Z-Wave JS Server websocket URL (ws:// or wss://).
	// May be empty when mDNS discovery is expected to fill it in.
	Address string `json:"address"`

	// Model is the reported controller hardware model, if known.
	Model string `json:"model"`

	// Enabled controls whether the bridge opens a session for this
	// controller at startup.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
