package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types exchanged with the home-automation host.

// Command names accepted on entity set topics.
const (
	// CommandTurnOn switches a light fully on, restoring its previous
	// level where the device supports it.
	CommandTurnOn = "turn_on"

	// CommandTurnOff switches a light off.
	CommandTurnOff = "turn_off"

	// CommandToggle inverts a light's last known state.
	CommandToggle = "toggle"

	// CommandSetBrightness sets a light level. Value: 0-255.
	CommandSetBrightness = "set_brightness"

	// CommandOpen drives a cover fully open.
	CommandOpen = "open"

	// CommandClose drives a cover fully closed.
	CommandClose = "close"

	// CommandSetPosition drives a cover to a position. Value: 0-100.
	CommandSetPosition = "set_position"

	// CommandStop halts a moving cover at its current position.
	CommandStop = "stop"
)

// CommandMessage is received from the host on an entity set topic.
// Topic: zwave/entity/{entityID}/set
type CommandMessage struct {
	// Command is one of the Command* constants.
	Command string `json:"command"`

	// Value carries the command argument where one applies
	// (set_brightness, set_position).
	Value *float64 `json:"value,omitempty"`
}

// parseCommand decodes and minimally validates a command payload.
func parseCommand(payload []byte) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if msg.Command == "" {
		return msg, fmt.Errorf("%w: missing command", ErrBadPayload)
	}
	return msg, nil
}

// StateMessage is published when an entity's attributes change.
// Topic: zwave/entity/{entityID}/state, QoS 1, retained.
type StateMessage struct {
	// EntityID is the canonical entity identifier.
	EntityID string `json:"entity_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Attributes holds the entity attributes.
	// Light: {"state": "on", "brightness": 128}
	// Cover: {"state": "opening", "position": 45}
	Attributes map[string]any `json:"attributes"`
}

// AvailabilityMessage is published when a node dies or revives.
// Topic: zwave/entity/{entityID}/availability, QoS 1, retained.
type AvailabilityMessage struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Available bool      `json:"available"`
}

// StatusMessage is published on controller connection transitions.
// Topic: zwave/{controller}/status, QoS 1, retained.
type StatusMessage struct {
	ControllerID string    `json:"controller_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}
