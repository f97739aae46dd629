package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for all bridge topics.
//
// Topic scheme:
//
//	zwave/{controller}/status               bridge-to-host controller status
//	zwave/entity/{entityID}/state           entity attribute updates (retained)
//	zwave/entity/{entityID}/availability    entity availability (retained)
//	zwave/entity/{entityID}/set             host-to-bridge commands
const TopicPrefix = "zwave"

// Topics provides builders for the bridge's MQTT topics. Using these
// helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// BridgeStatus returns the process-level status topic. The LWT is
// registered here so hosts see the whole bridge drop, independent of
// any one controller.
//
// Example: zwave/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", TopicPrefix)
}

// ControllerStatus returns the connection status topic for one
// controller session.
//
// Example: zwave/zwave-main/status
func (Topics) ControllerStatus(controllerID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, controllerID)
}

// EntityState returns the state topic for an entity.
//
// Example: zwave/entity/light.zwave-main.12/state
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/entity/%s/state", TopicPrefix, entityID)
}

// EntityAvailability returns the availability topic for an entity.
//
// Example: zwave/entity/light.zwave-main.12/availability
func (Topics) EntityAvailability(entityID string) string {
	return fmt.Sprintf("%s/entity/%s/availability", TopicPrefix, entityID)
}

// EntitySet returns the command topic for an entity.
//
// Example: zwave/entity/light.zwave-main.12/set
func (Topics) EntitySet(entityID string) string {
	return fmt.Sprintf("%s/entity/%s/set", TopicPrefix, entityID)
}

// AllEntitySets returns a pattern matching every entity command topic.
//
// Pattern: zwave/entity/+/set
func (Topics) AllEntitySets() string {
	return fmt.Sprintf("%s/entity/+/set", TopicPrefix)
}

// EntityIDFromSetTopic extracts the entity id from a command topic.
// Returns false when the topic does not match the set scheme.
func (Topics) EntityIDFromSetTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "entity" || parts[3] != "set" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
