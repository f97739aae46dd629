package zwavejs

import (
	"fmt"
	"strings"
)

// Node status codes reported by Z-Wave JS.
const (
	nodeStatusUnknown = 0
	nodeStatusAsleep  = 1
	nodeStatusAwake   = 2
	nodeStatusDead    = 3
	nodeStatusAlive   = 4
)

// Device is the normalised view of one Z-Wave node.
type Device struct {
	// NodeID is the Z-Wave node identifier.
	NodeID int

	// Name is the user-assigned node name, or a generated fallback.
	Name string

	// Type is the device classification text derived from the node's
	// generic and specific device class labels (e.g. "Multilevel
	// Switch Motor Control Class B"). Entity classification matches
	// against this string.
	Type string

	// Model is the product label reported by the node, if any.
	Model string

	// Value is the last known Multilevel or Binary Switch currentValue
	// in the raw 0-99 device domain; nil when the node reports none.
	Value any

	// Alive reports whether the node responded on the network at the
	// time of the snapshot (asleep battery devices count as alive).
	Alive bool
}

// buildDevice converts a node snapshot into a Device.
func buildDevice(n nodeState) Device {
	d := Device{
		NodeID: n.NodeID,
		Name:   n.Name,
		Alive:  n.Status != nodeStatusDead,
	}

	if d.Name == "" {
		d.Name = fmt.Sprintf("node-%d", n.NodeID)
	}
	if n.Label != "" {
		d.Model = n.Label
	}

	if n.DeviceClass != nil {
		d.Type = strings.TrimSpace(n.DeviceClass.Generic.Label + " " + n.DeviceClass.Specific.Label)
	}

	d.Value = currentValue(n.Values)

	return d
}

// currentValue extracts the switch currentValue from a node's value
// list, preferring the Multilevel Switch command class over Binary.
func currentValue(values []valueState) any {
	var binary any
	for _, v := range values {
		if propertyString(v.Property) != "currentValue" {
			continue
		}
		switch v.CommandClass {
		case commandClassSwitchMultilevel:
			return v.Value
		case commandClassSwitchBinary:
			binary = v.Value
		}
	}
	return binary
}

// propertyString renders a property discriminator as text. Z-Wave JS
// properties are strings for most command classes but integers for a
// few (e.g. Basic CC).
func propertyString(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int(v))
	default:
		return ""
	}
}
