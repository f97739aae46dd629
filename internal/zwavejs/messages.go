package zwavejs

import "encoding/json"

// Frame type discriminators used by Z-Wave JS Server.
const (
	frameTypeVersion = "version"
	frameTypeResult  = "result"
	frameTypeEvent   = "event"
)

// Event names delivered with source "node".
const (
	eventValueUpdated = "value updated"
	eventNodeDead     = "dead"
	eventNodeAlive    = "alive"
	eventNodeSleep    = "sleep"
	eventNodeWakeUp   = "wake up"
)

// Multilevel Switch command class, used for dimmer and motor targets.
const commandClassSwitchMultilevel = 38

// Binary Switch command class, used for plain relays.
const commandClassSwitchBinary = 37

// incomingFrame is the minimal envelope read from the socket; the Type
// field selects which concrete frame to decode.
type incomingFrame struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Success   bool            `json:"success,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// versionFrame is the greeting sent by the server on connect.
type versionFrame struct {
	Type             string `json:"type"`
	DriverVersion    string `json:"driverVersion"`
	ServerVersion    string `json:"serverVersion"`
	HomeID           uint32 `json:"homeId"`
	MinSchemaVersion int    `json:"minSchemaVersion"`
	MaxSchemaVersion int    `json:"maxSchemaVersion"`
}

// commandFrame is the outgoing request envelope.
type commandFrame struct {
	MessageID     string `json:"messageId"`
	Command       string `json:"command"`
	SchemaVersion *int   `json:"schemaVersion,omitempty"`
	NodeID        *int   `json:"nodeId,omitempty"`
	ValueID       *struct {
		CommandClass int    `json:"commandClass"`
		Property     string `json:"property"`
	} `json:"valueId,omitempty"`
	Value any `json:"value,omitempty"`
}

// eventPayload is the body of an "event" frame.
//
// NodeID is a pointer so a missing or null field survives decoding;
// downstream validation depends on distinguishing absent from zero.
type eventPayload struct {
	Source  string          `json:"source"`
	Event   string          `json:"event"`
	NodeID  *int            `json:"nodeId"`
	Args    json.RawMessage `json:"args"`
	NodeRaw json.RawMessage `json:"node"`
}

// valueUpdatedArgs is the args body of a "value updated" event.
type valueUpdatedArgs struct {
	CommandClass     int    `json:"commandClass"`
	CommandClassName string `json:"commandClassName"`
	Property         any    `json:"property"`
	PropertyName     string `json:"propertyName"`
	NewValue         any    `json:"newValue"`
	PrevValue        any    `json:"prevValue"`
}

// startListeningResult is the result body of the start_listening command.
type startListeningResult struct {
	State driverState `json:"state"`
}

// driverState is the network snapshot reported by the server.
type driverState struct {
	Controller controllerState `json:"controller"`
	Nodes      []nodeState     `json:"nodes"`
}

// controllerState describes the Z-Wave controller hardware.
type controllerState struct {
	HomeID            uint32 `json:"homeId"`
	OwnNodeID         int    `json:"ownNodeId"`
	SDKVersion        string `json:"sdkVersion"`
	FirmwareVersion   string `json:"firmwareVersion"`
	SupportsLongRange bool   `json:"supportsLongRange"`
}

// nodeState describes one node in the network snapshot.
type nodeState struct {
	NodeID      int          `json:"nodeId"`
	Name        string       `json:"name"`
	Label       string       `json:"label"`
	Status      int          `json:"status"`
	DeviceClass *deviceClass `json:"deviceClass"`
	Values      []valueState `json:"values"`
}

// deviceClass carries the generic/specific classification labels the
// server derives from the node's Z-Wave device class.
type deviceClass struct {
	Basic    classEntry `json:"basic"`
	Generic  classEntry `json:"generic"`
	Specific classEntry `json:"specific"`
}

type classEntry struct {
	Key   int    `json:"key"`
	Label string `json:"label"`
}

// valueState is one value entry in a node snapshot.
type valueState struct {
	CommandClass int    `json:"commandClass"`
	Endpoint     int    `json:"endpoint"`
	Property     any    `json:"property"`
	PropertyName string `json:"propertyName"`
	Value        any    `json:"value"`
}

// ValueUpdate is the typed record handed to the value callback.
// It is decoded and normalised once at this boundary; consumers see
// optional fields as pointers and never re-parse raw JSON.
type ValueUpdate struct {
	// NodeID is nil when the event carried no usable node id.
	NodeID *int

	// Property is the string form of the updated property
	// (e.g. "currentValue", "targetValue", "duration").
	Property string

	// NewValue is the reported value, nil when absent. May be a
	// float64, bool, string, map or slice depending on the property.
	NewValue any

	// PrevValue is the previously reported value, nil when absent.
	PrevValue any
}

// NodeStatus is the typed record handed to the node status callback.
type NodeStatus struct {
	NodeID int
	Alive  bool
}
