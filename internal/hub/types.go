package hub

// ConnState is the supervisor's connection state.
type ConnState int

const (
	// StateDisconnected means no session is established.
	StateDisconnected ConnState = iota

	// StateConnecting means a connection attempt is in flight.
	StateConnecting

	// StateConnected means the session is up and enumerated.
	StateConnected
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// LightState is the cached view of one light entity.
//
// Brightness is kept in the host UI domain (0-255); the raw device
// domain (0-99) exists only at the conversion boundaries.
type LightState struct {
	NodeID int
	Name   string
	Model  string

	// HasState is false until a level has been observed or commanded.
	// Toggle refuses to guess while it is false.
	HasState   bool
	On         bool
	Brightness int
}

// CoverState is the cached view of one cover entity.
//
// Position is kept in the raw device domain (0-99) because stop
// commands replay it to the device verbatim; the UI domain (0-100)
// is derived at emission.
type CoverState struct {
	NodeID int
	Name   string
	Model  string

	// HasPosition is false until a position has been observed.
	HasPosition bool
	Position    int
	State       string
}

// uiPosition converts a raw 0-99 position to the host UI 0-100 domain.
// Devices report full open as 99; the host expects 100.
func uiPosition(raw int) int {
	if raw >= 99 {
		return 100
	}
	return raw
}

// Metrics is a snapshot of hub counters.
type Metrics struct {
	EventsReceived     uint64
	EventsDropped      uint64
	EventsReconciled   uint64
	CommandsDispatched uint64
	CommandFailures    uint64
	Reconnects         uint64
	Lights             int
	Covers             int
	State              ConnState
}
