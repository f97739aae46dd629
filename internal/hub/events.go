package hub

// EventKind is the closed set of notifications a Hub emits.
type EventKind int

const (
	// EventConnecting signals a connection attempt has started.
	EventConnecting EventKind = iota

	// EventConnected signals an established, enumerated session.
	EventConnected

	// EventDisconnected signals the session is down.
	EventDisconnected

	// EventEntityUpdate carries new attributes for one entity.
	EventEntityUpdate
)

// String returns the kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventEntityUpdate:
		return "entity_update"
	default:
		return "unknown"
	}
}

// Attribute keys carried in entity update events.
const (
	AttrState      = "state"
	AttrBrightness = "brightness"
	AttrPosition   = "position"
	AttrAvailable  = "available"
)

// Light state values.
const (
	StateOn  = "on"
	StateOff = "off"
)

// Cover state values.
const (
	CoverOpen    = "open"
	CoverOpening = "opening"
	CoverClosing = "closing"
	CoverClosed  = "closed"
)

// Event is one notification from the Hub. Connection events carry only
// ControllerID; entity updates also carry the entity fields.
type Event struct {
	Kind         EventKind
	ControllerID string

	// EntityID and EntityType are set for EventEntityUpdate only.
	EntityID   string
	EntityType EntityType

	// Attributes holds the emitted entity attributes. The map is owned
	// by the receiver; the Hub never mutates it after emission.
	Attributes map[string]any
}

// Sink receives Hub events. Implementations are invoked synchronously
// from the Hub's goroutines and must not block.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// HandleEvent calls f(e).
func (f SinkFunc) HandleEvent(e Event) { f(e) }

// MultiSink fans each event out to every sink in order. Nil elements
// are skipped.
type MultiSink []Sink

// HandleEvent implements Sink.
func (m MultiSink) HandleEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(e)
		}
	}
}
