package influxdb

import "github.com/greyfold/zwave-bridge/internal/hub"

// Recorder adapts the client to hub.Sink, turning hub events into
// history points. A nil Recorder is valid and records nothing, so
// callers can wire it unconditionally.
type Recorder struct {
	client *Client
}

var _ hub.Sink = (*Recorder)(nil)

// NewRecorder creates a Recorder over a connected client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{client: client}
}

// HandleEvent implements hub.Sink.
func (r *Recorder) HandleEvent(e hub.Event) {
	if r == nil || r.client == nil {
		return
	}

	switch e.Kind {
	case hub.EventEntityUpdate:
		r.client.WriteEntityState(e.ControllerID, string(e.EntityType), e.EntityID, e.Attributes)
	case hub.EventConnecting, hub.EventConnected, hub.EventDisconnected:
		r.client.WriteControllerStatus(e.ControllerID, e.Kind.String())
	}
}
