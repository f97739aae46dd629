// Package zwavejs implements a websocket client for Z-Wave JS Server.
//
// The client speaks the server's JSON protocol: on connect it reads the
// version greeting, negotiates an API schema, and issues start_listening
// to obtain the full network snapshot. From the snapshot it builds a
// normalised Device inventory keyed by node id, kept fresh by "value
// updated" and node status events.
//
// Commands (TurnOn, TurnOff, SetDimmerLevel) map to node.set_value
// against the Multilevel Switch targetValue and await the correlated
// server result.
//
// The client never reconnects by itself. A transport failure clears
// the Connected flag; the supervising owner observes that flag and
// dials again via Connect. This keeps reconnection policy in exactly
// one place.
//
// Callbacks registered with SetOnValueUpdated and SetOnNodeStatus are
// invoked synchronously from the receive loop with panic recovery, so
// handlers must be fast and must not block.
package zwavejs
