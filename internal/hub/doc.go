// Package hub is the core of the bridge: per-controller connection
// supervision and device state reconciliation.
//
// A Hub owns one Z-Wave JS Server session. Connect establishes it,
// enumerates the node inventory into light and cover caches, and starts
// a watchdog that checks the live transport flag every interval. When
// the link drops, the watchdog runs a bounded reconnect cycle (teardown,
// fixed delay, full reconnect, at most a configured number of attempts)
// and otherwise waits for its next tick; the loop only ends when the
// hub is disconnected.
//
// Incoming value updates pass a validation pipeline (node id present,
// node mapped, property relevant, value numeric and in range) and are
// reconciled into the caches. Lights derive on/off plus a 0-255
// brightness from the raw 0-100 level; covers derive a movement
// direction from consecutive position samples and treat targetValue
// reports as a stationary signal. Updates are emitted to the Sink only
// when attributes change, except stationary signals, which always emit.
//
// Commands flow the other way: ControlLight, ToggleLight, ControlCover,
// and StopCover translate host intents into session commands and update
// the caches optimistically so UIs respond before the device reports
// back.
package hub
