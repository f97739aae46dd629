// Package controller manages persistent Z-Wave controller configuration.
//
// Each controller row describes one Z-Wave JS Server the bridge should
// open a supervised session against: its websocket address, display
// name, and whether it is enabled. The Repository interface abstracts
// persistence; SQLiteRepository is the production implementation.
//
// Controller IDs become the middle component of entity identifiers,
// so validation rejects IDs containing the "." delimiter.
package controller
