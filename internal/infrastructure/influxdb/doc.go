// Package influxdb provides entity state history over InfluxDB v2.
//
// This package manages:
//   - Connection with token authentication and health checks
//   - Non-blocking batched writes via the WriteAPI
//   - Async error handling with a callback for write failures
//
// State history is optional; when disabled in config the bridge runs
// without it. The Recorder type adapts the client to hub.Sink so entity
// updates and controller status transitions are recorded as they flow
// to the host.
//
// # Measurements
//
//	entity_state       tags: controller, entity_type, entity_id
//	                   fields: state, brightness, position, available
//	controller_status  tags: controller
//	                   fields: status
package influxdb
