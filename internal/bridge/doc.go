// Package bridge binds the device hubs to the MQTT host channel.
//
// Outbound, it implements hub.Sink: entity attribute updates,
// availability changes, and controller connection transitions become
// retained MQTT messages on the zwave topic scheme.
//
// Inbound, it subscribes to zwave/entity/+/set, decodes command
// payloads, and routes them to the owning controller's hub. Malformed
// payloads, unknown commands, and unknown controllers are rejected
// without disturbing the rest of the bridge.
//
// Commands and the value domains they carry:
//
//	turn_on, turn_off, toggle        lights, no value
//	set_brightness                   lights, value 0-255
//	open, close, stop                covers, no value
//	set_position                     covers, value 0-100
package bridge
