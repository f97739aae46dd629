// Package mqtt provides the bridge's MQTT host channel.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The bridge publishes entity state, availability, and controller
// status over MQTT, and receives entity commands the same way. The
// broker decouples the home-automation host from the Z-Wave specifics.
//
//	Host ↔ MQTT Broker ↔ Z-Wave Bridge ↔ Z-Wave JS Server
//
// # Topic Scheme
//
//	zwave/bridge/status                     bridge process status (LWT here)
//	zwave/{controller}/status               controller session status
//	zwave/entity/{entityID}/state           entity attribute updates (retained)
//	zwave/entity/{entityID}/availability    entity availability (retained)
//	zwave/entity/{entityID}/set             host commands to the bridge
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntitySets(), 1,
//	    func(topic string, payload []byte) error {
//	        // dispatch command
//	        return nil
//	    })
package mqtt
