package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityState writes one entity state observation.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - controllerID: The controller owning the entity
//   - entityType: "light" or "cover"
//   - entityID: Canonical entity identifier
//   - attributes: Entity attributes; numeric values become float
//     fields, booleans and strings are stored as-is
func (c *Client) WriteEntityState(controllerID, entityType, entityID string, attributes map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]any, len(attributes))
	for k, v := range attributes {
		switch n := v.(type) {
		case int:
			fields[k] = float64(n)
		case float64, bool, string:
			fields[k] = n
		}
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"entity_state",
		map[string]string{
			"controller":  controllerID,
			"entity_type": entityType,
			"entity_id":   entityID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteControllerStatus writes a controller connection transition.
//
// Parameters:
//   - controllerID: The controller whose session changed
//   - status: "connecting", "connected", or "disconnected"
func (c *Client) WriteControllerStatus(controllerID, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"controller_status",
		map[string]string{
			"controller": controllerID,
		},
		map[string]any{
			"status": status,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
