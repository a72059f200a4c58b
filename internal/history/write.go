package history

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors one published telemetry sample.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The device identity from the connection string
//   - fields: Numeric telemetry fields (e.g. "temperature", "humidity")
//
// Example:
//
//	hist.WriteTelemetry("dev1", map[string]interface{}{"temperature": 21.5})
func (c *Client) WriteTelemetry(deviceID string, fields map[string]interface{}) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a hub connectivity transition
// ("connected", "disconnected", "reconnected"). Useful for correlating
// telemetry gaps with link drops.
//
// Parameters:
//   - deviceID: The device identity
//   - event: Transition name
func (c *Client) WriteConnectionEvent(deviceID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSpoolDepth records the offline spool backlog size, so operators
// can watch drains after an outage.
//
// Parameters:
//   - deviceID: The device identity
//   - depth: Current number of spooled events
func (c *Client) WriteSpoolDepth(deviceID string, depth int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"spool",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"depth": depth,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
