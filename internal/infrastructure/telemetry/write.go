package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// eventMeasurement is the measurement name for session event counters.
const eventMeasurement = "sidekick_events"

// RecordEvent writes one session event point. The write is non-blocking;
// points are batched and sent asynchronously, and a disconnected recorder
// drops the point silently.
func (c *Client) RecordEvent(sessionID, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		eventMeasurement,
		map[string]string{
			"session_id": sessionID,
			"kind":       kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordReconnectDelay writes the delay chosen for a scheduled stream
// reconnect, tagged with the attempt number.
func (c *Client) RecordReconnectDelay(sessionID string, attempt int, delay time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sidekick_reconnects",
		map[string]string{
			"session_id": sessionID,
		},
		map[string]interface{}{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
