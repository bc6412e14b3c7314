package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents holds one point per auth outcome.
const MeasurementAuthEvents = "auth_events"

// AuthEventPoint builds the point for one auth outcome. Type and channel
// are tags; the user ID is a field because its cardinality is unbounded.
func AuthEventPoint(eventType, channel, userID string, at time.Time) *write.Point {
	tags := map[string]string{"type": eventType}
	if channel != "" {
		tags["channel"] = channel
	}
	fields := map[string]any{"count": 1}
	if userID != "" {
		fields["user_id"] = userID
	}
	return write.NewPoint(MeasurementAuthEvents, tags, fields, at)
}

// WriteAuthEvent queues an auth outcome. Dropped once the client is closed.
func (c *Client) WriteAuthEvent(eventType, channel, userID string, at time.Time) {
	if c.writer == nil || c.closed.Load() {
		return
	}
	c.writer.WritePoint(AuthEventPoint(eventType, channel, userID, at))
}
