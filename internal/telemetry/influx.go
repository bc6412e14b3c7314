package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/givehub-core/internal/auth"
)

// AuthEventWriter is the part of *influxdb.Client the sink needs.
type AuthEventWriter interface {
	WriteAuthEvent(eventType, channel, userID string, at time.Time)
}

// InfluxSink writes auth events as InfluxDB points.
type InfluxSink struct {
	w AuthEventWriter
}

// NewInfluxSink creates an auth.EventSink backed by w.
func NewInfluxSink(w AuthEventWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Record implements auth.EventSink.
func (s *InfluxSink) Record(_ context.Context, ev auth.Event) {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.w.WriteAuthEvent(string(ev.Type), string(ev.Channel), ev.UserID, at)
}
