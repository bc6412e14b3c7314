package auth

import (
	"context"
	"time"
)

// EventType names an auth outcome worth recording.
type EventType string

const (
	EventRegistered             EventType = "registered"
	EventLogin                  EventType = "login"
	EventLoginFailed            EventType = "login_failed"
	EventLoginGated             EventType = "login_gated"
	EventLogout                 EventType = "logout"
	EventLogoutAll              EventType = "logout_all"
	EventDeviceRevoked          EventType = "device_revoked"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordReset          EventType = "password_reset"
)

// Event is a single auth outcome. It never carries secrets.
type Event struct {
	Type    EventType `json:"type"`
	Channel Channel   `json:"channel,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	At      time.Time `json:"at"`
}

// EventSink receives auth events. Implementations must not block the
// request for long and must not fail it.
type EventSink interface {
	Record(ctx context.Context, ev Event)
}

// EventSinks fans an event out to several sinks.
type EventSinks []EventSink

// Record implements EventSink.
func (s EventSinks) Record(ctx context.Context, ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Record(ctx, ev)
		}
	}
}

type discardSink struct{}

func (discardSink) Record(context.Context, Event) {}
