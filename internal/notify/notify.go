// Package notify hands auth side effects to out-of-process workers over
// MQTT: password reset notices for the mailer and auth events for
// auditing.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nerrad567/givehub-core/internal/auth"
	"github.com/nerrad567/givehub-core/internal/infrastructure/mqtt"
)

// Publisher is the part of *mqtt.Client the notifier needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTNotifier publishes password reset notices and auth events.
type MQTTNotifier struct {
	pub    Publisher
	topics mqtt.Topics
	logger *slog.Logger
}

var (
	_ auth.ResetNotifier = (*MQTTNotifier)(nil)
	_ auth.EventSink     = (*MQTTNotifier)(nil)
)

// NewMQTTNotifier creates a notifier publishing under topics.
func NewMQTTNotifier(pub Publisher, topics mqtt.Topics, logger *slog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTNotifier{pub: pub, topics: topics, logger: logger.With("component", "notify")}
}

// resetMessage is the wire form of a reset notice. The link carries the
// plaintext token, so it only ever travels to the mailer.
type resetMessage struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Link      string `json:"link"`
	ExpiresAt string `json:"expires_at"`
}

// SendPasswordReset implements auth.ResetNotifier.
func (n *MQTTNotifier) SendPasswordReset(_ context.Context, notice auth.PasswordResetNotice) error {
	msg := resetMessage{
		UserID:    notice.UserID,
		Name:      notice.Name,
		Email:     notice.Email,
		Link:      notice.Link,
		ExpiresAt: notice.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if err := n.pub.PublishJSON(n.topics.PasswordReset(), msg); err != nil {
		return fmt.Errorf("publishing password reset: %w", err)
	}
	n.logger.Debug("password reset notice published", "user_id", notice.UserID)
	return nil
}

// Record implements auth.EventSink. Failures are logged, never returned.
func (n *MQTTNotifier) Record(_ context.Context, ev auth.Event) {
	if err := n.pub.PublishJSON(n.topics.AuthEvent(string(ev.Type)), ev); err != nil {
		n.logger.Warn("failed to publish auth event", "type", ev.Type, "error", err)
	}
}
