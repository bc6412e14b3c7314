package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "givehub"

// Topics builds the MQTT topics GiveHub publishes to. All topics live
// under a single configurable prefix:
//
//	{prefix}/system/status
//	{prefix}/notifications/password-reset
//	{prefix}/auth/events/{type}
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus is the retained online/offline topic, also used for the LWT.
//
// Example: givehub/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// PasswordReset carries password reset notices for the mail/push worker.
//
// Example: givehub/notifications/password-reset
func (t Topics) PasswordReset() string {
	return t.root() + "/notifications/password-reset"
}

// AuthEvent carries one auth audit event type.
//
// Example: givehub/auth/events/login_failed
func (t Topics) AuthEvent(eventType string) string {
	return t.root() + "/auth/events/" + eventType
}

// AllAuthEvents matches every auth event topic.
//
// Example: givehub/auth/events/+
func (t Topics) AllAuthEvents() string {
	return t.root() + "/auth/events/+"
}
