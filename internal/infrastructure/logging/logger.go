package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
)

const (
	serviceName = "givehub"

	// redacted replaces the value of any attribute named like a secret.
	redacted = "[REDACTED]"
)

// sensitiveKeys are attribute keys whose values never reach the output,
// whatever component logged them.
var sensitiveKeys = map[string]bool{
	"password":              true,
	"password_confirmation": true,
	"token":                 true,
	"bearer":                true,
	"secret":                true,
	"authorization":         true,
	"cookie":                true,
	"csrf_token":            true,
	"link":                  true,
	"reset_link":            true,
}

// Logger is the process logger. The embedded *slog.Logger is what
// components receive.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging config section, writing
// to stdout or stderr.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With("service", serviceName, "version", version)}
}

// ParseLevel maps debug, info, warn(ing) and error to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redact blanks credential attributes, including inside groups.
func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// With returns a Logger carrying extra attributes.
//
//	tokenLog := logger.With("component", "token_authenticator")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is used before the config is loaded: JSON, info, stdout.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Discard drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}
