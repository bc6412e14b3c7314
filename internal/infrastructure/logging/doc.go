// Package logging provides structured logging for Givehub Core.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//
// Attributes named password, token, secret, authorization, cookie, link
// and a few others are replaced with [REDACTED] by the handler. That is a
// backstop: log identifiers (user_id, token_id) rather than credentials.
package logging
