package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/givehub-core/internal/auth"
)

// statusCSRFMismatch is the non-standard "page expired" status browsers
// receive when the anti-forgery token does not match the session.
const statusCSRFMismatch = 419

// Response messages shared by several handlers.
const (
	msgUnauthenticated    = "Unauthenticated."
	msgInvalidCredentials = "Invalid credentials"
	msgCSRFMismatch       = "CSRF token mismatch."
	msgServerError        = "Server error."
	msgInvalidJSON        = "The request body must be valid JSON."
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a successful envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// writeFailure writes a failed envelope without field errors.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// writeValidation writes a 422 envelope with per-field messages.
func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, Envelope{
		Success: false,
		Message: auth.ValidationMessage,
		Errors:  fields,
	})
}

// writeAuthError maps an error returned by the auth gateway to a status
// and envelope. Unexpected errors are logged and hidden from the client.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *auth.ValidationError
		gated *auth.AccountGatedError
	)

	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Fields)
	case errors.As(err, &gated), errors.Is(err, auth.ErrAccountGated):
		writeFailure(w, http.StatusForbidden, auth.GatedMessage)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, auth.ErrUnauthenticated):
		writeFailure(w, http.StatusUnauthorized, msgUnauthenticated)
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrTokenNotFound):
		writeFailure(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeFailure(w, http.StatusConflict, "The email has already been taken.")
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeFailure(w, http.StatusInternalServerError, msgServerError)
	}
}

// decodeJSON reads the request body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
