// Package session stores server-side web sessions for Givehub Core.
//
// A session is identified by an unguessable ID carried in an HttpOnly
// cookie and holds the anti-forgery (CSRF) token that the browser mirrors
// back in the X-XSRF-TOKEN header. An anonymous session has no user.
//
// Two stores are provided: MemoryStore for tests and single-node
// deployments, and RedisStore for everything else.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	idBytes   = 32
	csrfBytes = 32
)

// ErrNotFound is returned for unknown and expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is a single browser session.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	CSRFToken string `json:"csrf_token"`

	// Fingerprint ties the session to the password it was created with.
	// A password change invalidates every session carrying the old one.
	Fingerprint string `json:"fingerprint,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions.
type Store interface {
	// Get returns the session or ErrNotFound if it is missing or expired.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// New creates a session with a fresh ID and CSRF token. An empty userID
// makes an anonymous session.
func New(userID string, lifetime time.Duration) (*Session, error) {
	id, err := randomHex(idBytes)
	if err != nil {
		return nil, err
	}
	csrf, err := randomHex(csrfBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Session{
		ID:        id,
		UserID:    userID,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}, nil
}

// Authenticated reports whether the session belongs to a user.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Extend slides the expiry to now+lifetime.
func (s *Session) Extend(now time.Time, lifetime time.Duration) {
	s.ExpiresAt = now.UTC().Add(lifetime)
}

// VerifyCSRF compares a presented token with the session's in constant time.
func (s *Session) VerifyCSRF(token string) bool {
	if token == "" || s.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.CSRFToken)) == 1
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session entropy: %w", err)
	}
	return hex.EncodeToString(b), nil
}
