package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/givehub-core/internal/session"
)

// SessionAuthenticator authenticates the web channel with server-side
// sessions carried in a cookie.
type SessionAuthenticator struct {
	credentials *CredentialStore
	store       session.Store
	lifetime    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewSessionAuthenticator creates the web authenticator.
func NewSessionAuthenticator(credentials *CredentialStore, store session.Store, lifetime time.Duration, logger *slog.Logger) *SessionAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionAuthenticator{
		credentials: credentials,
		store:       store,
		lifetime:    lifetime,
		logger:      logger.With("component", "session-auth"),
		now:         time.Now,
	}
}

// Channel implements Authenticator.
func (a *SessionAuthenticator) Channel() Channel {
	return ChannelWeb
}

// Login implements Authenticator. Gated accounts get no session.
func (a *SessionAuthenticator) Login(ctx context.Context, in LoginInput) (*Grant, error) {
	user, err := a.credentials.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if err := a.credentials.RecordLogin(ctx, user, ""); err != nil {
		return nil, err
	}
	return a.Issue(ctx, user, in)
}

// Issue implements Authenticator. The previous session, if any, is
// destroyed and a new one with a new ID and CSRF token takes its place.
func (a *SessionAuthenticator) Issue(ctx context.Context, user *User, in LoginInput) (*Grant, error) {
	if in.PreviousSession != "" {
		if err := a.store.Delete(ctx, in.PreviousSession); err != nil {
			return nil, fmt.Errorf("destroying previous session: %w", err)
		}
	}

	s, err := session.New(user.ID, a.lifetime)
	if err != nil {
		return nil, err
	}
	s.Fingerprint = passwordFingerprint(user.PasswordHash)

	if err := a.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return &Grant{User: user, Session: s, Artifact: SessionRef(s.ID)}, nil
}

// Logout implements Authenticator. It destroys the session and returns a
// fresh anonymous one so the browser keeps a valid CSRF token.
func (a *SessionAuthenticator) Logout(ctx context.Context, artifact Artifact) (*Grant, error) {
	if id, ok := artifact.SessionID(); ok {
		if err := a.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("destroying session: %w", err)
		}
	}

	anon, err := a.StartAnonymous(ctx)
	if err != nil {
		return nil, err
	}
	return &Grant{Session: anon}, nil
}

// StartAnonymous creates and stores a session with no user.
func (a *SessionAuthenticator) StartAnonymous(ctx context.Context) (*session.Session, error) {
	s, err := session.New("", a.lifetime)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

// Session loads a session whether or not it is authenticated.
func (a *SessionAuthenticator) Session(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrNotFound
	}
	return a.store.Get(ctx, id)
}

// CurrentUser implements Authenticator. The credential is the session ID.
// Sessions of users that are no longer active, or whose password changed
// since login, are destroyed.
func (a *SessionAuthenticator) CurrentUser(ctx context.Context, sessionID string) (*Identity, error) {
	s, err := a.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}

	user, err := a.credentials.Get(ctx, s.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil || a.credentials.CheckStatus(user) != nil || s.Fingerprint != passwordFingerprint(user.PasswordHash) {
		if err := a.store.Delete(ctx, s.ID); err != nil {
			a.logger.Warn("failed to destroy stale session", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	s.Extend(a.now(), a.lifetime)
	if err := a.store.Save(ctx, s); err != nil {
		a.logger.Warn("failed to extend session", "user_id", user.ID, "error", err)
	}

	return &Identity{User: user, Artifact: SessionRef(s.ID), Channel: ChannelWeb, Session: s}, nil
}

// passwordFingerprint is a short digest of the stored hash, never of the password.
func passwordFingerprint(passwordHash string) string {
	return HashToken(passwordHash)[:16]
}
