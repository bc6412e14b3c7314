package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/givehub-core/internal/session"
)

// Gateway is the single entry point for every auth operation on both
// channels. It validates input before touching storage, picks the
// authenticator for the channel and enriches results with the user's
// roles and permissions.
type Gateway struct {
	credentials *CredentialStore
	resolver    *Resolver
	web         *SessionAuthenticator
	mobile      *TokenAuthenticator
	resets      *PasswordResets
	events      EventSink
	logger      *slog.Logger
	now         func() time.Time
}

// GatewayDeps holds the collaborators of a Gateway.
type GatewayDeps struct {
	Credentials *CredentialStore
	Resolver    *Resolver
	Web         *SessionAuthenticator
	Mobile      *TokenAuthenticator
	Resets      *PasswordResets
	Events      EventSink // optional
	Logger      *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(deps GatewayDeps) (*Gateway, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errors.New("gateway: credential store is required")
	case deps.Resolver == nil:
		return nil, errors.New("gateway: resolver is required")
	case deps.Web == nil || deps.Mobile == nil:
		return nil, errors.New("gateway: both channel authenticators are required")
	case deps.Resets == nil:
		return nil, errors.New("gateway: password resets are required")
	}

	events := deps.Events
	if events == nil {
		events = discardSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		credentials: deps.Credentials,
		resolver:    deps.Resolver,
		web:         deps.Web,
		mobile:      deps.Mobile,
		resets:      deps.Resets,
		events:      events,
		logger:      logger.With("component", "auth-gateway"),
		now:         time.Now,
	}, nil
}

// Authenticator returns the authenticator serving a channel.
func (g *Gateway) Authenticator(ch Channel) (Authenticator, error) {
	switch ch {
	case ChannelWeb:
		return g.web, nil
	case ChannelMobile:
		return g.mobile, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

// Register creates an account, assigns its role and signs it in on the
// given channel.
func (g *Gateway) Register(ctx context.Context, ch Channel, in RegisterInput) (*Grant, error) {
	authn, err := g.Authenticator(ch)
	if err != nil {
		return nil, err
	}
	if err := validateRegister(ch, in, g.credentials.MinPasswordLength()); err != nil {
		return nil, err
	}
	role, err := NormalizeRole(in.Role)
	if err != nil {
		return nil, fieldError("role", "The selected role is invalid.", err)
	}

	user, err := g.credentials.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := g.resolver.AssignRole(ctx, user.ID, role); err != nil {
		g.rollbackRegistration(ctx, user.ID)
		return nil, err
	}

	grant, err := authn.Issue(ctx, user, LoginInput{DeviceName: in.DeviceName, PreviousSession: in.PreviousSession})
	if err != nil {
		g.rollbackRegistration(ctx, user.ID)
		return nil, err
	}
	if err := g.enrich(ctx, grant); err != nil {
		g.rollbackRegistration(ctx, user.ID)
		return nil, err
	}

	g.logger.Info("user registered", "user_id", user.ID, "channel", ch, "role", role)
	g.record(ctx, EventRegistered, ch, user.ID)
	return grant, nil
}

// rollbackRegistration deletes a half-registered user so the email can be
// used again. Roles and tokens go with it through the foreign keys.
func (g *Gateway) rollbackRegistration(ctx context.Context, userID string) {
	if err := g.credentials.delete(ctx, userID); err != nil {
		g.logger.Error("failed to roll back registration", "user_id", userID, "error", err)
	}
}

// Login verifies credentials on the given channel. Unknown emails and
// wrong passwords are indistinguishable; inactive accounts are refused
// without creating anything.
func (g *Gateway) Login(ctx context.Context, ch Channel, in LoginInput) (*Grant, error) {
	authn, err := g.Authenticator(ch)
	if err != nil {
		return nil, err
	}
	if err := validateLogin(ch, in); err != nil {
		return nil, err
	}

	grant, err := authn.Login(ctx, in)
	if err != nil {
		var gated *AccountGatedError
		switch {
		case errors.As(err, &gated):
			g.logger.Warn("login refused for inactive account", "channel", ch, "status", gated.Status)
			g.record(ctx, EventLoginGated, ch, "")
		case errors.Is(err, ErrInvalidCredentials):
			g.logger.Warn("login failed", "channel", ch)
			g.record(ctx, EventLoginFailed, ch, "")
		}
		return nil, err
	}

	if err := g.enrich(ctx, grant); err != nil {
		return nil, err
	}

	g.logger.Info("user logged in", "user_id", grant.User.ID, "channel", ch)
	g.record(ctx, EventLogin, ch, grant.User.ID)
	return grant, nil
}

// Authenticate resolves the credential presented on a channel: a session
// ID for web, a bearer value for mobile.
func (g *Gateway) Authenticate(ctx context.Context, ch Channel, credential string) (*Identity, error) {
	authn, err := g.Authenticator(ch)
	if err != nil {
		return nil, err
	}
	return authn.CurrentUser(ctx, credential)
}

// Logout destroys the artifact of the current request. On web the grant
// carries the replacement anonymous session.
func (g *Gateway) Logout(ctx context.Context, id *Identity) (*Grant, error) {
	authn, err := g.Authenticator(id.Channel)
	if err != nil {
		return nil, err
	}
	grant, err := authn.Logout(ctx, id.Artifact)
	if err != nil {
		return nil, err
	}

	g.logger.Info("user logged out", "user_id", id.User.ID, "channel", id.Channel, "artifact", id.Artifact.Kind())
	g.record(ctx, EventLogout, id.Channel, id.User.ID)
	return grant, nil
}

// LogoutAll deletes every mobile token of the user.
func (g *Gateway) LogoutAll(ctx context.Context, id *Identity) (int64, error) {
	n, err := g.mobile.LogoutAll(ctx, id.User.ID)
	if err != nil {
		return 0, err
	}

	g.logger.Info("user logged out everywhere", "user_id", id.User.ID, "tokens", n)
	g.record(ctx, EventLogoutAll, id.Channel, id.User.ID)
	return n, nil
}

// Devices lists the user's mobile tokens.
func (g *Gateway) Devices(ctx context.Context, id *Identity) ([]Device, error) {
	return g.mobile.ListDevices(ctx, id.User.ID)
}

// RevokeDevice deletes one of the user's mobile tokens. Another user's
// token is ErrNotFound and is left untouched.
func (g *Gateway) RevokeDevice(ctx context.Context, id *Identity, tokenID string) error {
	if err := g.mobile.RevokeDevice(ctx, id.User.ID, tokenID); err != nil {
		return err
	}

	g.logger.Info("device revoked", "user_id", id.User.ID, "token_id", tokenID)
	g.record(ctx, EventDeviceRevoked, id.Channel, id.User.ID)
	return nil
}

// Me returns the user and authorisation context behind an identity.
func (g *Gateway) Me(ctx context.Context, id *Identity) (*User, *AuthContext, error) {
	if id.Auth != nil {
		return id.User, id.Auth, nil
	}
	ac, err := g.resolver.LoadAuthContext(ctx, id.User.ID)
	if err != nil {
		return nil, nil, err
	}
	return id.User, ac, nil
}

// ForgotPassword starts a password reset. The outcome is the same whether
// or not the email belongs to an account.
func (g *Gateway) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	if err := validateForgotPassword(in); err != nil {
		return err
	}

	user, err := g.credentials.Lookup(ctx, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		g.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	if err := g.resets.Issue(ctx, user); err != nil {
		return err
	}
	g.record(ctx, EventPasswordResetRequested, "", user.ID)
	return nil
}

// ResetPassword redeems a reset token, sets the new password and revokes
// every mobile token of the user. Web sessions created with the old
// password stop authenticating on their next request.
func (g *Gateway) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validateResetPassword(in, g.credentials.MinPasswordLength()); err != nil {
		return err
	}

	user, err := g.credentials.Lookup(ctx, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		return fieldError("email", "This password reset token is invalid.", ErrInvalidResetToken)
	}
	if err != nil {
		return err
	}

	if err := g.resets.Redeem(ctx, user.Email, in.Token); err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return fieldError("email", "This password reset token is invalid.", ErrInvalidResetToken)
		}
		return err
	}

	if err := g.credentials.ChangePassword(ctx, user.ID, in.Password, in.PasswordConfirmation); err != nil {
		return err
	}
	n, err := g.mobile.LogoutAll(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("revoking tokens after password reset: %w", err)
	}

	g.logger.Info("password reset", "user_id", user.ID, "tokens_revoked", n)
	g.record(ctx, EventPasswordReset, "", user.ID)
	return nil
}

// StartSession creates an anonymous web session for the CSRF cookie handshake.
func (g *Gateway) StartSession(ctx context.Context) (*session.Session, error) {
	return g.web.StartAnonymous(ctx)
}

// Session loads a web session, authenticated or not.
func (g *Gateway) Session(ctx context.Context, id string) (*session.Session, error) {
	return g.web.Session(ctx, id)
}

// Resolver exposes role and permission checks for route guards.
func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}

// PruneExpired removes expired access tokens and reset tokens.
func (g *Gateway) PruneExpired(ctx context.Context) (tokens, resets int64, err error) {
	tokens, err = g.mobile.PruneExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	resets, err = g.resets.PruneExpired(ctx)
	if err != nil {
		return tokens, 0, err
	}
	return tokens, resets, nil
}

func (g *Gateway) enrich(ctx context.Context, grant *Grant) error {
	ac, err := g.resolver.LoadAuthContext(ctx, grant.User.ID)
	if err != nil {
		return err
	}
	grant.Auth = ac
	return nil
}

func (g *Gateway) record(ctx context.Context, t EventType, ch Channel, userID string) {
	g.events.Record(ctx, Event{Type: t, Channel: ch, UserID: userID, At: g.now().UTC()})
}
