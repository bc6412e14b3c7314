package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TokenAuthenticator authenticates the mobile channel with per-device
// bearer tokens of the form "<id>|<secret>".
type TokenAuthenticator struct {
	credentials *CredentialStore
	tokens      TokenRepository
	service     *ServiceTokens
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// TokenOptions configures a TokenAuthenticator.
type TokenOptions struct {
	// TTL expires tokens after the given lifetime. Zero means no expiry.
	TTL time.Duration

	// Service enables service bearer tokens. Nil disables them.
	Service *ServiceTokens

	Logger *slog.Logger
}

// NewTokenAuthenticator creates the mobile authenticator.
func NewTokenAuthenticator(credentials *CredentialStore, tokens TokenRepository, opts TokenOptions) *TokenAuthenticator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuthenticator{
		credentials: credentials,
		tokens:      tokens,
		service:     opts.Service,
		ttl:         opts.TTL,
		logger:      logger.With("component", "token-auth"),
		now:         time.Now,
	}
}

// Channel implements Authenticator.
func (a *TokenAuthenticator) Channel() Channel {
	return ChannelMobile
}

// Login implements Authenticator. Existing tokens of the user are left alone.
func (a *TokenAuthenticator) Login(ctx context.Context, in LoginInput) (*Grant, error) {
	user, err := a.credentials.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if err := a.credentials.RecordLogin(ctx, user, in.DeviceToken); err != nil {
		return nil, err
	}
	return a.Issue(ctx, user, in)
}

// Issue implements Authenticator by minting a token named after the device.
func (a *TokenAuthenticator) Issue(ctx context.Context, user *User, in LoginInput) (*Grant, error) {
	plaintext, token, err := a.mint(ctx, user.ID, in.DeviceName)
	if err != nil {
		return nil, err
	}
	return &Grant{User: user, Token: plaintext, Artifact: Persisted(token.ID)}, nil
}

func (a *TokenAuthenticator) mint(ctx context.Context, userID, deviceName string) (string, *AccessToken, error) {
	secret, err := randomHex(tokenSecretBytes)
	if err != nil {
		return "", nil, err
	}

	token := &AccessToken{
		UserID:    userID,
		Name:      strings.TrimSpace(deviceName),
		TokenHash: HashToken(secret),
	}
	if a.ttl > 0 {
		expires := a.now().UTC().Add(a.ttl).Truncate(time.Second)
		token.ExpiresAt = &expires
	}

	if err := a.tokens.Create(ctx, token); err != nil {
		return "", nil, fmt.Errorf("storing access token: %w", err)
	}
	return token.ID + "|" + secret, token, nil
}

// Logout implements Authenticator. Only a persisted token is deleted;
// ephemeral artifacts have nothing to delete.
func (a *TokenAuthenticator) Logout(ctx context.Context, artifact Artifact) (*Grant, error) {
	id, ok := artifact.TokenID()
	if !ok {
		return &Grant{Artifact: artifact}, nil
	}
	if err := a.tokens.Delete(ctx, id); err != nil && !errors.Is(err, ErrTokenNotFound) {
		return nil, err
	}
	return &Grant{}, nil
}

// LogoutAll deletes every token of the user and returns how many were deleted.
func (a *TokenAuthenticator) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return a.tokens.DeleteAllForUser(ctx, userID)
}

// ListDevices returns the user's tokens, newest first, without secrets.
func (a *TokenAuthenticator) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	tokens, err := a.tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(tokens))
	for _, t := range tokens {
		devices = append(devices, Device{ID: t.ID, Name: t.Name, LastUsedAt: t.LastUsedAt, CreatedAt: t.CreatedAt})
	}
	return devices, nil
}

// RevokeDevice deletes one of the user's tokens. A token that does not
// exist or belongs to another user is ErrNotFound.
func (a *TokenAuthenticator) RevokeDevice(ctx context.Context, userID, tokenID string) error {
	err := a.tokens.DeleteForUser(ctx, userID, tokenID)
	if errors.Is(err, ErrTokenNotFound) {
		return fmt.Errorf("%w: device %s", ErrNotFound, tokenID)
	}
	return err
}

// CurrentUser implements Authenticator. The credential is the bearer value.
func (a *TokenAuthenticator) CurrentUser(ctx context.Context, bearer string) (*Identity, error) {
	id, secret, ok := strings.Cut(bearer, "|")
	if !ok {
		return a.serviceIdentity(bearer)
	}
	if id == "" || secret == "" {
		return nil, ErrUnauthenticated
	}

	token, err := a.tokens.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(HashToken(secret)), []byte(token.TokenHash)) != 1 {
		return nil, ErrUnauthenticated
	}

	now := a.now()
	if token.Expired(now) {
		return nil, ErrUnauthenticated
	}

	user, err := a.credentials.Get(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if a.credentials.CheckStatus(user) != nil {
		return nil, ErrUnauthenticated
	}

	if err := a.tokens.Touch(ctx, token.ID, now); err != nil {
		a.logger.Warn("failed to record token use", "token_id", token.ID, "error", err)
	}

	return &Identity{User: user, Artifact: Persisted(token.ID), Channel: ChannelMobile}, nil
}

func (a *TokenAuthenticator) serviceIdentity(bearer string) (*Identity, error) {
	if a.service == nil || bearer == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := a.service.Parse(bearer)
	if err != nil {
		a.logger.Debug("service token rejected", "error", err)
		return nil, ErrUnauthenticated
	}
	return claims.identity(), nil
}

// PruneExpired deletes expired tokens.
func (a *TokenAuthenticator) PruneExpired(ctx context.Context) (int64, error) {
	return a.tokens.DeleteExpired(ctx, a.now())
}
