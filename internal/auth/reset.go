package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// ResetMode decides which client a password reset link opens.
type ResetMode string

const (
	ResetModeWeb    ResetMode = "web"
	ResetModeMobile ResetMode = "mobile"
)

const (
	resetTokenBytes = 32 // 64 hex characters

	// DefaultResetTTL applies when ResetLinkConfig.TTL is zero.
	DefaultResetTTL = 60 * time.Minute

	// resetThrottle suppresses a new email while the previous token is this fresh.
	resetThrottle = time.Minute
)

// ResetLinkConfig is resolved once at startup from configuration.
type ResetLinkConfig struct {
	Mode           ResetMode
	WebURL         string
	MobileDeepLink string
	TTL            time.Duration
}

// BuildResetLink returns <base>?token=<token>&email=<email>, where base
// is the web URL or the mobile deep link depending on the mode.
func BuildResetLink(cfg ResetLinkConfig, token, email string) (string, error) {
	var base string
	switch cfg.Mode {
	case ResetModeWeb, "":
		base = cfg.WebURL
	case ResetModeMobile:
		base = cfg.MobileDeepLink
	default:
		return "", fmt.Errorf("unknown password reset mode %q", cfg.Mode)
	}
	if base == "" {
		return "", fmt.Errorf("password reset base URL is empty for mode %q", cfg.Mode)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing password reset base URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PasswordResetNotice is handed to a ResetNotifier for delivery.
type PasswordResetNotice struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetNotifier delivers password reset links to users.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, notice PasswordResetNotice) error
}

// PasswordResets issues and redeems password reset tokens.
type PasswordResets struct {
	repo     ResetTokenRepository
	link     ResetLinkConfig
	notifier ResetNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordResets creates the reset token service.
func NewPasswordResets(repo ResetTokenRepository, link ResetLinkConfig, notifier ResetNotifier, logger *slog.Logger) *PasswordResets {
	if link.TTL <= 0 {
		link.TTL = DefaultResetTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordResets{
		repo:     repo,
		link:     link,
		notifier: notifier,
		logger:   logger.With("component", "password-reset"),
		now:      time.Now,
	}
}

// Issue stores a new token for the user, replacing any previous one, and
// sends the link. A request within a minute of the previous one is
// silently dropped.
func (p *PasswordResets) Issue(ctx context.Context, user *User) error {
	now := p.now().UTC()

	if _, issued, err := p.repo.Get(ctx, user.Email); err == nil && now.Sub(issued) < resetThrottle {
		p.logger.Info("password reset throttled", "user_id", user.ID)
		return nil
	} else if err != nil && !errors.Is(err, ErrInvalidResetToken) {
		return err
	}

	token, err := randomHex(resetTokenBytes)
	if err != nil {
		return err
	}
	link, err := BuildResetLink(p.link, token, user.Email)
	if err != nil {
		return err
	}

	if err := p.repo.Put(ctx, user.Email, HashToken(token), now); err != nil {
		return err
	}

	notice := PasswordResetNotice{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Link:      link,
		ExpiresAt: now.Add(p.link.TTL),
	}
	if err := p.notifier.SendPasswordReset(ctx, notice); err != nil {
		return fmt.Errorf("sending password reset: %w", err)
	}
	return nil
}

// Redeem checks a presented token and consumes it. Unknown, wrong and
// expired tokens all fail with ErrInvalidResetToken.
func (p *PasswordResets) Redeem(ctx context.Context, email, token string) error {
	hash, issued, err := p.repo.Get(ctx, email)
	if err != nil {
		return err
	}

	if p.now().Sub(issued) > p.link.TTL {
		if err := p.repo.Delete(ctx, email); err != nil {
			p.logger.Warn("failed to delete expired reset token", "error", err)
		}
		return ErrInvalidResetToken
	}

	if subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) != 1 {
		return ErrInvalidResetToken
	}

	return p.repo.Delete(ctx, email)
}

// PruneExpired deletes tokens older than the link lifetime.
func (p *PasswordResets) PruneExpired(ctx context.Context) (int64, error) {
	return p.repo.DeleteOlderThan(ctx, p.now().Add(-p.link.TTL))
}

// LogNotifier logs that a reset link was issued without the link itself.
// It is used when no delivery transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendPasswordReset implements ResetNotifier.
func (n LogNotifier) SendPasswordReset(_ context.Context, notice PasswordResetNotice) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("password reset issued but no notifier is configured",
		"user_id", notice.UserID,
		"expires_at", notice.ExpiresAt,
	)
	return nil
}
