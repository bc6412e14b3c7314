package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ResetTokenRepository stores at most one outstanding password reset token per email.
type ResetTokenRepository interface {
	Put(ctx context.Context, email, tokenHash string, at time.Time) error
	Get(ctx context.Context, email string) (tokenHash string, createdAt time.Time, err error)
	Delete(ctx context.Context, email string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteResetTokenRepository implements ResetTokenRepository using SQLite.
type SQLiteResetTokenRepository struct {
	db *sql.DB
}

// NewResetTokenRepository creates a new SQLite-backed reset token repository.
func NewResetTokenRepository(db *sql.DB) *SQLiteResetTokenRepository {
	return &SQLiteResetTokenRepository{db: db}
}

// Put stores a token hash, replacing any previous token for the email.
func (r *SQLiteResetTokenRepository) Put(ctx context.Context, email, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (email, token_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET token_hash = excluded.token_hash, created_at = excluded.created_at`,
		normalizeEmail(email), tokenHash, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	return nil
}

// Get returns the stored hash and issue time. A missing row is ErrInvalidResetToken.
func (r *SQLiteResetTokenRepository) Get(ctx context.Context, email string) (string, time.Time, error) {
	var hash, createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT token_hash, created_at FROM password_reset_tokens WHERE email = ?",
		normalizeEmail(email),
	).Scan(&hash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrInvalidResetToken
		}
		return "", time.Time{}, fmt.Errorf("loading reset token: %w", err)
	}

	at, _ := time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return hash, at, nil
}

// Delete removes the token for an email. Deleting a missing token is a no-op.
func (r *SQLiteResetTokenRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE email = ?", normalizeEmail(email),
	); err != nil {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	return nil
}

// DeleteOlderThan removes tokens issued before cutoff.
func (r *SQLiteResetTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting stale reset tokens: %w", err)
	}
	return result.RowsAffected()
}
