package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines the interface for mobile access token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *AccessToken) error
	GetByID(ctx context.Context, id string) (*AccessToken, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]AccessToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

const (
	tokenIDBytes     = 8  // 16 hex characters after the tok- prefix
	tokenSecretBytes = 40 // 80 hex characters
)

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// randomHex returns n random bytes hex encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create inserts a token. The ID is generated if empty.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *AccessToken) error {
	if token.ID == "" {
		id, err := randomHex(tokenIDBytes)
		if err != nil {
			return err
		}
		token.ID = "tok-" + id
	}

	now := time.Now().UTC().Format(time.RFC3339)
	token.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (id, user_id, name, token_hash, last_used_at, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.Name, token.TokenHash,
		nullTime(token.LastUsedAt), nullTime(token.ExpiresAt), now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("creating access token: %w", err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (r *SQLiteTokenRepository) GetByID(ctx context.Context, id string) (*AccessToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, token_hash, last_used_at, expires_at, created_at
		 FROM access_tokens WHERE id = ?`, id)

	t, err := scanTokenFrom(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Touch records that the token was just used. A token deleted in the
// meantime is not an error.
func (r *SQLiteTokenRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE access_tokens SET last_used_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id,
	); err != nil {
		return fmt.Errorf("touching access token: %w", err)
	}
	return nil
}

// Delete removes a token by ID.
func (r *SQLiteTokenRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM access_tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeleteForUser removes a token only if it belongs to userID. A token that
// does not exist and a token owned by someone else both return
// ErrTokenNotFound, so ownership is never revealed.
func (r *SQLiteTokenRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM access_tokens WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeleteAllForUser removes every token of a user in one statement and
// returns how many were removed.
func (r *SQLiteTokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM access_tokens WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting access tokens: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows, nil
}

// ListByUser returns the user's tokens, newest first.
func (r *SQLiteTokenRepository) ListByUser(ctx context.Context, userID string) ([]AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, token_hash, last_used_at, expires_at, created_at
		 FROM access_tokens
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing access tokens: %w", err)
	}
	defer rows.Close()

	tokens := []AccessToken{}
	for rows.Next() {
		t, err := scanTokenFrom(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes tokens whose expiry is not after now.
// Returns the number of deleted tokens.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM access_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?",
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return result.RowsAffected()
}

func scanTokenFrom(s scanner) (*AccessToken, error) {
	var t AccessToken
	var lastUsed, expires sql.NullString
	var createdAt string

	err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &lastUsed, &expires, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("scanning access token: %w", err)
	}

	t.LastUsedAt = parseNullTime(lastUsed)
	t.ExpiresAt = parseNullTime(expires)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}
