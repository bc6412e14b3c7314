package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CredentialStore owns user accounts and their passwords.
type CredentialStore struct {
	users     UserRepository
	hasher    *Hasher
	minLength int
	now       func() time.Time
}

// NewCredentialStore creates a CredentialStore. minPasswordLength <= 0 means MinPasswordLength.
func NewCredentialStore(users UserRepository, hasher *Hasher, minPasswordLength int) *CredentialStore {
	if minPasswordLength <= 0 {
		minPasswordLength = MinPasswordLength
	}
	return &CredentialStore{
		users:     users,
		hasher:    hasher,
		minLength: minPasswordLength,
		now:       time.Now,
	}
}

// MinPasswordLength returns the configured password policy.
func (c *CredentialStore) MinPasswordLength() int {
	return c.minLength
}

// Create registers a new active account. Invalid fields fail with a
// *ValidationError; an email that is already registered fails with a
// *ValidationError on "email" that also matches ErrDuplicateEmail.
func (c *CredentialStore) Create(ctx context.Context, in RegisterInput) (*User, error) {
	if err := validateAccount(in, c.minLength).Err(); err != nil {
		return nil, err
	}

	hash, err := c.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Status:       StatusActive,
	}
	if err := c.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, fieldError("email", "The email has already been taken.", ErrDuplicateEmail)
		}
		return nil, err
	}
	return user, nil
}

// Verify checks an email and password pair. Unknown emails and wrong
// passwords both fail with ErrInvalidCredentials after a full Argon2id
// computation. Account status is not checked here; see CheckStatus.
func (c *CredentialStore) Verify(ctx context.Context, email, password string) (*User, error) {
	user, err := c.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.hasher.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := c.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CheckStatus returns nil for an active account and an *AccountGatedError otherwise.
func (c *CredentialStore) CheckStatus(user *User) error {
	if user.Status == StatusActive {
		return nil
	}
	return &AccountGatedError{Status: user.Status}
}

// Authenticate verifies credentials and applies the status gate.
func (c *CredentialStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := c.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.CheckStatus(user); err != nil {
		return nil, err
	}
	return user, nil
}

// RecordLogin stamps the login time and, when given, the push notification token.
func (c *CredentialStore) RecordLogin(ctx context.Context, user *User, deviceToken string) error {
	now := c.now().UTC().Truncate(time.Second)
	if err := c.users.RecordLogin(ctx, user.ID, now, deviceToken); err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	user.LastLoginAt = &now
	if deviceToken != "" {
		user.DeviceToken = deviceToken
	}
	return nil
}

// Get loads a user by ID.
func (c *CredentialStore) Get(ctx context.Context, id string) (*User, error) {
	return c.users.GetByID(ctx, id)
}

// Lookup loads a user by email.
func (c *CredentialStore) Lookup(ctx context.Context, email string) (*User, error) {
	return c.users.GetByEmail(ctx, email)
}

// SetStatus changes an account's status.
func (c *CredentialStore) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fieldError("status", "The selected status is invalid.", nil)
	}
	return c.users.UpdateStatus(ctx, id, status)
}

// ChangePassword validates and stores a new password.
func (c *CredentialStore) ChangePassword(ctx context.Context, id, password, confirmation string) error {
	v := &ValidationError{}
	v.password(password, confirmation, c.minLength)
	if err := v.Err(); err != nil {
		return err
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return c.users.UpdatePassword(ctx, id, hash)
}

// delete removes an account. Used to undo a registration whose role assignment failed.
func (c *CredentialStore) delete(ctx context.Context, id string) error {
	return c.users.Delete(ctx, id)
}

// count returns the number of accounts.
func (c *CredentialStore) count(ctx context.Context) (int, error) {
	return c.users.Count(ctx)
}
