package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of an account. Only active accounts may
// authenticate.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
)

// Valid reports whether s is a known account status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// Role names a set of permissions. A user holds zero or more roles and
// exactly the assigned roles apply: there is no hierarchy between them.
type Role string

const (
	// RoleDonor is assigned to self-registered accounts that do not ask for anything else.
	RoleDonor Role = "donor"

	// RoleInstitution runs campaigns on behalf of an organisation.
	RoleInstitution Role = "institution"

	// RoleStudent runs personal fundraising campaigns.
	RoleStudent Role = "student"

	// RoleAdmin moderates campaigns and users.
	RoleAdmin Role = "admin"

	// RoleSystemAdmin can do everything, including managing admins.
	RoleSystemAdmin Role = "system_admin"
)

// DefaultRole is assigned when registration does not name one.
const DefaultRole = RoleDonor

// GuardWeb is the guard every built-in role belongs to.
const GuardWeb = "web"

// ValidRoles is the recognised role set.
var ValidRoles = []Role{RoleDonor, RoleInstitution, RoleStudent, RoleAdmin, RoleSystemAdmin}

// SelfServiceRoles are the roles a caller may pick for themselves at registration.
var SelfServiceRoles = []Role{RoleDonor, RoleInstitution, RoleStudent}

// IsValidRole returns true if r is in the recognised role set.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// IsSelfServiceRole returns true if r may be chosen at registration.
func IsSelfServiceRole(r Role) bool {
	for _, v := range SelfServiceRoles {
		if r == v {
			return true
		}
	}
	return false
}

// NormalizeRole maps an optional role name to a Role. An empty name is the
// default role; anything outside the recognised set is ErrUnknownRole.
func NormalizeRole(name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultRole, nil
	}
	r := Role(name)
	if !IsValidRole(r) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return r, nil
}

// Channel identifies the client surface a request arrived on.
type Channel string

const (
	// ChannelWeb is the browser console: cookie session plus CSRF token.
	ChannelWeb Channel = "web"

	// ChannelMobile is the mobile app: per-device bearer tokens.
	ChannelMobile Channel = "mobile"
)

// User represents a registered account.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never serialised
	Status       Status     `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	DeviceToken  string     `json:"-"` // push notification token, never serialised
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoleRef is a role as it appears in an authenticated payload.
type RoleRef struct {
	Name  Role   `json:"name"`
	Guard string `json:"guard_name"`
}

// AuthContext is the resolved authorisation state of a user.
type AuthContext struct {
	Roles       []RoleRef    `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// HasRole reports whether the context includes role r.
func (a *AuthContext) HasRole(r Role) bool {
	if a == nil {
		return false
	}
	for _, ref := range a.Roles {
		if ref.Name == r {
			return true
		}
	}
	return false
}

// Can reports whether the context includes permission p.
func (a *AuthContext) Can(p Permission) bool {
	if a == nil {
		return false
	}
	i := sort.Search(len(a.Permissions), func(i int) bool { return a.Permissions[i] >= p })
	return i < len(a.Permissions) && a.Permissions[i] == p
}

// AccessToken is a stored mobile bearer token. Only the SHA-256 of the
// secret is kept; the plaintext is returned once at issue time.
type AccessToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-"` // never serialised
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the token has an expiry that is not after now.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Device is the public view of an access token.
type Device struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountGated       = errors.New("account is not active")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUnknownRole        = errors.New("unknown role")
	ErrUnknownPermission  = errors.New("unknown permission")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenNotFound      = errors.New("access token not found")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset token")
	ErrUnknownChannel     = errors.New("unknown channel")
)

// GatedMessage is shown to users whose account is not active.
const GatedMessage = "Your account is suspended or pending approval"

// AccountGatedError reports the status that blocked authentication.
// It matches ErrAccountGated with errors.Is.
type AccountGatedError struct {
	Status Status
}

func (e *AccountGatedError) Error() string {
	return fmt.Sprintf("account is %s", e.Status)
}

func (e *AccountGatedError) Unwrap() error {
	return ErrAccountGated
}

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string][]string

	// cause is matched by errors.Is, e.g. ErrDuplicateEmail.
	cause error
}

// Add records a message against a field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns e when at least one field failed, otherwise nil.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// fieldError builds a single-field ValidationError wrapping cause.
func fieldError(field, message string, cause error) *ValidationError {
	v := &ValidationError{cause: cause}
	v.Add(field, message)
	return v
}
