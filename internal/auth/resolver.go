package auth

import (
	"context"
	"fmt"
)

// Resolver answers role and permission questions for a user. Effective
// permissions are the union of every assigned role's permissions and the
// user's direct grants.
type Resolver struct {
	roles RoleRepository
}

// NewResolver creates a Resolver over the given role store.
func NewResolver(roles RoleRepository) *Resolver {
	return &Resolver{roles: roles}
}

// AssignRole gives a role to a user. An empty role means DefaultRole.
// Roles outside the recognised set fail with ErrUnknownRole whatever the
// caller validated beforehand.
func (r *Resolver) AssignRole(ctx context.Context, userID string, role Role) error {
	normalized, err := NormalizeRole(string(role))
	if err != nil {
		return err
	}
	if err := r.roles.Assign(ctx, userID, normalized); err != nil {
		return fmt.Errorf("assigning %s to %s: %w", normalized, userID, err)
	}
	return nil
}

// RevokeRole removes a role from a user.
func (r *Resolver) RevokeRole(ctx context.Context, userID string, role Role) error {
	if !IsValidRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return r.roles.Revoke(ctx, userID, role)
}

// HasRole reports whether the user holds role.
func (r *Resolver) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	refs, err := r.roles.RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		if ref.Name == role {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the user holds perm through a role or a direct grant.
func (r *Resolver) HasPermission(ctx context.Context, userID string, perm Permission) (bool, error) {
	ac, err := r.LoadAuthContext(ctx, userID)
	if err != nil {
		return false, err
	}
	return ac.Can(perm), nil
}

// GrantPermission stores a direct grant. Only catalogue permissions are accepted.
func (r *Resolver) GrantPermission(ctx context.Context, userID string, perm Permission) error {
	if !IsKnownPermission(perm) {
		return fmt.Errorf("%w: %q", ErrUnknownPermission, perm)
	}
	return r.roles.GrantPermission(ctx, userID, perm)
}

// RevokePermission removes a direct grant.
func (r *Resolver) RevokePermission(ctx context.Context, userID string, perm Permission) error {
	return r.roles.RevokePermission(ctx, userID, perm)
}

// LoadAuthContext returns the user's roles and effective permissions.
// Both slices are non-nil so they serialise as [] rather than null.
func (r *Resolver) LoadAuthContext(ctx context.Context, userID string) (*AuthContext, error) {
	refs, err := r.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}

	direct, err := r.roles.DirectPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading permissions: %w", err)
	}

	sets := make([][]Permission, 0, len(refs)+1)
	for _, ref := range refs {
		sets = append(sets, rolePermissions[ref.Name])
	}
	sets = append(sets, direct)

	return &AuthContext{Roles: refs, Permissions: mergePermissions(sets...)}, nil
}

// serviceAuthContext is the authorisation state of a service bearer token.
func serviceAuthContext() *AuthContext {
	return &AuthContext{
		Roles:       []RoleRef{{Name: RoleSystemAdmin, Guard: GuardWeb}},
		Permissions: mergePermissions(rolePermissions[RoleSystemAdmin]),
	}
}
