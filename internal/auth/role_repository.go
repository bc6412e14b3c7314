package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// RoleRepository persists role assignments and direct permission grants.
type RoleRepository interface {
	Assign(ctx context.Context, userID string, role Role) error
	Revoke(ctx context.Context, userID string, role Role) error
	RolesForUser(ctx context.Context, userID string) ([]RoleRef, error)
	GrantPermission(ctx context.Context, userID string, perm Permission) error
	RevokePermission(ctx context.Context, userID string, perm Permission) error
	DirectPermissions(ctx context.Context, userID string) ([]Permission, error)
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

// Assign gives a role to a user. Assigning a role the user already holds is a no-op.
// A role missing from the roles table fails with ErrUnknownRole and a
// missing user with ErrUserNotFound.
func (r *SQLiteRoleRepository) Assign(ctx context.Context, userID string, role Role) error {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE name = ?", string(role)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("looking up role: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role_name) VALUES (?, ?)",
		userID, string(role),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// Revoke removes a role from a user. Removing a role that is not held is a no-op.
func (r *SQLiteRoleRepository) Revoke(ctx context.Context, userID string, role Role) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role_name = ?",
		userID, string(role),
	); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	return nil
}

// RolesForUser returns the user's roles with their guard, ordered by name.
func (r *SQLiteRoleRepository) RolesForUser(ctx context.Context, userID string) ([]RoleRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ur.role_name, ro.guard
		 FROM user_roles ur
		 JOIN roles ro ON ro.name = ur.role_name
		 WHERE ur.user_id = ?
		 ORDER BY ur.role_name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []RoleRef{}
	for rows.Next() {
		var ref RoleRef
		var name string
		if err := rows.Scan(&name, &ref.Guard); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		ref.Name = Role(name)
		roles = append(roles, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// GrantPermission stores a direct grant. Granting twice is a no-op.
func (r *SQLiteRoleRepository) GrantPermission(ctx context.Context, userID string, perm Permission) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_permissions (user_id, permission) VALUES (?, ?)",
		userID, string(perm),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("granting permission: %w", err)
	}
	return nil
}

// RevokePermission removes a direct grant. Role-derived permissions are unaffected.
func (r *SQLiteRoleRepository) RevokePermission(ctx context.Context, userID string, perm Permission) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM user_permissions WHERE user_id = ? AND permission = ?",
		userID, string(perm),
	); err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}
	return nil
}

// DirectPermissions returns the user's direct grants, ordered by name.
func (r *SQLiteRoleRepository) DirectPermissions(ctx context.Context, userID string) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT permission FROM user_permissions WHERE user_id = ? ORDER BY permission ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, Permission(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}
