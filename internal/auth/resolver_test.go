package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestResolver_AssignRole_DefaultsToDonor(t *testing.T) {
	db := testDB(t)
	user := &User{Name: "N", Email: "default@example.com", PasswordHash: "h"}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r := NewResolver(NewRoleRepository(db))
	ctx := context.Background()

	if err := r.AssignRole(ctx, user.ID, ""); err != nil {
		t.Fatalf("AssignRole() error = %v", err)
	}

	ok, err := r.HasRole(ctx, user.ID, RoleDonor)
	if err != nil {
		t.Fatalf("HasRole() error = %v", err)
	}
	if !ok {
		t.Error("empty role should assign donor")
	}
}

func TestResolver_AssignRole_Unknown(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "unknown-role@example.com", RoleDonor)
	r := NewResolver(NewRoleRepository(db))

	err := r.AssignRole(context.Background(), user.ID, Role("superhero"))
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("AssignRole() error = %v, want ErrUnknownRole", err)
	}
}

func TestResolver_AssignRole_Idempotent(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "twice@example.com", RoleStudent)
	r := NewResolver(NewRoleRepository(db))
	ctx := context.Background()

	if err := r.AssignRole(ctx, user.ID, RoleStudent); err != nil {
		t.Fatalf("second AssignRole() error = %v", err)
	}

	ac, err := r.LoadAuthContext(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadAuthContext() error = %v", err)
	}
	if len(ac.Roles) != 1 {
		t.Errorf("roles = %v, want exactly one", ac.Roles)
	}
}

func TestResolver_AssignRole_MissingUser(t *testing.T) {
	db := testDB(t)
	r := NewResolver(NewRoleRepository(db))

	err := r.AssignRole(context.Background(), "usr-ghost", RoleDonor)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("AssignRole() error = %v, want ErrUserNotFound", err)
	}
}

func TestResolver_LoadAuthContext_UnionOfRolesAndGrants(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "union@example.com", RoleDonor)
	r := NewResolver(NewRoleRepository(db))
	ctx := context.Background()

	if err := r.AssignRole(ctx, user.ID, RoleInstitution); err != nil {
		t.Fatalf("AssignRole() error = %v", err)
	}
	if err := r.GrantPermission(ctx, user.ID, PermUserView); err != nil {
		t.Fatalf("GrantPermission() error = %v", err)
	}
	// Already granted by institution; must not be duplicated
	if err := r.GrantPermission(ctx, user.ID, PermCampaignCreate); err != nil {
		t.Fatalf("GrantPermission() error = %v", err)
	}

	ac, err := r.LoadAuthContext(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadAuthContext() error = %v", err)
	}

	wantRoles := []RoleRef{{Name: RoleDonor, Guard: GuardWeb}, {Name: RoleInstitution, Guard: GuardWeb}}
	if !reflect.DeepEqual(ac.Roles, wantRoles) {
		t.Errorf("Roles = %v, want %v", ac.Roles, wantRoles)
	}

	want := mergePermissions(PermissionsForRole(RoleDonor), PermissionsForRole(RoleInstitution), []Permission{PermUserView})
	if !reflect.DeepEqual(ac.Permissions, want) {
		t.Errorf("Permissions = %v, want %v", ac.Permissions, want)
	}
	if !ac.Can(PermUserView) {
		t.Error("direct grant should be effective")
	}
	if ac.Can(PermCampaignApprove) {
		t.Error("campaign:approve is neither granted nor role-derived")
	}
}

func TestResolver_LoadAuthContext_NoRoles(t *testing.T) {
	db := testDB(t)
	r := NewResolver(NewRoleRepository(db))

	ac, err := r.LoadAuthContext(context.Background(), "usr-nobody")
	if err != nil {
		t.Fatalf("LoadAuthContext() error = %v", err)
	}
	if ac.Roles == nil || ac.Permissions == nil {
		t.Error("empty context should use empty slices, not nil")
	}
	if len(ac.Roles) != 0 || len(ac.Permissions) != 0 {
		t.Errorf("context = %+v, want empty", ac)
	}
}

func TestResolver_HasPermission(t *testing.T) {
	db := testDB(t)
	admin := seedTestUser(t, db, "admin@example.com", RoleAdmin)
	donor := seedTestUser(t, db, "donor@example.com", RoleDonor)
	r := NewResolver(NewRoleRepository(db))
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		perm   Permission
		want   bool
	}{
		{"admin approves campaigns", admin.ID, PermCampaignApprove, true},
		{"admin cannot manage roles", admin.ID, PermRoleManage, false},
		{"donor donates", donor.ID, PermDonationCreate, true},
		{"donor cannot approve", donor.ID, PermCampaignApprove, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.HasPermission(ctx, tt.userID, tt.perm)
			if err != nil {
				t.Fatalf("HasPermission() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasPermission(%s) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}

func TestResolver_GrantPermission_Unknown(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "grant@example.com", RoleDonor)
	r := NewResolver(NewRoleRepository(db))

	err := r.GrantPermission(context.Background(), user.ID, "rocket:launch")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Errorf("GrantPermission() error = %v, want ErrUnknownPermission", err)
	}
}

func TestResolver_RevokeRoleAndPermission(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "revoke@example.com", RoleStudent)
	r := NewResolver(NewRoleRepository(db))
	ctx := context.Background()

	r.GrantPermission(ctx, user.ID, PermUserView) //nolint:errcheck // test setup

	if err := r.RevokeRole(ctx, user.ID, RoleStudent); err != nil {
		t.Fatalf("RevokeRole() error = %v", err)
	}
	if err := r.RevokePermission(ctx, user.ID, PermUserView); err != nil {
		t.Fatalf("RevokePermission() error = %v", err)
	}

	ac, _ := r.LoadAuthContext(ctx, user.ID)
	if len(ac.Roles) != 0 || len(ac.Permissions) != 0 {
		t.Errorf("context after revoke = %+v, want empty", ac)
	}

	if err := r.RevokeRole(ctx, user.ID, Role("superhero")); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("RevokeRole() unknown error = %v, want ErrUnknownRole", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"", RoleDonor, false},
		{"  ", RoleDonor, false},
		{"student", RoleStudent, false},
		{"system_admin", RoleSystemAdmin, false},
		{"owner", "", true},
		{"Donor", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownRole) {
			t.Errorf("NormalizeRole(%q) error = %v, want ErrUnknownRole", tt.in, err)
		}
	}
}
