package auth

import "sort"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermCampaignView    Permission = "campaign:view"
	PermCampaignCreate  Permission = "campaign:create"
	PermCampaignUpdate  Permission = "campaign:update"
	PermCampaignDelete  Permission = "campaign:delete"
	PermCampaignApprove Permission = "campaign:approve"
	PermDonationCreate  Permission = "donation:create"
	PermDonationViewOwn Permission = "donation:view_own"
	PermDonationViewAll Permission = "donation:view_all"
	PermWithdrawRequest Permission = "withdrawal:request"
	PermWithdrawApprove Permission = "withdrawal:approve"
	PermUserView        Permission = "user:view"
	PermUserManage      Permission = "user:manage"
	PermAdminManage     Permission = "admin:manage"
	PermRoleManage      Permission = "role:manage"
	PermSystemSettings  Permission = "system:settings"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for role-derived permissions; direct
// per-user grants are stored separately and unioned in by the Resolver.
var rolePermissions = map[Role][]Permission{
	RoleDonor: {
		PermCampaignView,
		PermDonationCreate,
		PermDonationViewOwn,
	},
	RoleInstitution: {
		PermCampaignView,
		PermCampaignCreate,
		PermCampaignUpdate,
		PermDonationCreate,
		PermDonationViewOwn,
		PermWithdrawRequest,
	},
	RoleStudent: {
		PermCampaignView,
		PermCampaignCreate,
		PermCampaignUpdate,
		PermDonationCreate,
		PermDonationViewOwn,
		PermWithdrawRequest,
	},
	RoleAdmin: {
		PermCampaignView,
		PermCampaignUpdate,
		PermCampaignDelete,
		PermCampaignApprove,
		PermDonationViewAll,
		PermWithdrawApprove,
		PermUserView,
		PermUserManage,
	},
	RoleSystemAdmin: {
		PermCampaignView,
		PermCampaignCreate,
		PermCampaignUpdate,
		PermCampaignDelete,
		PermCampaignApprove,
		PermDonationCreate,
		PermDonationViewOwn,
		PermDonationViewAll,
		PermWithdrawRequest,
		PermWithdrawApprove,
		PermUserView,
		PermUserManage,
		PermAdminManage,
		PermRoleManage,
		PermSystemSettings,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// IsKnownPermission reports whether perm is granted by at least one role.
// Direct grants are limited to this catalogue.
func IsKnownPermission(perm Permission) bool {
	for _, perms := range rolePermissions {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// mergePermissions returns the sorted, de-duplicated union of sets.
func mergePermissions(sets ...[]Permission) []Permission {
	seen := make(map[Permission]struct{})
	for _, set := range sets {
		for _, p := range set {
			seen[p] = struct{}{}
		}
	}

	out := make([]Permission, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
