package auth

import "slices"

// Permission represents a named capability on the console.
type Permission string

// Permission constants.
const (
	PermRegistryRead   Permission = "registry:read"
	PermRegistryManage Permission = "registry:manage"
	PermUnitManage     Permission = "unit:manage"
	PermMacroManage    Permission = "macro:manage"
	PermDispatchSend   Permission = "dispatch:send"
	PermHistoryRead    Permission = "history:read"
	PermAuditRead      Permission = "audit:read"
	PermOperatorManage Permission = "operator:manage"
	PermSystemAdmin    Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermRegistryRead,
		PermHistoryRead,
	},
	RoleOperator: {
		PermRegistryRead,
		PermHistoryRead,
		PermUnitManage,
		PermMacroManage,
		PermDispatchSend,
	},
	RoleAdmin: {
		PermRegistryRead,
		PermHistoryRead,
		PermUnitManage,
		PermMacroManage,
		PermDispatchSend,
		PermRegistryManage,
		PermAuditRead,
		PermOperatorManage,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
