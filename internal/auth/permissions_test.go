package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermRegistryRead, true},
		{RoleViewer, PermHistoryRead, true},
		{RoleViewer, PermDispatchSend, false},
		{RoleViewer, PermMacroManage, false},
		{RoleOperator, PermDispatchSend, true},
		{RoleOperator, PermMacroManage, true},
		{RoleOperator, PermUnitManage, true},
		{RoleOperator, PermRegistryManage, false},
		{RoleOperator, PermAuditRead, false},
		{RoleAdmin, PermRegistryManage, true},
		{RoleAdmin, PermOperatorManage, true},
		{RoleAdmin, PermAuditRead, true},
		{Role("owner"), PermRegistryRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestRolesAreCumulative(t *testing.T) {
	for i := 1; i < len(ValidRoles); i++ {
		lower, higher := ValidRoles[i-1], ValidRoles[i]
		for _, p := range PermissionsForRole(lower) {
			if !HasPermission(higher, p) {
				t.Errorf("%s has %s but %s does not", lower, p, higher)
			}
		}
	}
}

func TestPermissionsForRole_Copy(t *testing.T) {
	perms := PermissionsForRole(RoleViewer)
	perms[0] = PermSystemAdmin
	if HasPermission(RoleViewer, PermSystemAdmin) {
		t.Error("PermissionsForRole() returned the shared slice")
	}
	if PermissionsForRole(Role("unknown")) != nil {
		t.Error("PermissionsForRole(unknown) should be nil")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	if IsValidRole("panel") {
		t.Error(`IsValidRole("panel") = true`)
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"tech", true},
		{"bench.operator-2_b", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
	}
	for _, tt := range tests {
		if got := IsValidUsername(tt.name); got != tt.want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
