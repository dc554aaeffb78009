package rbac

import "github.com/clientportal/portal/internal/roles"

// RoleInfo describes one role of the unified enumeration.
type RoleInfo struct {
	Name        string       `json:"name"`
	Family      roles.Family `json:"family"`
	Rank        int          `json:"rank"`
	Coarse      bool         `json:"coarse"`
	FineGrained bool         `json:"fineGrained"`
}

// Catalogue is what a role is allowed to do.
type Catalogue struct {
	Role       roles.Role     `json:"role"`
	Family     roles.Family   `json:"family"`
	Actions    []roles.Action `json:"actions"`
	Manageable []roles.Role   `json:"manageableRoles"`
}
