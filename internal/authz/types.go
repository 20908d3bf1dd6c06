// Package authz implements the permission catalog, the auth context
// resolver and the permission evaluator for the company-scoped RBAC layer.
package authz

import "strings"

// Role names with built-in semantics. Custom role names are allowed; they
// resolve through role definitions or the catalog's default permission sets.
const (
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "super_admin"
	RoleAccountant   = "accountant"
	RoleStockManager = "stock_manager"
	RoleUser         = "user"
)

// Account statuses. Only active contexts may perform any operation.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// Verb is one of the four CRUD verbs the catalog maps to permissions.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// RoleDefinition maps a role name to a duplicate-free permission set.
// Definitions are decoded once at the boundary; nothing deeper in the call
// chain branches on their runtime shape.
type RoleDefinition struct {
	Name        string
	Permissions []string

	set map[string]struct{}
}

// NewRoleDefinition normalizes the permission list and builds the lookup set.
func NewRoleDefinition(name string, permissions []string) RoleDefinition {
	def := RoleDefinition{Name: strings.TrimSpace(name)}
	def.set = make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := def.set[p]; ok {
			continue
		}
		def.set[p] = struct{}{}
		def.Permissions = append(def.Permissions, p)
	}
	return def
}

// Has reports whether the definition grants the permission.
func (d RoleDefinition) Has(permission string) bool {
	_, ok := d.set[permission]
	return ok
}

// AuthContext is the authenticated caller's security identity for the
// duration of one request. It is constructed fresh per request from a
// decoded credential and never mutated afterwards.
type AuthContext struct {
	UserID    string
	Email     string
	Role      string
	CompanyID string
	Status    string

	// Permissions, when non-nil, is an explicit grant set overriding the
	// role defaults.
	Permissions []string

	// RoleDefinition, when present, takes precedence over both explicit
	// permissions and role defaults.
	RoleDefinition *RoleDefinition
}

// IsAdmin reports whether the role is admin or super_admin, case-insensitively.
func (c *AuthContext) IsAdmin() bool {
	if c == nil {
		return false
	}
	role := strings.ToLower(strings.TrimSpace(c.Role))
	return role == RoleAdmin || role == RoleSuperAdmin
}

// IsSuperAdmin reports whether the role is super_admin, case-insensitively.
// A super_admin is an unconditional tenant bypass regardless of its company
// id; a non-null company id does not scope it.
func (c *AuthContext) IsSuperAdmin() bool {
	if c == nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(c.Role)) == RoleSuperAdmin
}

// Active reports whether the account status permits operations.
func (c *AuthContext) Active() bool {
	return c != nil && c.Status == StatusActive
}
