package authz

import "strings"

// UnmappedPolicy controls what the evaluator does when the catalog has no
// entry for an action or table+verb pair.
type UnmappedPolicy int

const (
	// AllowUnmapped treats a missing catalog entry as "no enforcement".
	// This is the current production behavior; flipping the default to
	// DenyUnmapped is a one-line, intentional policy change.
	AllowUnmapped UnmappedPolicy = iota
	DenyUnmapped
)

// Catalog is the static mapping from named actions and table+verb pairs to
// required permissions, plus the default permission set per role. It is
// configuration loaded at process start and never mutated at runtime.
type Catalog struct {
	actions      map[string][]string
	tables       map[string]map[Verb]string
	roleDefaults map[string][]string
}

// Required returns the permissions needed for the operation, consulting the
// action table first and the table+verb table second. A nil result means no
// mapping exists; callers must treat that as "no enforcement", not "deny".
func (c *Catalog) Required(action, table string, verb Verb) []string {
	if c == nil {
		return nil
	}
	if action != "" {
		if perms, ok := c.actions[action]; ok {
			out := make([]string, len(perms))
			copy(out, perms)
			return out
		}
	}
	if table == "" {
		return nil
	}
	verbs, ok := c.tables[table]
	if !ok {
		return nil
	}
	perm, ok := verbs[verb]
	if !ok {
		return nil
	}
	return []string{perm}
}

// RoleDefaults returns the static fallback permission set for a role.
func (c *Catalog) RoleDefaults(role string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	perms, ok := c.roleDefaults[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return nil, false
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, true
}

// Tables lists the tables the catalog knows about.
func (c *Catalog) Tables() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.tables))
	for t := range c.tables {
		out = append(out, t)
	}
	return out
}

// crudPermissions builds the four verb mappings for one entity.
func crudPermissions(entity string) map[Verb]string {
	return map[Verb]string{
		VerbCreate: "create_" + entity,
		VerbRead:   "view_" + entity,
		VerbUpdate: "edit_" + entity,
		VerbDelete: "delete_" + entity,
	}
}

// DefaultCatalog returns the catalog for the business-management domain:
// quotations, invoices, payments, inventory and transport logistics.
func DefaultCatalog() *Catalog {
	return &Catalog{
		actions: map[string][]string{
			"admin_create_user": {"manage_users"},
			"admin_update_user": {"manage_users"},
			"admin_delete_user": {"manage_users"},
			"assign_role":       {"manage_roles"},
			"define_role":       {"manage_roles"},
			"dispatch_delivery": {"manage_transport"},
			"assign_vehicle":    {"manage_transport"},
			"record_payment":    {"create_payment"},
			"export_reports":    {"view_reports"},
		},
		tables: map[string]map[Verb]string{
			"quotations":      crudPermissions("quotation"),
			"invoices":        crudPermissions("invoice"),
			"payments":        crudPermissions("payment"),
			"customers":       crudPermissions("customer"),
			"suppliers":       crudPermissions("supplier"),
			"materials":       crudPermissions("material"),
			"inventory_items": crudPermissions("inventory"),
			"drivers":         crudPermissions("driver"),
			"vehicles":        crudPermissions("vehicle"),
			"deliveries":      crudPermissions("delivery"),
		},
		roleDefaults: map[string][]string{
			RoleAccountant: {
				"view_quotation", "create_quotation", "edit_quotation",
				"view_invoice", "create_invoice", "edit_invoice",
				"view_payment", "create_payment", "edit_payment",
				"view_customer", "create_customer", "edit_customer",
				"view_reports",
			},
			RoleStockManager: {
				"view_material", "create_material", "edit_material",
				"view_inventory", "create_inventory", "edit_inventory",
				"view_supplier", "create_supplier", "edit_supplier",
				"view_delivery", "view_driver", "view_vehicle",
				"manage_transport",
			},
			RoleUser: {
				"view_quotation", "view_invoice", "view_customer",
				"view_inventory", "view_delivery",
			},
		},
	}
}
