package authz

import (
	"errors"
	"testing"
)

func activeUser(role string, perms []string) *AuthContext {
	return &AuthContext{
		UserID:      "u-1",
		Email:       "u@acme.example",
		Role:        role,
		CompanyID:   "co-a",
		Status:      StatusActive,
		Permissions: perms,
	}
}

func TestHasPermissionOrder(t *testing.T) {
	eval, err := NewEvaluator(DefaultCatalog(), AllowUnmapped)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	withDef := activeUser("custom", nil)
	def := NewRoleDefinition("custom", []string{"view_invoice"})
	withDef.RoleDefinition = &def

	// A role definition shadows explicit permissions entirely.
	shadowed := activeUser("custom", []string{"delete_invoice"})
	shadowedDef := NewRoleDefinition("custom", []string{"view_invoice"})
	shadowed.RoleDefinition = &shadowedDef

	cases := []struct {
		name     string
		ctx      *AuthContext
		required []string
		want     bool
	}{
		{"unmapped allows anyone", activeUser("user", nil), nil, true},
		{"unmapped allows nil context", nil, nil, true},
		{"mapped denies nil context", nil, []string{"view_invoice"}, false},
		{"admin bypasses", activeUser(RoleAdmin, nil), []string{"delete_invoice"}, true},
		{"super admin bypasses", activeUser(RoleSuperAdmin, nil), []string{"delete_invoice"}, true},
		{"role definition grants", withDef, []string{"view_invoice"}, true},
		{"role definition denies", withDef, []string{"delete_invoice"}, false},
		{"role definition shadows explicit grants", shadowed, []string{"delete_invoice"}, false},
		{"explicit grant", activeUser("custom", []string{"edit_invoice"}), []string{"edit_invoice"}, true},
		{"empty explicit set denies", activeUser(RoleAccountant, []string{}), []string{"view_invoice"}, false},
		{"role defaults grant", activeUser(RoleAccountant, nil), []string{"view_invoice"}, true},
		{"role defaults deny", activeUser(RoleAccountant, nil), []string{"delete_invoice"}, false},
		{"unknown role fails closed", activeUser("intern", nil), []string{"view_invoice"}, false},
		{"any of several suffices", activeUser(RoleAccountant, nil), []string{"delete_invoice", "view_invoice"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := eval.HasPermission(tc.ctx, tc.required); got != tc.want {
				t.Fatalf("HasPermission = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDenyUnmappedPolicy(t *testing.T) {
	eval, err := NewEvaluator(DefaultCatalog(), DenyUnmapped)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if eval.HasPermission(activeUser("user", nil), nil) {
		t.Fatal("DenyUnmapped must deny unmapped operations")
	}
}

func TestCanAnyCanAll(t *testing.T) {
	eval, _ := NewEvaluator(DefaultCatalog(), AllowUnmapped)
	actor := activeUser("custom", []string{"view_invoice", "view_payment"})

	if !eval.CanAny(actor, []string{"delete_invoice", "view_payment"}) {
		t.Fatal("CanAny should pass on one held permission")
	}
	if eval.CanAll(actor, []string{"view_invoice", "delete_invoice"}) {
		t.Fatal("CanAll should fail on one missing permission")
	}
	if !eval.CanAll(actor, []string{"view_invoice", "view_payment"}) {
		t.Fatal("CanAll should pass when all are held")
	}
}

func TestRequireReturnsTypedDenial(t *testing.T) {
	eval, _ := NewEvaluator(DefaultCatalog(), AllowUnmapped)
	actor := activeUser(RoleUser, nil)

	err := eval.Require(actor, "invoices.delete", []string{"delete_invoice"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *PermissionDeniedError, got %T", err)
	}
	if denied.UserID != "u-1" || denied.Action != "invoices.delete" {
		t.Fatalf("denial lacks detail: %+v", denied)
	}
}

func TestRequireOperation(t *testing.T) {
	eval, _ := NewEvaluator(DefaultCatalog(), AllowUnmapped)
	actor := activeUser(RoleAccountant, nil)

	if err := eval.RequireOperation(actor, "", "invoices", VerbRead); err != nil {
		t.Fatalf("accountant should read invoices: %v", err)
	}
	if err := eval.RequireOperation(actor, "", "invoices", VerbDelete); err == nil {
		t.Fatal("accountant must not delete invoices")
	}
	// Unmapped table falls through to the allow policy.
	if err := eval.RequireOperation(actor, "", "scratch_notes", VerbRead); err != nil {
		t.Fatalf("unmapped table should pass under AllowUnmapped: %v", err)
	}
}
