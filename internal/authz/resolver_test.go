package authz

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func testCredential(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestResolveExtractsClaims(t *testing.T) {
	cred := testCredential(t, map[string]any{
		"sub":         "user-1",
		"email":       "jane@acme.example",
		"role":        "Accountant",
		"company_id":  "co-a",
		"status":      "active",
		"permissions": []any{"view_invoice", "create_invoice"},
	})

	actor, err := Resolve(cred)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if actor.UserID != "user-1" || actor.Email != "jane@acme.example" {
		t.Fatalf("unexpected identity: %+v", actor)
	}
	if actor.Role != "accountant" {
		t.Fatalf("role not normalized: %q", actor.Role)
	}
	if actor.CompanyID != "co-a" || actor.Status != "active" {
		t.Fatalf("unexpected tenant claims: %+v", actor)
	}
	if len(actor.Permissions) != 2 || actor.Permissions[0] != "view_invoice" {
		t.Fatalf("permissions not extracted: %v", actor.Permissions)
	}
}

func TestResolveUserIDFallback(t *testing.T) {
	cred := testCredential(t, map[string]any{
		"user_id": "user-2",
		"email":   "ops@acme.example",
		"role":    "user",
		"status":  "active",
	})
	actor, err := Resolve(cred)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if actor.UserID != "user-2" {
		t.Fatalf("expected user_id fallback, got %q", actor.UserID)
	}
}

func TestResolveRoleDefinitionClaim(t *testing.T) {
	cred := testCredential(t, map[string]any{
		"sub":        "user-3",
		"role":       "dispatcher",
		"company_id": "co-a",
		"status":     "active",
		"role_definition": map[string]any{
			"name":        "dispatcher",
			"permissions": []any{"manage_transport", "view_delivery", "manage_transport"},
		},
	})
	actor, err := Resolve(cred)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if actor.RoleDefinition == nil {
		t.Fatal("expected role definition")
	}
	if len(actor.RoleDefinition.Permissions) != 2 {
		t.Fatalf("permissions not deduplicated: %v", actor.RoleDefinition.Permissions)
	}
	if !actor.RoleDefinition.Has("manage_transport") {
		t.Fatal("expected manage_transport in definition")
	}
}

func TestResolveRejectsMalformedCredentials(t *testing.T) {
	cases := []struct {
		name string
		cred string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"undecodable payload", "eyJhbGciOiJIUzI1NiJ9.!!!.sig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actor, err := Resolve(tc.cred)
			if actor != nil {
				t.Fatalf("expected nil context, got %+v", actor)
			}
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestResolveRequiresSubject(t *testing.T) {
	cred := testCredential(t, map[string]any{
		"email": "nobody@acme.example",
		"role":  "user",
	})
	if _, err := Resolve(cred); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
