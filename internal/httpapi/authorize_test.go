package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"mlinzi.dev/internal/store"
)

func decideAuthorize(t *testing.T, env *testEnv, token string, body map[string]any) authorizeResponse {
	t.Helper()
	rec := doRequest(env, http.MethodPost, "/v1/authorize", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp authorizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestAuthorizeDecisions(t *testing.T) {
	env := newTestEnv(t)
	env.data.seed("invoices",
		store.Record{"id": "inv-1", "company_id": "co-a"},
		store.Record{"id": "inv-2", "company_id": "co-b"},
	)

	accountant := bearerToken(t, activeClaims("accountant", "co-a"))
	user := bearerToken(t, activeClaims("user", "co-a"))

	resp := decideAuthorize(t, env, accountant, map[string]any{"table": "invoices", "verb": "read"})
	if !resp.Allowed {
		t.Fatalf("accountant read: %+v", resp)
	}
	if len(resp.Permissions) != 1 || resp.Permissions[0] != "view_invoice" {
		t.Fatalf("permissions = %v", resp.Permissions)
	}

	resp = decideAuthorize(t, env, user, map[string]any{"table": "invoices", "verb": "delete"})
	if resp.Allowed || resp.Reason != "permission_denied" {
		t.Fatalf("user delete: %+v", resp)
	}

	// Right permission, wrong tenant.
	resp = decideAuthorize(t, env, accountant, map[string]any{"table": "invoices", "verb": "read", "record_id": "inv-2"})
	if resp.Allowed || resp.Reason != "access_denied" {
		t.Fatalf("foreign record: %+v", resp)
	}

	resp = decideAuthorize(t, env, accountant, map[string]any{"table": "invoices", "verb": "read", "record_id": "inv-1"})
	if !resp.Allowed {
		t.Fatalf("own record: %+v", resp)
	}

	// Named action path.
	resp = decideAuthorize(t, env, user, map[string]any{"action": "admin_create_user"})
	if resp.Allowed || resp.Reason != "permission_denied" {
		t.Fatalf("named action: %+v", resp)
	}

	// Explicit target company.
	resp = decideAuthorize(t, env, accountant, map[string]any{"table": "invoices", "verb": "read", "company_id": "co-b"})
	if resp.Allowed || resp.Reason != "access_denied" {
		t.Fatalf("foreign company: %+v", resp)
	}
}

func TestAuthorizeInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	claims := activeClaims("accountant", "co-a")
	claims["status"] = "pending"
	token := bearerToken(t, claims)

	resp := decideAuthorize(t, env, token, map[string]any{"table": "invoices", "verb": "read"})
	if resp.Allowed || resp.Reason != "account_inactive" {
		t.Fatalf("pending account: %+v", resp)
	}
}

func TestAuthorizeValidation(t *testing.T) {
	env := newTestEnv(t)
	token := bearerToken(t, activeClaims("accountant", "co-a"))

	rec := doRequest(env, http.MethodPost, "/v1/authorize", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty request status = %d", rec.Code)
	}

	rec = doRequest(env, http.MethodGet, "/v1/authorize", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}

	rec = doRequest(env, http.MethodPost, "/v1/authorize", "", map[string]any{"table": "invoices"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
}
