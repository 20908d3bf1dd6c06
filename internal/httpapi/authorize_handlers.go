package httpapi

import (
	"net/http"
	"strings"

	"mlinzi.dev/internal/audit"
	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/tenant"
)

type authorizeRequest struct {
	Action    string `json:"action,omitempty"`
	Table     string `json:"table,omitempty"`
	Verb      string `json:"verb,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

type authorizeResponse struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// handleAuthorize is a pre-flight decision check: it evaluates the same
// permission and tenant predicates the data API enforces, without touching
// any data.
func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	var req authorizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Action == "" && req.Table == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "action or table is required")
		return
	}

	required := a.eval.Catalog().Required(req.Action, req.Table, authz.Verb(strings.ToLower(req.Verb)))
	resp := authorizeResponse{Permissions: required}
	switch {
	case !actor.Active():
		resp.Reason = "account_inactive"
	case !a.eval.HasPermission(actor, required):
		resp.Reason = "permission_denied"
	case req.RecordID != "" && a.guard != nil:
		allowed, err := a.guard.CanRead(r.Context(), actor, req.Table, req.RecordID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "operation failed")
			return
		}
		if !allowed {
			resp.Reason = "access_denied"
		}
	case req.CompanyID != "":
		if !tenant.BelongsToCompany(actor, req.CompanyID) {
			resp.Reason = "access_denied"
		}
	}
	resp.Allowed = resp.Reason == ""

	obs.ObserveDecision(resp.Allowed, resp.Reason)
	a.recorder.Record(r.Context(), audit.Entry{
		Action:      "authorize.check",
		EntityType:  entityType(req),
		RecordID:    req.RecordID,
		CompanyID:   actor.CompanyID,
		ActorUserID: actor.UserID,
		ActorEmail:  actor.Email,
		Allowed:     resp.Allowed,
		Details: map[string]any{
			"action": req.Action,
			"table":  req.Table,
			"verb":   req.Verb,
			"reason": resp.Reason,
		},
	})
	writeJSON(w, http.StatusOK, resp)
}

func entityType(req authorizeRequest) string {
	if req.Table != "" {
		return req.Table
	}
	return req.Action
}
