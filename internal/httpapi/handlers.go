package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/store"
)

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": code})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// handleAuthzError maps core errors onto the wire. Denials carry a
// machine-readable code so a UI can say "you don't have permission" instead
// of "try again"; everything else is a generic operation failure.
func handleAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		obs.ObserveDecision(false, "permission_denied")
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, authz.ErrTenantViolation):
		obs.ObserveDecision(false, "access_denied")
		writeError(w, http.StatusForbidden, "access_denied", "access denied")
	case errors.Is(err, authz.ErrInactiveAccount):
		obs.ObserveDecision(false, "account_inactive")
		writeError(w, http.StatusForbidden, "account_inactive", "account is not active")
	case errors.Is(err, authz.ErrUnauthenticated), errors.Is(err, authz.ErrInvalidContext):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, store.ErrUnknownTable), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, store.ErrFilterConflict):
		obs.ObserveDecision(false, "access_denied")
		writeError(w, http.StatusForbidden, "access_denied", "access denied")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "operation failed")
	}
}
