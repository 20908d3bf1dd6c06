package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/store"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
}

// withAuth resolves the bearer credential into an AuthContext and attaches
// it to the request context. The credential's signature is trusted as
// verified upstream; see authz.Resolve.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}

		actor, err := authz.Resolve(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid credential")
			return
		}
		a.attachRoleDefinition(r, actor)

		ctx := authz.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// attachRoleDefinition loads the company's custom definition for the actor's
// role, when one exists. The static defaults stay the fallback; a lookup
// failure is logged and does not fail the request.
func (a *API) attachRoleDefinition(r *http.Request, actor *authz.AuthContext) {
	if a.roles == nil || actor == nil || actor.RoleDefinition != nil {
		return
	}
	if actor.IsAdmin() || actor.CompanyID == "" || actor.Role == "" {
		return
	}
	def, err := a.roles.RoleDefinition(r.Context(), actor.CompanyID, actor.Role)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "warn",
			"msg":   "role definition lookup failed",
			"error": err.Error(),
		})
		return
	}
	actor.RoleDefinition = &def
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
