package authz

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Resolve extracts an AuthContext from a three-segment bearer credential.
// The payload segment is decoded as base64url JSON; the signature is NOT
// re-verified here. Signature trust is delegated to the issuing service and
// re-verification belongs at the transport edge; this is purely a claims
// extraction step and must stay that way.
//
// Any structural failure (not exactly three segments, undecodable payload,
// missing subject) yields ErrUnauthenticated; callers treat that as an
// unauthenticated request, not an internal error.
func Resolve(credential string) (*AuthContext, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	if strings.Count(credential, ".") != 2 {
		return nil, fmt.Errorf("%w: credential is not a three-segment token", ErrUnauthenticated)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	ctx := &AuthContext{
		UserID:    firstString(claims, "sub", "user_id"),
		Email:     stringClaim(claims, "email"),
		Role:      strings.ToLower(stringClaim(claims, "role")),
		CompanyID: stringClaim(claims, "company_id"),
		Status:    strings.ToLower(stringClaim(claims, "status")),
	}
	if ctx.UserID == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrUnauthenticated)
	}

	if raw, ok := claims["permissions"]; ok {
		ctx.Permissions = stringSlice(raw)
	}
	if raw, ok := claims["role_definition"].(map[string]any); ok {
		name := ctx.Role
		if n, ok := raw["name"].(string); ok && strings.TrimSpace(n) != "" {
			name = n
		}
		def := NewRoleDefinition(name, stringSlice(raw["permissions"]))
		ctx.RoleDefinition = &def
	}
	return ctx, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

func stringSlice(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
