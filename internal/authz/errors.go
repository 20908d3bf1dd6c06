package authz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated  = errors.New("authz: unauthenticated")
	ErrInvalidContext   = errors.New("authz: incomplete auth context")
	ErrInactiveAccount  = errors.New("authz: account is not active")
	ErrPermissionDenied = errors.New("authz: permission denied")
	ErrTenantViolation  = errors.New("authz: tenant violation")
)

// PermissionDeniedError reports a failed permission check. It carries the
// permissions that were required, the attempted action and the actor, so the
// caller can render a user-facing denial instead of a generic failure.
type PermissionDeniedError struct {
	Action      string
	Permissions []string
	UserID      string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("authz: permission denied: user %s lacks %s for %s",
		e.UserID, strings.Join(e.Permissions, ", "), e.Action)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// TenantViolationError reports a cross-tenant access attempt. It is distinct
// from PermissionDeniedError: the actor may hold the right permission but
// target the wrong company. A record that does not exist at all produces the
// same error for non-admins, so existence never leaks across tenants.
type TenantViolationError struct {
	Table    string
	RecordID string
	UserID   string
}

func (e *TenantViolationError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("authz: access denied: user %s may not touch %s", e.UserID, e.Table)
	}
	return fmt.Sprintf("authz: access denied: user %s may not touch %s/%s", e.UserID, e.Table, e.RecordID)
}

func (e *TenantViolationError) Unwrap() error { return ErrTenantViolation }
