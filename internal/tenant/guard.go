// Package tenant implements the record-ownership guard that confines every
// read, write and delete to the caller's company.
package tenant

import (
	"context"
	"errors"

	"mlinzi.dev/internal/authz"
)

// ErrNotFound is returned by a CompanySource when the record does not exist.
// The guard treats it exactly like a company mismatch so that non-admins can
// never distinguish "missing" from "belongs to someone else".
var ErrNotFound = errors.New("tenant: record not found")

// CompanySource resolves the owning company of a persisted record.
type CompanySource interface {
	CompanyOf(ctx context.Context, table, recordID string) (string, error)
}

// Guard evaluates tenant-boundary predicates against a company source.
// Admin and super_admin contexts bypass every check in this component.
type Guard struct {
	source CompanySource
}

// NewGuard builds a guard over the given company source.
func NewGuard(source CompanySource) (*Guard, error) {
	if source == nil {
		return nil, errors.New("tenant: company source is required")
	}
	return &Guard{source: source}, nil
}

// BelongsToCompany is the single tenant-boundary predicate used everywhere
// else: admins bypass, everyone else must match exactly. A record without a
// company id never matches a non-admin.
func BelongsToCompany(actor *authz.AuthContext, companyID string) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return companyID != "" && actor.CompanyID == companyID
}

// CanRead reports whether the actor may read the record. A record that does
// not exist is denied, indistinguishably from a cross-tenant record.
func (g *Guard) CanRead(ctx context.Context, actor *authz.AuthContext, table, recordID string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	company, err := g.source.CompanyOf(ctx, table, recordID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return BelongsToCompany(actor, company), nil
}

// CanWrite reports whether the actor may insert (recordID empty) or update
// the record. For updates the pre-existing record's company must match the
// actor's, independent of whatever company id the payload claims; a write
// can never move a record across tenants.
func (g *Guard) CanWrite(ctx context.Context, actor *authz.AuthContext, table, recordID, targetCompanyID string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	if targetCompanyID != "" && !BelongsToCompany(actor, targetCompanyID) {
		return false, nil
	}
	if recordID == "" {
		// Insert: the target company is all there is to check.
		return BelongsToCompany(actor, targetCompanyID), nil
	}
	// Update: ownership is taken from a point-in-time read immediately
	// before the write. Serializing against concurrent modification is the
	// data store's transaction discipline, not ours.
	company, err := g.source.CompanyOf(ctx, table, recordID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return BelongsToCompany(actor, company), nil
}

// CanDelete requires the admin role in addition to ownership; deletion is
// strictly more privileged than read or write.
func (g *Guard) CanDelete(ctx context.Context, actor *authz.AuthContext, table, recordID string) (bool, error) {
	if actor == nil || !actor.IsAdmin() {
		return false, nil
	}
	return g.CanRead(ctx, actor, table, recordID)
}
