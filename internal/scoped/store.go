// Package scoped composes the permission evaluator, the tenant guard and the
// audit recorder around the generic data-access interface, producing the
// tenant- and permission-enforced façade every request goes through.
package scoped

import (
	"context"
	"errors"
	"fmt"

	"mlinzi.dev/internal/audit"
	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/store"
	"mlinzi.dev/internal/tenant"
)

// Denial reasons recorded with audit entries.
const (
	reasonPermissionDenied = "permission_denied"
	reasonTenantViolation  = "tenant_violation"
)

// Store is a per-request façade over the generic data store. Both the
// permission check and the tenant check complete before the underlying data
// operation begins; there is no optimistic-execute path.
type Store struct {
	actor    *authz.AuthContext
	data     store.Store
	eval     *authz.Evaluator
	guard    *tenant.Guard
	recorder *audit.Recorder
}

// New validates the auth context and builds the façade. Construction fails
// fast on a malformed or incomplete identity, before any data access is
// attempted; that failure is distinct from a per-operation permission denial.
func New(actor *authz.AuthContext, data store.Store, eval *authz.Evaluator, guard *tenant.Guard, recorder *audit.Recorder) (*Store, error) {
	if data == nil || eval == nil || guard == nil || recorder == nil {
		return nil, errors.New("scoped: data store, evaluator, guard and recorder are required")
	}
	if actor == nil {
		return nil, authz.ErrUnauthenticated
	}
	switch {
	case actor.UserID == "":
		return nil, fmt.Errorf("%w: user id missing", authz.ErrInvalidContext)
	case actor.Email == "":
		return nil, fmt.Errorf("%w: email missing", authz.ErrInvalidContext)
	case actor.Role == "":
		return nil, fmt.Errorf("%w: role missing", authz.ErrInvalidContext)
	case actor.CompanyID == "" && !actor.IsSuperAdmin():
		return nil, fmt.Errorf("%w: company id missing", authz.ErrInvalidContext)
	}
	if !actor.Active() {
		return nil, fmt.Errorf("%w: status %q", authz.ErrInactiveAccount, actor.Status)
	}
	return &Store{actor: actor, data: data, eval: eval, guard: guard, recorder: recorder}, nil
}

// Actor returns the auth context the façade was built for.
func (s *Store) Actor() *authz.AuthContext { return s.actor }

// Select lists records the caller may see. Non-admin reads are confined to
// the caller's company by an injected filter.
func (s *Store) Select(ctx context.Context, table string) ([]store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbRead, ""); err != nil {
		return nil, err
	}
	if s.actor.IsAdmin() {
		s.allowed(ctx, table, authz.VerbRead, "")
		return s.data.Select(ctx, table)
	}
	filter, err := store.Filter{}.WithCompany(s.actor.CompanyID)
	if err != nil {
		return nil, err
	}
	s.allowed(ctx, table, authz.VerbRead, "")
	return s.data.SelectBy(ctx, table, filter)
}

// SelectBy lists records matching the filter. For non-admins the company
// clause is added to the caller's filter, never substituted for it; a filter
// already naming a different company is a cross-tenant read attempt.
func (s *Store) SelectBy(ctx context.Context, table string, filter store.Filter) ([]store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbRead, ""); err != nil {
		return nil, err
	}
	if !s.actor.IsAdmin() {
		scopedFilter, err := filter.WithCompany(s.actor.CompanyID)
		if errors.Is(err, store.ErrFilterConflict) {
			return nil, s.deniedTenant(ctx, table, authz.VerbRead, "")
		}
		if err != nil {
			return nil, err
		}
		filter = scopedFilter
	}
	s.allowed(ctx, table, authz.VerbRead, "")
	return s.data.SelectBy(ctx, table, filter)
}

// SelectOne fetches one record and re-checks its company after the fetch;
// the underlying store may not support company-scoped point lookups
// natively. For non-admins a missing record and a foreign record produce the
// same access-denied error.
func (s *Store) SelectOne(ctx context.Context, table, id string) (store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbRead, id); err != nil {
		return nil, err
	}
	record, err := s.data.SelectOne(ctx, table, id)
	if errors.Is(err, store.ErrNotFound) {
		if s.actor.IsAdmin() {
			return nil, err
		}
		return nil, s.deniedTenant(ctx, table, authz.VerbRead, id)
	}
	if err != nil {
		return nil, err
	}
	if !tenant.BelongsToCompany(s.actor, record.Company()) {
		return nil, s.deniedTenant(ctx, table, authz.VerbRead, id)
	}
	s.allowed(ctx, table, authz.VerbRead, id)
	return record, nil
}

// Insert creates a record under the caller's company. An absent company id
// is filled in; a payload forcing a different company is rejected, not
// overwritten.
func (s *Store) Insert(ctx context.Context, table string, data store.Record) (store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbCreate, ""); err != nil {
		return nil, err
	}
	data = s.withCompany(data)
	ok, err := s.guard.CanWrite(ctx, s.actor, table, "", data.Company())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.deniedTenant(ctx, table, authz.VerbCreate, "")
	}
	s.allowed(ctx, table, authz.VerbCreate, "")
	return s.data.Insert(ctx, table, data)
}

// InsertMany creates records in one batch. Every record is checked before
// any insert runs so a denial never leaves a partial batch behind.
func (s *Store) InsertMany(ctx context.Context, table string, data []store.Record) ([]store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbCreate, ""); err != nil {
		return nil, err
	}
	prepared := make([]store.Record, 0, len(data))
	for _, record := range data {
		record = s.withCompany(record)
		ok, err := s.guard.CanWrite(ctx, s.actor, table, "", record.Company())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.deniedTenant(ctx, table, authz.VerbCreate, "")
		}
		prepared = append(prepared, record)
	}
	s.allowed(ctx, table, authz.VerbCreate, "")
	return s.data.InsertMany(ctx, table, prepared)
}

// Update modifies one record. The pre-existing record's company must match
// the caller's, independent of whatever company id the payload claims.
func (s *Store) Update(ctx context.Context, table, id string, data store.Record) (store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbUpdate, id); err != nil {
		return nil, err
	}
	ok, err := s.guard.CanWrite(ctx, s.actor, table, id, data.Company())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.deniedTenant(ctx, table, authz.VerbUpdate, id)
	}
	s.allowed(ctx, table, authz.VerbUpdate, id)
	return s.data.Update(ctx, table, id, data)
}

// UpdateMany modifies every record matching the filter. For non-admins the
// company clause is forced into the filter so one bulk call cannot span
// tenants even when the caller-supplied filter omits it.
func (s *Store) UpdateMany(ctx context.Context, table string, filter store.Filter, data store.Record) ([]store.Record, error) {
	if err := s.requireVerb(ctx, table, authz.VerbUpdate, ""); err != nil {
		return nil, err
	}
	if !s.actor.IsAdmin() {
		if company := data.Company(); company != "" && company != s.actor.CompanyID {
			return nil, s.deniedTenant(ctx, table, authz.VerbUpdate, "")
		}
		scopedFilter, err := filter.WithCompany(s.actor.CompanyID)
		if errors.Is(err, store.ErrFilterConflict) {
			return nil, s.deniedTenant(ctx, table, authz.VerbUpdate, "")
		}
		if err != nil {
			return nil, err
		}
		filter = scopedFilter
	}
	s.allowed(ctx, table, authz.VerbUpdate, "")
	return s.data.UpdateMany(ctx, table, filter, data)
}

// Delete removes one record. Deletion requires the admin role in addition
// to ownership; write-capable does not imply delete-capable.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := s.requireVerb(ctx, table, authz.VerbDelete, id); err != nil {
		return err
	}
	ok, err := s.guard.CanDelete(ctx, s.actor, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return s.deniedTenant(ctx, table, authz.VerbDelete, id)
	}
	s.allowed(ctx, table, authz.VerbDelete, id)
	return s.data.Delete(ctx, table, id)
}

// DeleteMany removes every record matching the filter. Bulk deletion is
// admin-only; non-admins are denied before the filter is even considered.
func (s *Store) DeleteMany(ctx context.Context, table string, filter store.Filter) (int64, error) {
	if err := s.requireVerb(ctx, table, authz.VerbDelete, ""); err != nil {
		return 0, err
	}
	if !s.actor.IsAdmin() {
		return 0, s.deniedTenant(ctx, table, authz.VerbDelete, "")
	}
	s.allowed(ctx, table, authz.VerbDelete, "")
	return s.data.DeleteMany(ctx, table, filter)
}

// withCompany copies the payload and fills in the caller's company when the
// payload names none. Nothing else is stripped or rewritten.
func (s *Store) withCompany(data store.Record) store.Record {
	out := make(store.Record, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	if out.Company() == "" && s.actor.CompanyID != "" {
		out[store.CompanyColumn] = s.actor.CompanyID
	}
	return out
}

// requireVerb checks the catalog-mapped permission for the operation and
// audits the outcome. The audit entry for a denial is dispatched before the
// error returns, so it is ordered ahead of any would-be data access.
func (s *Store) requireVerb(ctx context.Context, table string, verb authz.Verb, recordID string) error {
	required := s.eval.Catalog().Required("", table, verb)
	if err := s.eval.Require(s.actor, table+"."+string(verb), required); err != nil {
		s.record(ctx, table, verb, recordID, false, map[string]any{
			"reason":      reasonPermissionDenied,
			"permissions": required,
		})
		return err
	}
	return nil
}

// deniedTenant audits and returns the uniform cross-tenant denial.
func (s *Store) deniedTenant(ctx context.Context, table string, verb authz.Verb, recordID string) error {
	s.record(ctx, table, verb, recordID, false, map[string]any{
		"reason": reasonTenantViolation,
	})
	return &authz.TenantViolationError{Table: table, RecordID: recordID, UserID: s.actor.UserID}
}

func (s *Store) allowed(ctx context.Context, table string, verb authz.Verb, recordID string) {
	s.record(ctx, table, verb, recordID, true, nil)
}

func (s *Store) record(ctx context.Context, table string, verb authz.Verb, recordID string, allowed bool, details map[string]any) {
	s.recorder.Record(ctx, audit.Entry{
		Action:      table + "." + string(verb),
		EntityType:  table,
		RecordID:    recordID,
		CompanyID:   s.actor.CompanyID,
		ActorUserID: s.actor.UserID,
		ActorEmail:  s.actor.Email,
		Allowed:     allowed,
		Details:     details,
	})
}
