package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mlinzi.dev/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Append writes one immutable audit entry. The table is append-only; nothing
// in the application updates or deletes rows here.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return errors.New("audit entry is required")
	}
	details := []byte("{}")
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, created_at, action, entity_type, record_id, company_id, actor_user_id, actor_email, allowed, details)
		values ($1, $2, $3, $4, nullif($5, ''), nullif($6, ''), $7, $8, $9, $10)
	`, entry.ID, entry.CreatedAt, entry.Action, entry.EntityType, entry.RecordID,
		entry.CompanyID, entry.ActorUserID, entry.ActorEmail, entry.Allowed, details)
	return err
}
