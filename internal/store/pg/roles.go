package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/store"
)

// RoleDefinition loads a company's custom definition for a role name. The
// static catalog defaults remain the fallback when no row exists.
func (s *Store) RoleDefinition(ctx context.Context, companyID, name string) (authz.RoleDefinition, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		select permissions from role_definitions
		where company_id = $1 and name = $2
	`, companyID, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.RoleDefinition{}, store.ErrNotFound
	}
	if err != nil {
		return authz.RoleDefinition{}, err
	}
	var permissions []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &permissions); err != nil {
			return authz.RoleDefinition{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return authz.NewRoleDefinition(name, permissions), nil
}

// SaveRoleDefinition upserts a company's custom role definition.
func (s *Store) SaveRoleDefinition(ctx context.Context, companyID string, def authz.RoleDefinition) error {
	if companyID == "" || def.Name == "" {
		return errors.New("company id and role name are required")
	}
	raw, err := json.Marshal(def.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into role_definitions (company_id, name, permissions)
		values ($1, $2, $3)
		on conflict (company_id, name) do update
		set permissions = excluded.permissions, updated_at = now()
	`, companyID, def.Name, raw)
	return err
}
