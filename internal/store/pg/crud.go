package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mlinzi.dev/internal/ids"
	"mlinzi.dev/internal/store"
	"mlinzi.dev/internal/tenant"
)

var _ store.Store = (*Store)(nil)
var _ tenant.CompanySource = (*Store)(nil)

const recordColumns = "id, company_id, payload, created_at, updated_at"

func (s *Store) Select(ctx context.Context, table string) ([]store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select %s from %s order by created_at`, recordColumns, name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) SelectOne(ctx context.Context, table, id string) (store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`select %s from %s where id = $1`, recordColumns, name), id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Store) SelectBy(ctx context.Context, table string, filter store.Filter) ([]store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select %s from %s%s order by created_at`, recordColumns, name, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) Insert(ctx context.Context, table string, data store.Record) (store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	id, company, payload, err := splitRecord(data)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = ids.New()
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		insert into %s (id, company_id, payload)
		values ($1, $2, $3)
		returning %s
	`, name, recordColumns), id, company, payload)
	return scanRecord(row)
}

func (s *Store) InsertMany(ctx context.Context, table string, data []store.Record) ([]store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]store.Record, 0, len(data))
	for _, record := range data {
		id, company, payload, err := splitRecord(record)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = ids.New()
		}
		row := tx.QueryRowContext(ctx, fmt.Sprintf(`
			insert into %s (id, company_id, payload)
			values ($1, $2, $3)
			returning %s
		`, name, recordColumns), id, company, payload)
		out, err := scanRecord(row)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, out)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) Update(ctx context.Context, table, id string, data store.Record) (store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	setClause, args, err := updateSet(data)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`update %s set %s where id = $%d returning %s`,
		name, setClause, len(args), recordColumns), args...)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Store) UpdateMany(ctx context.Context, table string, filter store.Filter, data store.Record) ([]store.Record, error) {
	name, err := s.table(table)
	if err != nil {
		return nil, err
	}
	setClause, args, err := updateSet(data)
	if err != nil {
		return nil, err
	}
	where, whereArgs, err := whereClause(filter, len(args)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`update %s set %s%s returning %s`, name, setClause, where, recordColumns), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	name, err := s.table(table)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where id = $1`, name), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, table string, filter store.Filter) (int64, error) {
	name, err := s.table(table)
	if err != nil {
		return 0, err
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`delete from %s%s`, name, where), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompanyOf implements tenant.CompanySource with a point lookup on the
// ownership column.
func (s *Store) CompanyOf(ctx context.Context, table, recordID string) (string, error) {
	name, err := s.table(table)
	if err != nil {
		return "", err
	}
	var company string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`select company_id from %s where id = $1`, name), recordID).Scan(&company)
	if errors.Is(err, sql.ErrNoRows) {
		return "", tenant.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return company, nil
}

// splitRecord separates the native columns from the JSONB payload.
func splitRecord(data store.Record) (id, company string, payload []byte, err error) {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case "id":
			id, _ = v.(string)
		case store.CompanyColumn:
			company, _ = v.(string)
		case "created_at", "updated_at":
			// server-side timestamps
		default:
			fields[k] = v
		}
	}
	payload, err = json.Marshal(fields)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshal payload: %w", err)
	}
	return id, company, payload, nil
}

// updateSet builds the SET clause: payload fields merge into the JSONB
// column; a company change, when present, updates the native column.
func updateSet(data store.Record) (string, []any, error) {
	_, company, payload, err := splitRecord(data)
	if err != nil {
		return "", nil, err
	}
	parts := []string{"payload = payload || $1::jsonb", "updated_at = now()"}
	args := []any{payload}
	if company != "" {
		args = append(args, company)
		parts = append(parts, fmt.Sprintf("company_id = $%d", len(args)))
	}
	return strings.Join(parts, ", "), args, nil
}

// whereClause renders the filter. The id and company columns hit native
// columns; any other column matches the JSONB payload as text. Column names
// must satisfy identPattern; values always bind as placeholders.
func whereClause(filter store.Filter, startIdx int) (string, []any, error) {
	clauses := filter.Clauses()
	if len(clauses) == 0 {
		return "", nil, nil
	}
	var (
		parts []string
		args  []any
		idx   = startIdx
	)
	for _, clause := range clauses {
		switch clause.Column {
		case "id", store.CompanyColumn:
			parts = append(parts, fmt.Sprintf("%s = $%d", clause.Column, idx))
			args = append(args, clause.Value)
		default:
			if !identPattern.MatchString(clause.Column) {
				return "", nil, fmt.Errorf("store: invalid filter column %q", clause.Column)
			}
			parts = append(parts, fmt.Sprintf("payload->>'%s' = $%d", clause.Column, idx))
			args = append(args, fmt.Sprint(clause.Value))
		}
		idx++
	}
	return " where " + strings.Join(parts, " and "), args, nil
}

func scanRecord(row interface{ Scan(...any) error }) (store.Record, error) {
	var (
		id, company string
		payload     []byte
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &company, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	record := store.Record{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	record["id"] = id
	record[store.CompanyColumn] = company
	record["created_at"] = createdAt
	record["updated_at"] = updatedAt
	return record, nil
}

func collectRecords(rows *sql.Rows) ([]store.Record, error) {
	var result []store.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
