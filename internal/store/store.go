// Package store defines the generic data-access interface the authorization
// layer wraps, plus the structured filter type it injects company clauses
// into. Implementations live in subpackages (store/pg).
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("store: record not found")
	ErrUnknownTable = errors.New("store: unknown table")
)

// CompanyColumn is the tenant-ownership column every record carries.
const CompanyColumn = "company_id"

// Record is one row as a flat column→value map. The id, company_id and
// timestamp columns are materialized alongside the payload fields.
type Record map[string]any

// Company returns the record's owning company, if set.
func (r Record) Company() string {
	v, _ := r[CompanyColumn].(string)
	return v
}

// ID returns the record's identifier, if set.
func (r Record) ID() string {
	v, _ := r["id"].(string)
	return v
}

// Store is the generic CRUD interface over tenant tables. Implementations
// validate table names against an allow-list and never interpolate caller
// input into SQL identifiers.
type Store interface {
	Select(ctx context.Context, table string) ([]Record, error)
	SelectOne(ctx context.Context, table, id string) (Record, error)
	SelectBy(ctx context.Context, table string, filter Filter) ([]Record, error)
	Insert(ctx context.Context, table string, data Record) (Record, error)
	InsertMany(ctx context.Context, table string, data []Record) ([]Record, error)
	Update(ctx context.Context, table, id string, data Record) (Record, error)
	UpdateMany(ctx context.Context, table string, filter Filter, data Record) ([]Record, error)
	Delete(ctx context.Context, table, id string) error
	DeleteMany(ctx context.Context, table string, filter Filter) (int64, error)
}
