// Package pg implements the generic tenant store, the audit store and the
// role-definition store on PostgreSQL.
package pg

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mlinzi.dev/internal/store"
)

// tenantTables is the allow-list of tables the generic CRUD interface may
// touch. Table names from callers are looked up here and never interpolated
// directly into SQL.
var tenantTables = map[string]bool{
	"quotations":      true,
	"invoices":        true,
	"payments":        true,
	"customers":       true,
	"suppliers":       true,
	"materials":       true,
	"inventory_items": true,
	"drivers":         true,
	"vehicles":        true,
	"deliveries":      true,
}

// identPattern constrains filter column names that reach payload lookups.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store is the PostgreSQL-backed implementation.
type Store struct {
	db *sql.DB
}

// Open connects with the pgx stdlib driver and tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) table(name string) (string, error) {
	if !tenantTables[name] {
		return "", fmt.Errorf("%w: %s", store.ErrUnknownTable, name)
	}
	return name, nil
}
