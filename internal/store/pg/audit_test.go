package pg

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"mlinzi.dev/internal/audit"
)

func TestAppend(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`insert into audit_log`)).
		WithArgs("a-1", at, "invoices.delete", "invoices", "inv-1", "co-a",
			"u-1", "u@acme.example", false, []byte(`{"reason":"tenant_violation"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Append(context.Background(), &audit.Entry{
		ID:          "a-1",
		CreatedAt:   at,
		Action:      "invoices.delete",
		EntityType:  "invoices",
		RecordID:    "inv-1",
		CompanyID:   "co-a",
		ActorUserID: "u-1",
		ActorEmail:  "u@acme.example",
		Allowed:     false,
		Details:     map[string]any{"reason": "tenant_violation"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendNilEntry(t *testing.T) {
	s, _ := newMockStore(t)
	if err := s.Append(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil entry")
	}
}
