package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mlinzi.dev/internal/audit"
	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/store"
	"mlinzi.dev/internal/tenant"
)

// memStore is a map-backed store.Store and tenant.CompanySource for handler
// tests.
type memStore struct {
	mu     sync.Mutex
	nextID int
	tables map[string]map[string]store.Record
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]map[string]store.Record)}
}

func (m *memStore) seed(table string, records ...store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]store.Record)
	}
	for _, r := range records {
		m.tables[table][r.ID()] = r
	}
}

func (m *memStore) Select(_ context.Context, table string) ([]store.Record, error) {
	return m.SelectBy(context.Background(), table, store.Filter{})
}

func (m *memStore) SelectOne(_ context.Context, table, id string) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func (m *memStore) SelectBy(_ context.Context, table string, filter store.Filter) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, record := range m.tables[table] {
		if matches(record, filter) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, table string, data store.Record) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]store.Record)
	}
	record := make(store.Record, len(data))
	for k, v := range data {
		record[k] = v
	}
	if record.ID() == "" {
		m.nextID++
		record["id"] = fmt.Sprintf("rec-%d", m.nextID)
	}
	m.tables[table][record.ID()] = record
	return record, nil
}

func (m *memStore) InsertMany(ctx context.Context, table string, data []store.Record) ([]store.Record, error) {
	out := make([]store.Record, 0, len(data))
	for _, record := range data {
		inserted, err := m.Insert(ctx, table, record)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, table, id string, data store.Record) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for k, v := range data {
		record[k] = v
	}
	return record, nil
}

func (m *memStore) UpdateMany(_ context.Context, table string, filter store.Filter, data store.Record) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, record := range m.tables[table] {
		if !matches(record, filter) {
			continue
		}
		for k, v := range data {
			record[k] = v
		}
		out = append(out, record)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table][id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tables[table], id)
	return nil
}

func (m *memStore) DeleteMany(_ context.Context, table string, filter store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, record := range m.tables[table] {
		if matches(record, filter) {
			delete(m.tables[table], id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CompanyOf(_ context.Context, table, recordID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tables[table][recordID]
	if !ok {
		return "", tenant.ErrNotFound
	}
	return record.Company(), nil
}

func matches(record store.Record, filter store.Filter) bool {
	for _, clause := range filter.Clauses() {
		if fmt.Sprint(record[clause.Column]) != fmt.Sprint(clause.Value) {
			return false
		}
	}
	return true
}

// memRoles is a map-backed RoleSource.
type memRoles struct {
	mu   sync.Mutex
	defs map[string]authz.RoleDefinition
}

func newMemRoles() *memRoles {
	return &memRoles{defs: make(map[string]authz.RoleDefinition)}
}

func (m *memRoles) RoleDefinition(_ context.Context, companyID, name string) (authz.RoleDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[companyID+"/"+name]
	if !ok {
		return authz.RoleDefinition{}, store.ErrNotFound
	}
	return def, nil
}

func (m *memRoles) SaveRoleDefinition(_ context.Context, companyID string, def authz.RoleDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[companyID+"/"+def.Name] = def
	return nil
}

type testEnv struct {
	api     *API
	handler http.Handler
	data    *memStore
	roles   *memRoles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	eval, err := authz.NewEvaluator(authz.DefaultCatalog(), authz.AllowUnmapped)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	data := newMemStore()
	guard, err := tenant.NewGuard(data)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	roles := newMemRoles()
	api, err := New(Options{
		Version:   "test",
		Evaluator: eval,
		Recorder:  audit.NewRecorder(nil),
		Data:      data,
		Guard:     guard,
		Roles:     roles,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{api: api, handler: api.Handler(), data: data, roles: roles}
}

func bearerToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func activeClaims(role, company string) map[string]any {
	return map[string]any{
		"sub":        "u-1",
		"email":      "u@acme.example",
		"role":       role,
		"company_id": company,
		"status":     "active",
	}
}

func doRequest(env *testEnv, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	code, _ := body["code"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != serviceName || body["version"] != "test" {
		t.Fatalf("body = %v", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	token := bearerToken(t, activeClaims("admin", "co-a"))
	rec := doRequest(env, http.MethodGet, "/v1/nope", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
