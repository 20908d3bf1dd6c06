// Package audit records authorization-relevant events: permission check
// outcomes, denials and role changes. Recording is fire-and-forget; the
// primary operation's outcome never depends on audit durability.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"mlinzi.dev/internal/ids"
	"mlinzi.dev/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so entries
// can be correlated with the HTTP access log.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one immutable audit record. Entries are appended, never updated
// or deleted by the application.
type Entry struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	RecordID    string         `json:"record_id,omitempty"`
	CompanyID   string         `json:"company_id,omitempty"`
	ActorUserID string         `json:"actor_user_id"`
	ActorEmail  string         `json:"actor_email"`
	Allowed     bool           `json:"allowed"`
	Details     map[string]any `json:"details,omitempty"`
}

// Store appends entries to durable storage.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Recorder writes audit entries. Every entry is mirrored to the shared JSON
// log; when a store is configured the entry is also appended there on a
// detached goroutine. Store failures are logged at warn level and swallowed.
type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTimeout bounds the detached store write.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the timestamp source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder builds a recorder. A nil store is allowed; entries then go to
// the log only.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stamps and dispatches the entry. It never blocks on the store and
// never returns an error: correctness of the guarded operation must not
// depend on the audit write. The dispatch happens before the caller resumes,
// so a denial entry is ordered before any data access is attempted.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	entry.ID = ids.New()
	entry.CreatedAt = r.now()
	if rid := requestIDFromContext(ctx); rid != "" {
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["request_id"] = rid
	}

	r.emit(entry)

	if r.store == nil {
		return
	}
	// Detach from the caller's cancellation: an aborted data operation must
	// not lose the entry for a decision already made.
	writeCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(writeCtx, r.timeout)
		defer cancel()
		if err := r.store.Append(writeCtx, &entry); err != nil {
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "warn",
				"msg":   "audit append failed",
				"error": err.Error(),
				"entry": entry.ID,
			})
		}
	}()
}

// Wait blocks until in-flight store writes finish. Test use only.
func (r *Recorder) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}

// emit writes the entry as one JSON line on the shared logger.
func (r *Recorder) emit(entry Entry) {
	line := map[string]any{
		"ts":    entry.CreatedAt.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": entry.Action,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		obs.LogRequest(line)
		return
	}
	line["entry"] = json.RawMessage(data)
	obs.LogRequest(line)
}
