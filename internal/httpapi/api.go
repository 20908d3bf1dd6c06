// Package httpapi is the thin HTTP surface over the authorization core:
// a decision endpoint, a guarded generic data API and company-scoped role
// management.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"mlinzi.dev/internal/audit"
	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/store"
	"mlinzi.dev/internal/tenant"
)

const serviceName = "mlinzi-api"

// ReadyProbe checks readiness, pinging the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// RoleSource persists company-scoped custom role definitions.
type RoleSource interface {
	RoleDefinition(ctx context.Context, companyID, name string) (authz.RoleDefinition, error)
	SaveRoleDefinition(ctx context.Context, companyID string, def authz.RoleDefinition) error
}

// Options wires the API's collaborators. Data, Guard and Roles may be nil;
// the corresponding endpoints then answer 503.
type Options struct {
	Version       string
	Probe         ReadyProbe
	Evaluator     *authz.Evaluator
	Recorder      *audit.Recorder
	Data          store.Store
	Guard         *tenant.Guard
	Roles         RoleSource
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	version  string
	probe    ReadyProbe
	eval     *authz.Evaluator
	recorder *audit.Recorder
	data     store.Store
	guard    *tenant.Guard
	roles    RoleSource
	maxBody  int64
	burst    int
	perSec   int
}

// New builds the API and its routes.
func New(opts Options) (*API, error) {
	if opts.Evaluator == nil {
		return nil, errors.New("httpapi: evaluator is required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("httpapi: audit recorder is required")
	}
	a := &API{
		mux:      http.NewServeMux(),
		version:  opts.Version,
		probe:    opts.Probe,
		eval:     opts.Evaluator,
		recorder: opts.Recorder,
		data:     opts.Data,
		guard:    opts.Guard,
		roles:    opts.Roles,
		maxBody:  opts.MaxBodyBytes,
		burst:    opts.RateBurst,
		perSec:   opts.RatePerSecond,
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	if a.burst <= 0 {
		a.burst = 50
	}
	if a.perSec <= 0 {
		a.perSec = 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/authorize", a.handleAuthorize)
	a.mux.HandleFunc("/v1/data/", a.handleData)
	a.mux.HandleFunc("/v1/roles/", a.handleRoles)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return a, nil
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, a.burst, a.perSec)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
