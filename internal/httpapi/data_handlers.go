package httpapi

import (
	"net/http"
	"strings"

	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/scoped"
	"mlinzi.dev/internal/store"
)

type bulkRequest struct {
	Operation string         `json:"operation"`
	Records   []store.Record `json:"records,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	Data      store.Record   `json:"data,omitempty"`
}

// scopedStore builds the per-request enforced façade for the actor attached
// to the context.
func (a *API) scopedStore(r *http.Request) (*scoped.Store, error) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		return nil, authz.ErrUnauthenticated
	}
	return scoped.New(actor, a.data, a.eval, a.guard, a.recorder)
}

func (a *API) handleData(w http.ResponseWriter, r *http.Request) {
	if a.data == nil || a.guard == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "data store unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/data/"), "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	table := parts[0]

	sc, err := a.scopedStore(r)
	if err != nil {
		handleAuthzError(w, err)
		return
	}

	switch {
	case len(parts) == 1:
		a.handleCollection(w, r, sc, table)
	case len(parts) == 2 && parts[1] == "bulk":
		a.handleBulk(w, r, sc, table)
	case len(parts) == 2:
		a.handleItem(w, r, sc, table, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	}
}

func (a *API) handleCollection(w http.ResponseWriter, r *http.Request, sc *scoped.Store, table string) {
	switch r.Method {
	case http.MethodGet:
		filter := filterFromQuery(r)
		var (
			records []store.Record
			err     error
		)
		if filter.Len() == 0 {
			records, err = sc.Select(r.Context(), table)
		} else {
			records, err = sc.SelectBy(r.Context(), table, filter)
		}
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusOK, map[string]any{"data": records})
	case http.MethodPost:
		var data store.Record
		if err := decodeJSON(r, &data); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		record, err := sc.Insert(r.Context(), table, data)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusCreated, record)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleItem(w http.ResponseWriter, r *http.Request, sc *scoped.Store, table, id string) {
	switch r.Method {
	case http.MethodGet:
		record, err := sc.SelectOne(r.Context(), table, id)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusOK, record)
	case http.MethodPut:
		var data store.Record
		if err := decodeJSON(r, &data); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		record, err := sc.Update(r.Context(), table, id, data)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusOK, record)
	case http.MethodDelete:
		if err := sc.Delete(r.Context(), table, id); err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleBulk(w http.ResponseWriter, r *http.Request, sc *scoped.Store, table string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	filter := store.Filter{}
	for column, value := range req.Filter {
		filter = filter.Eq(column, value)
	}
	switch req.Operation {
	case "insert":
		if len(req.Records) == 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "records are required")
			return
		}
		records, err := sc.InsertMany(r.Context(), table, req.Records)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusCreated, map[string]any{"data": records})
	case "update":
		if len(req.Data) == 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "data is required")
			return
		}
		records, err := sc.UpdateMany(r.Context(), table, filter, req.Data)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusOK, map[string]any{"data": records})
	case "delete":
		deleted, err := sc.DeleteMany(r.Context(), table, filter)
		if err != nil {
			handleAuthzError(w, err)
			return
		}
		obs.ObserveDecision(true, "")
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "operation must be insert, update or delete")
	}
}

func filterFromQuery(r *http.Request) store.Filter {
	filter := store.Filter{}
	for column, values := range r.URL.Query() {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		filter = filter.Eq(column, values[0])
	}
	return filter
}
