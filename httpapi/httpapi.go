// Package httpapi serves a single Allocator over HTTP. Requests are applied
// to the Allocator one at a time, so each batch, release, and read observes
// a consistent capacity table.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.eventsched.dev/core/allocator"
	"go.eventsched.dev/core/export"
)

// API presents an Allocator over HTTP:
//
//	GET    /sessions                 Snapshot of kinds, sessions, and ledger.
//	GET    /ledger?format=json       Ledger, rendered in any export.Format.
//	POST   /events?policy=by-size    Submit a JSON []EventRequest batch.
//	DELETE /events?index=N           Release the ledger record at index N.
//	DELETE /events?id=ID             Release the ledger record having ID.
//	GET    /debug/ready              Liveness check, returning the API ID.
type API struct {
	// ID of this API instance, returned by /debug/ready.
	ID string

	mu      sync.Mutex
	alloc   *allocator.Allocator
	decoder *schema.Decoder
}

// New returns an API of the Allocator, identified by |id|.
func New(id string, alloc *allocator.Allocator) *API {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	return &API{
		ID:      id,
		alloc:   alloc,
		decoder: decoder,
	}
}

// Register the routes of the API with |mux|.
func (h *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/sessions", h.serveSessions)
	mux.HandleFunc("/ledger", h.serveLedger)
	mux.HandleFunc("/events", h.serveEvents)
	mux.HandleFunc("/debug/ready", h.serveReady)
}

func (h *API) serveSessions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}
	var query struct{}
	if err := h.decodeQuery(r, &query); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *API) serveLedger(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}
	var query struct {
		Format string `schema:"format"`
	}
	var err = h.decodeQuery(r, &query)

	if query.Format == "" {
		query.Format = string(export.JSON)
	}
	var format export.Format
	if err == nil {
		format, err = export.ParseFormat(query.Format)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)

	if err = export.WriteLedger(w, format, h.snapshot()); err != nil {
		log.WithFields(log.Fields{"err": err, "format": format}).Warn("httpapi: failed to write ledger")
	}
}

func (h *API) serveEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		h.serveSubmit(w, r)
	case "DELETE":
		h.serveRelease(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, fmt.Sprintf("unknown method: %s", r.Method), http.StatusMethodNotAllowed)
	}
}

func (h *API) serveSubmit(w http.ResponseWriter, r *http.Request) {
	var query struct {
		Policy string `schema:"policy"`
	}
	var requests []allocator.EventRequest
	var policy allocator.OrderingPolicy

	var err = h.decodeQuery(r, &query)
	if err == nil {
		policy, err = allocator.ParseOrderingPolicy(query.Policy)
	}
	if err == nil {
		var dec = json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		if err = dec.Decode(&requests); err != nil {
			err = errors.WithMessage(err, "decoding request body")
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	outcomes, err := h.alloc.SubmitBatch(requests, policy)
	h.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *API) serveRelease(w http.ResponseWriter, r *http.Request) {
	var query struct {
		Index int    `schema:"index"`
		ID    string `schema:"id"`
	}
	var q, err = url.ParseQuery(r.URL.RawQuery)
	if err == nil {
		err = h.decoder.Decode(&query, q)
	}
	var _, byIndex = q["index"]
	var _, byID = q["id"]

	if err != nil {
		// Pass.
	} else if byIndex && q.Get("index") == "" {
		err = errors.New("index is empty")
	} else if byID && query.ID == "" {
		err = errors.New("id is empty")
	} else if byIndex == byID {
		err = errors.New("expected exactly one of index or id")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var rec allocator.EventRecord
	h.mu.Lock()
	if byIndex {
		rec, err = h.alloc.Release(query.Index)
	} else {
		rec, err = h.alloc.ReleaseID(query.ID)
	}
	h.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *API) serveReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.ID))
}

func (h *API) snapshot() allocator.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alloc.Snapshot()
}

func (h *API) decodeQuery(r *http.Request, dst interface{}) error {
	var q, err = url.ParseQuery(r.URL.RawQuery)
	if err == nil {
		err = h.decoder.Decode(dst, q)
	}
	return err
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, fmt.Sprintf("unknown method: %s", r.Method), http.StatusMethodNotAllowed)
	return false
}

// writeError maps an Allocator error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var invalid *allocator.InvalidRequestError
	var notFound *allocator.NotFoundError

	switch {
	case errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusBadRequest) // 400.
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound) // 404.
	default:
		log.WithField("err", err).Warn("httpapi: unexpected allocator error")
		http.Error(w, err.Error(), http.StatusInternalServerError) // 500.
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("err", err).Warn("httpapi: failed to write response")
	}
}

var contentTypes = map[export.Format]string{
	export.JSON:  "application/json",
	export.YAML:  "application/yaml",
	export.CSV:   "text/csv",
	export.Table: "text/plain; charset=utf-8",
}
