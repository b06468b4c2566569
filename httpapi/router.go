// Package httpapi exposes reports, saved query results and streaming
// report generation over HTTP.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunara/reportmesh/dataset"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/observability"
	"github.com/lunara/reportmesh/report"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// Options configures the router.
type Options struct {
	// DefaultUserID is used when a request has no UserHeader.
	DefaultUserID string
	Logger        logging.Logger
	Metrics       *observability.Metrics
	// Gatherer backs /metrics. Nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
}

type handlers struct {
	engine   *report.Engine
	reports  report.Repository
	datasets dataset.Store
	opts     Options

	// lastReport remembers the report each user generated last, so that
	// moving to another report starts a fresh session.
	mu         sync.Mutex
	lastReport map[string]int64
}

// NewRouter wires every endpoint onto a ServeMux.
func NewRouter(engine *report.Engine, reports report.Repository, datasets dataset.Store, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		DefaultUserID: "default_user",
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	h := &handlers{
		engine:     engine,
		reports:    reports,
		datasets:   datasets,
		opts:       opts,
		lastReport: map[string]int64{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /v1/reports", h.handleReportList)
	mux.HandleFunc("POST /v1/reports", h.handleReportCreate)
	mux.HandleFunc("GET /v1/reports/{id}", h.handleReportGet)
	mux.HandleFunc("PATCH /v1/reports/{id}", h.handleReportUpdate)
	mux.HandleFunc("DELETE /v1/reports/{id}", h.handleReportDelete)
	mux.HandleFunc("POST /v1/reports/{id}/generate", h.handleGenerate)
	mux.HandleFunc("GET /v1/datasets", h.handleDatasetList)
	mux.HandleFunc("POST /v1/datasets", h.handleDatasetSave)
	mux.HandleFunc("GET /v1/datasets/{id}", h.handleDatasetGet)

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return instrument(mux, opts.Metrics, opts.Logger)
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) userID(r *http.Request) string {
	if id := r.Header.Get(UserHeader); id != "" {
		return id
	}

	return h.opts.DefaultUserID
}

// switched records reportID as the user's current report and reports
// whether it differs from the previous one.
func (h *handlers) switched(userID string, reportID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.lastReport[userID]
	h.lastReport[userID] = reportID

	return ok && prev != reportID
}
