// Package httpapi is the HTTP ingress boundary (spec.md §6): it
// decodes requests, calls into the Task Dispatcher, and encodes
// replies, writing the status code dispatch.HTTPStatus gives for each
// error Kind (the dispatch package itself never imports net/http).
//
// Grounded on TheEntropyCollective-noisefs's cmd/noisefs-webui
// (gorilla/mux router built from a handful of explicit
// router.HandleFunc(path, method) registrations on a struct holding
// the collaborators) and aipilotbyjd-linkflow-ai's logging middleware
// wiring.
package httpapi

import (
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/computejobd/computejobd/internal/dispatch"
	"github.com/computejobd/computejobd/internal/logging"
)

// Server holds every collaborator an HTTP handler needs and exposes
// the wired mux.Router.
type Server struct {
	Dispatcher *dispatch.Dispatcher
	Logger     logging.Logger

	connectionsServed atomic.Int64
	pid               int
}

// NewServer constructs a Server. Call Router to obtain the
// http.Handler to pass to http.Server.
func NewServer(d *dispatch.Dispatcher, logger logging.Logger) *Server {
	return &Server{
		Dispatcher: d,
		Logger:     logger,
		pid:        os.Getpid(),
	}
}

// Router builds the mux.Router wiring every route spec.md §6 and
// SPEC_FULL.md §6 name, wrapped in the request-logging middleware.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/help", s.handleHelp).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/metrics/prom", s.handlePromMetrics().ServeHTTP).Methods(http.MethodGet)

	jobs := router.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("/submit", s.handleJobsSubmit).Methods(http.MethodGet, http.MethodPost)
	jobs.HandleFunc("/status", s.handleJobsStatus).Methods(http.MethodGet)
	jobs.HandleFunc("/result", s.handleJobsResult).Methods(http.MethodGet)
	jobs.HandleFunc("/cancel", s.handleJobsCancel).Methods(http.MethodGet, http.MethodPost)

	// Every other registered task name executes synchronously inline,
	// per spec.md §4.4 / SPEC_FULL.md §9's resolved policy.
	router.HandleFunc("/{task}", s.handleSyncTask).Methods(http.MethodGet, http.MethodPost)

	return logging.HTTPMiddleware(s.Logger)(s.countConnections(router))
}

func (s *Server) countConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.connectionsServed.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePromMetrics() http.Handler {
	return promhttp.HandlerFor(s.Dispatcher.Metrics.Registry(), promhttp.HandlerOpts{})
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.Dispatcher.StartedAt())
}
