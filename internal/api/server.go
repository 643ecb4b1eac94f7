package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jumpnav/internal/config"
	"jumpnav/internal/metrics"
	"jumpnav/internal/planner"
	"jumpnav/internal/webhooks"
)

type Server struct {
	Planner  *planner.Service
	Notifier *webhooks.Notifier
	Config   config.Config
}

func NewServer(cfg config.Config, p *planner.Service, n *webhooks.Notifier) *Server {
	return &Server{Planner: p, Notifier: n, Config: cfg}
}

// Router wires every endpoint. Handlers read path variables through mux.Vars.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.ReadyHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/algorithms", s.AlgorithmsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/plan", s.PlanHandler).Methods(http.MethodPost)
	v1.HandleFunc("/jobs", s.SubmitJobHandler).Methods(http.MethodPost)
	v1.HandleFunc("/jobs", s.ListJobsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", s.GetJobHandler).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", s.CancelJobHandler).Methods(http.MethodDelete)
	v1.HandleFunc("/jobs/{id}/events", s.JobEventsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}/ws", s.JobWSHandler).Methods(http.MethodGet)
	v1.HandleFunc("/distance/candidates", s.CandidatesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/admin/distance/benchmark", s.BenchmarkHandler).Methods(http.MethodPost)
	v1.HandleFunc("/admin/plan-stats", s.PlanStatsHandler).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/debug/info", s.DebugJSON).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", s.OpenAPIHandler).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", s.OpenAPIJSONHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.DocsHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method, r.URL.Path)
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		code := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}
