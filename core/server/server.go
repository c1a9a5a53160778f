// Package server exposes the build API: job submission, status
// polling, live event streams and artifact download.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atomiq/atomiq/core/infra/config"
	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/infra/metrics"
	"github.com/atomiq/atomiq/core/job"
)

// Runner executes a submitted job. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, opts job.BuildOptions) error
}

// Server wires the HTTP surface to the registry and the pipeline.
type Server struct {
	cfg     *config.Config
	reg     *job.Registry
	runner  Runner
	metrics metrics.ServerMetrics
	started time.Time

	upgrader websocket.Upgrader
}

// New builds a server. Metrics may be nil.
func New(cfg *config.Config, reg *job.Registry, runner Runner, m metrics.ServerMetrics) *Server {
	s := &Server{
		cfg:     cfg,
		reg:     reg,
		runner:  runner,
		metrics: m,
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return s.allowOrigin(r.Header.Get("Origin")) },
	}
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"time": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/build", s.instrumented("/api/build", s.handleBuild))
	mux.HandleFunc("GET /api/jobs/{id}", s.instrumented("/api/jobs/{id}", s.handleGetJob))
	mux.HandleFunc("GET /api/jobs/{id}/events", s.instrumented("/api/jobs/{id}/events", s.handleEvents))
	mux.HandleFunc("GET /api/jobs/{id}/artifact", s.instrumented("/api/jobs/{id}/artifact", s.handleArtifact))
	mux.HandleFunc("GET /ws/jobs/{id}", s.handleJobWS)

	return s.corsMiddleware(mux)
}

// ListenAndServe blocks serving the API on the configured address.
func (s *Server) ListenAndServe() error {
	logging.Info("server", "listening", "addr", s.cfg.ListenAddr)
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("server", "response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack forwards websocket hijacking support to the underlying writer when available.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	return hj.Hijack()
}

// Flush preserves streaming support if the wrapped writer implements it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrumented wraps handlers to record request metrics.
func (s *Server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
		}
	}
}
