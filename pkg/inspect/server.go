// Package inspect serves a live view of a running engine.
//
// A Recorder installed as the engine's observer keeps running totals and
// a bounded History of events. A Server exposes them over HTTP:
//
//	GET  /metrics          Prometheus metrics
//	GET  /debug/stats      running totals as JSON
//	GET  /debug/history    retained events as JSON (?since=N)
//	GET  /debug/events     WebSocket stream of new events (?since=N replays)
//	POST /debug/capture    store a capture through the configured sink
//
// Example:
//
//	rec := inspect.NewRecorder(512)
//	srv := inspect.NewServer(rec, inspect.WithGatherer(reg))
//	go srv.ListenAndServe(ctx, ":7070")
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	perrors "github.com/vango-dev/pulse/internal/errors"
)

// DefaultAddr is the inspector's default listen address.
const DefaultAddr = ":7070"

// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
const ShutdownTimeout = 5 * time.Second

// Server is the inspector HTTP server.
type Server struct {
	recorder *Recorder
	hub      *Hub
	exporter *Exporter
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	tracer   trace.Tracer
	router   chi.Router
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithGatherer sets the registry served on /metrics.
// Default: prometheus.DefaultGatherer
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithExporter enables POST /debug/capture.
func WithExporter(e *Exporter) ServerOption {
	return func(s *Server) {
		s.exporter = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerTracer sets the tracer used for request spans.
func WithServerTracer(tracer trace.Tracer) ServerOption {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewServer creates an inspector for recorder. Events recorded from now
// on are broadcast to WebSocket clients.
func NewServer(recorder *Recorder, opts ...ServerOption) *Server {
	s := &Server{
		recorder: recorder,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "inspect")
	s.hub = NewHub(recorder.History(), s.logger)
	recorder.Subscribe(s.hub.Broadcast)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing(s.tracer))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/debug", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
		r.Handle("/events", s.hub)
		r.Post("/capture", s.handleCapture)
	})
	return r
}

// Handler returns the inspector's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return perrors.New("E402").WithDetailf("listen on %s", addr).Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspector listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return perrors.New("E402").Wrap(err)
		}
		return nil
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
		s.logger.Info("inspector shutdown complete")
		return nil
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Stats
		Clients int    `json:"clients"`
		MaxSeq  uint64 `json:"maxSeq"`
	}{
		Stats:   s.recorder.Stats(),
		Clients: s.hub.ClientCount(),
		MaxSeq:  s.recorder.History().MaxSeq(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		since = n
	}
	events := s.recorder.History().Since(since)
	if events == nil {
		events = []Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNoSink.Error()})
		return
	}
	loc, err := s.exporter.Export(r.Context())
	if err != nil {
		s.logger.Error("capture export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"location": loc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("write response", "error", err)
	}
}
