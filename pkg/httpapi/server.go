// Package httpapi exposes the document service as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/pdftext"
)

// Defaults.
const (
	DefaultMaxUploadSize = 32 << 20
	DefaultUploadRate    = 2 // uploads per second
	DefaultUploadBurst   = 10
)

// Enqueuer schedules checks asynchronously. processor.Processor satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, documentID string) (core.Check, error)
}

// Server serves the HTTP API.
type Server struct {
	svc       *core.Service
	queue     Enqueuer
	logger    *slog.Logger
	limiter   *rate.Limiter
	maxUpload int64
	state     func() any
	metrics   *Metrics
	registry  *prometheus.Registry
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithQueue runs checks through an asynchronous queue. Without one, uploads
// are checked before the response is sent.
func WithQueue(q Enqueuer) Option {
	return func(s *Server) { s.queue = q }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUploadLimit sets the upload rate (per second) and burst.
func WithUploadLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxUploadSize caps the request body of uploads in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithState sets the provider behind GET /api/state.
func WithState(fn func() any) Option {
	return func(s *Server) { s.state = fn }
}

// WithRegistry registers the API metrics in reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New creates a Server.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter:   rate.NewLimiter(rate.Limit(DefaultUploadRate), DefaultUploadBurst),
		maxUpload: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = svc.State
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry)
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	s.handle(mux, "GET /api/reports", "list_reports", s.listReports)
	s.handle(mux, "POST /api/reports", "upload_reports", s.uploadReports)
	s.handle(mux, "DELETE /api/reports", "delete_reports", s.deleteAll)
	s.handle(mux, "GET /api/reports/{id}", "get_report", s.getReport)
	s.handle(mux, "DELETE /api/reports/{id}", "delete_report", s.deleteReport)
	s.handle(mux, "PUT /api/reports/{id}/cloud", "mark_cloud", s.markCloud)
	s.handle(mux, "GET /api/reports/{id}/related", "related_reports", s.relatedReports)
	s.handle(mux, "GET /api/reports/{id}/original", "original_report", s.originalReport)
	s.handle(mux, "POST /api/reports/{id}/checks", "create_check", s.createCheck)
	s.handle(mux, "GET /api/checks/{id}", "get_check", s.getCheck)
	s.handle(mux, "POST /api/cloud/scan", "cloud_scan", s.cloudScan)
	s.handle(mux, "POST /api/cloud/sync", "cloud_sync", s.cloudSync)
	s.handle(mux, "GET /api/diff", "diff", s.diff)
	s.handle(mux, "GET /api/state", "state", s.getState)

	for _, path := range []string{
		"/api/reports", "/api/reports/{id}", "/api/reports/{id}/cloud",
		"/api/reports/{id}/related", "/api/reports/{id}/original", "/api/reports/{id}/checks",
		"/api/checks/{id}", "/api/cloud/scan", "/api/cloud/sync", "/api/diff", "/api/state",
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	}
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux = mux
}

// apiHandler returns an error that is mapped to a status code and message.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(mux *http.ServeMux, pattern, route string, h apiHandler) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if err := h(rec, r); err != nil {
			status, msg := s.mapError(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error("request failed", "route", route, "error", err)
			} else {
				s.logger.Debug("request rejected", "route", route, "status", status, "error", err)
			}
			writeError(rec, status, msg)
		}
		s.metrics.observe(route, rec.status, time.Since(start))
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// statusError carries an explicit status code and client-facing message.
type statusError struct {
	status int
	msg    string
	err    error
}

func (e *statusError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *statusError) Unwrap() error { return e.err }

func httpError(status int, msg string, err error) error {
	return &statusError{status: status, msg: msg, err: err}
}

func (s *Server) mapError(err error) (int, string) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, se.msg
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrEmptyID), errors.Is(err, core.ErrEmptyText),
		errors.Is(err, core.ErrInvalidCloudLink), errors.Is(err, core.ErrCloudScan):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pdftext.ErrNoText):
		return http.StatusBadRequest, "could not extract text from PDF"
	case errors.Is(err, pdftext.ErrUnreadable):
		return http.StatusBadRequest, "unreadable PDF"
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, core.ErrUnsupported):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
