// Package api serves the name service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/generator"
	"github.com/magus-names/magus/pkg/models"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "X-Request-ID"
)

// NameAPI is the service surface the HTTP layer exposes.
type NameAPI interface {
	GenerateNames(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error)
	RandomName(ctx context.Context, culture string, gender models.Gender) (*models.GenerationResponse, error)
	ValidateName(ctx context.Context, name, culture string) (*models.NameValidation, error)
	Cultures() []models.CultureInfo
	InvalidateCulture(ctx context.Context, code string) (int, error)
	CacheStats(ctx context.Context) models.CacheStats
	Ping(ctx context.Context) bool
}

// Server routes HTTP requests to a NameAPI.
type Server struct {
	addr    string
	svc     NameAPI
	metrics http.Handler
	logger  *zap.Logger
	router  chi.Router
}

// New creates a Server. A nil metrics handler leaves /metrics unrouted.
func New(addr string, svc NameAPI, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:    addr,
		svc:     svc,
		metrics: metrics,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog(s.logger))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/names", func(r chi.Router) {
			r.Post("/generate", s.handleGenerate)
			r.Get("/random", s.handleRandom)
			r.Get("/validate/{name}", s.handleValidate)
			r.Get("/cultures", s.handleCultures)
		})
		r.Delete("/cache/cultures/{code}", s.handleInvalidate)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("magus api listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	resp, err := s.svc.GenerateNames(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.svc.RandomName(r.Context(), q.Get("culture"), models.Gender(q.Get("gender")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.ValidateName(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("culture"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCultures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Cultures())
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	n, err := s.svc.InvalidateCulture(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"culture": code, "invalidated": n})
}

type healthResponse struct {
	Status   string            `json:"status"`
	Cache    models.CacheStats `json:"cache"`
	CacheUp  bool              `json:"cache_reachable"`
	Cultures int               `json:"cultures"`
}

// handleHealth always answers 200; a cache outage only degrades the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	up := s.svc.Ping(r.Context())
	status := "ok"
	if !up {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Cache:    s.svc.CacheStats(r.Context()),
		CacheUp:  up,
		Cultures: len(s.svc.Cultures()),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Error(err),
		)
	}
	writeJSONError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownCulture):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrConfiguration):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	var body errorBody
	body.Error.Message = message
	body.Error.Type = "magus_error"
	body.Error.Code = code
	writeJSON(w, code, body)
}

// requestID propagates an inbound X-Request-ID or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", w.Header().Get(requestIDHeader)),
			)
		})
	}
}
