package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"melpower/app"
	"melpower/internal"
	apperrors "melpower/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
)

// Server exposes the power service over HTTP.
type Server struct {
	service *app.PowerService
	router  *chi.Mux
	slots   *semaphore.Weighted
	logger  *internal.Logger
}

// NewServer wires routes. maxConcurrent bounds simultaneous simulations;
// values below 1 mean one at a time.
func NewServer(service *app.PowerService, maxConcurrent int64, logger *internal.Logger) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		service: service,
		router:  chi.NewRouter(),
		slots:   semaphore.NewWeighted(maxConcurrent),
		logger:  logger.With("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limitConcurrency)
			r.Post("/populations", s.handlePopulation)
			r.Post("/experiments", s.handleExperiment)
			r.Post("/treatment-experiments", s.handleTreatmentExperiment)
			r.Post("/power/lux", s.handleLuxPower)
			r.Post("/power/treatment", s.handleTreatmentPower)
		})
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/report", s.handleRunReport)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// limitConcurrency waits for a simulation slot or gives up with the request.
func (s *Server) limitConcurrency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.slots.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusServiceUnavailable, "BUSY", "simulation capacity exhausted")
			return
		}
		defer s.slots.Release(1)
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		internal.DefaultLogger.Warn("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// StatusFor maps an application error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeImplausible, apperrors.CodeSamplingFailed:
		return http.StatusUnprocessableEntity
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := StatusFor(code)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, err.Error())
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.InvalidInput("malformed request body: " + err.Error())
	}
	return nil
}
