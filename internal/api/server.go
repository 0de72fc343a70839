// Package api is the runtime's HTTP surface: triggering activations,
// inspecting registry/state/templates/journal, and streaming execution
// events over SSE.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cascadekit/cascade/internal/dispatch"
	"github.com/cascadekit/cascade/internal/events"
	"github.com/cascadekit/cascade/internal/journal"
	"github.com/cascadekit/cascade/internal/pipeline"
	"github.com/cascadekit/cascade/internal/queue"
	"github.com/cascadekit/cascade/internal/state"
)

//go:generate mockgen -destination=mocks/mock_deps.go -package=mocks github.com/cascadekit/cascade/internal/api Executor,JournalReader

// Executor runs command activations. *dispatch.Dispatcher satisfies it.
type Executor interface {
	Execute(req dispatch.Request) (*queue.Pending, error)
	Reset() int
}

// RegistryReader exposes the registered command surface.
type RegistryReader interface {
	Prefixes() []string
	Len() int
}

// StateReader exposes recorded lifecycle pairs.
type StateReader interface {
	Snapshot() map[string]state.Lifecycle
}

// TemplateReader exposes the loaded pipeline templates.
type TemplateReader interface {
	All() []*pipeline.Template
}

// JournalReader exposes the execution log.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Get(ctx context.Context, id string) (*journal.Entry, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the single bearer token; empty disables every
	// authenticated route.
	APIKey string
}

// Deps are the runtime components the server reads from and drives.
type Deps struct {
	Executor  Executor
	Registry  RegistryReader
	States    StateReader
	Templates TemplateReader
	Journal   JournalReader
	Hub       *events.Hub
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates an API server.
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("api server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// routes configures the HTTP router.
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Route("/v1", func(r chi.Router) {
			r.Post("/execute", s.handleExecute)
			r.Get("/registry", s.handleRegistry)
			r.Get("/state", s.handleState)
			r.Get("/templates", s.handleTemplates)
			r.Get("/journal", s.handleJournalRecent)
			r.Get("/journal/{executionID}", s.handleJournalGet)
			r.Post("/reset", s.handleReset)
			r.Get("/events", s.handleEvents)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
