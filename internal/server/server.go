// Package server exposes the decision loop and thread store over HTTP.
// Decision turns stream to clients as server-sent events.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tambo-ai/tambo-go/internal/loop"
	"github.com/tambo-ai/tambo-go/internal/storage"
)

type Server struct {
	Router *chi.Mux
	Port   int

	logger       *slog.Logger
	store        storage.ThreadStore
	driver       *loop.Driver
	instructions string
}

// Option configures a Server.
type Option func(*Server)

// WithCustomInstructions sets the instructions appended to every turn's
// system prompt.
func WithCustomInstructions(instructions string) Option {
	return func(s *Server) { s.instructions = instructions }
}

// New assembles the router and middleware chain.
func New(port int, logger *slog.Logger, store storage.ThreadStore, driver *loop.Driver, opts ...Option) *Server {
	s := &Server{
		Port:   port,
		logger: logger,
		store:  store,
		driver: driver,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "tambod")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1/threads", func(r chi.Router) {
		r.Post("/", s.handleCreateThread)
		r.Get("/", s.handleListThreads)
		r.Get("/{threadID}", s.handleGetThread)
		r.Get("/{threadID}/messages", s.handleGetMessages)
		r.Post("/{threadID}/advance", s.handleAdvance)
	})

	s.Router = r
	return s
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return srv.ListenAndServe()
}
