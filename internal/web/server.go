// Package web exposes batch progress over HTTP: an SSE event stream plus a
// health endpoint, so a browser or dashboard can watch a long run.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/events"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/web/sse"
)

// Server serves the progress stream for one batch run.
type Server struct {
	httpServer *http.Server
	sseHandler *sse.Handler
	log        *logging.Logger
}

// New creates a server listening on addr, streaming events from bus.
func New(addr string, bus *events.Bus, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	s := &Server{
		sseHandler: sse.NewHandler(bus),
		log:        log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/events", s.sseHandler.ServeHTTP)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: SSE connections are long-lived by design.
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("progress server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains SSE clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.sseHandler.Shutdown(ctx)
	return s.httpServer.Shutdown(ctx)
}
