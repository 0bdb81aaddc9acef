// Package api provides the HTTP server and handlers for TastingFlow.
//
// It exposes JSON endpoints for listing packages, opening tastings, signing participants in and
// moving their sessions through the tasting steps. Sessions live in a flow.SessionManager; the
// catalog, tastings and submissions live in a store.Store.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/flow"
	"github.com/BTreeMap/TastingFlow/internal/store"
)

// DefaultAPIAddr is the listen address used when none is configured.
const DefaultAPIAddr = ":8080"

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address, e.g. ":8080".
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	st       store.Store
	sessions *flow.SessionManager
	loader   *flow.Loader
	addr     string
}

// NewServer creates a Server. A nil loader reads the catalog from st with default assembly.
func NewServer(st store.Store, sessions *flow.SessionManager, loader *flow.Loader, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAPIAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if loader == nil {
		loader = flow.NewLoader(st, nil)
	}
	return &Server{st: st, sessions: sessions, loader: loader, addr: cfg.Addr}
}

// Handler returns the router with every endpoint registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /packages", s.listPackagesHandler)
	mux.HandleFunc("POST /tastings", s.createTastingHandler)
	mux.HandleFunc("GET /tastings/{code}/submissions", s.listSubmissionsHandler)

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/advance", s.advanceHandler)
	mux.HandleFunc("POST /sessions/{id}/retreat", s.retreatHandler)
	mux.HandleFunc("PUT /sessions/{id}/cursor", s.cursorHandler)
	mux.HandleFunc("PATCH /sessions/{id}/answers/{ordinal}", s.answersHandler)
	mux.HandleFunc("PUT /sessions/{id}/responses/{stepID}", s.responseHandler)
	mux.HandleFunc("PUT /sessions/{id}/package", s.packageHandler)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: listen failed", "error", err, "addr", s.addr)
		return fmt.Errorf("failed to serve on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
