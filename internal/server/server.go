// ABOUTME: Server orchestrator wiring store, provider, sessions, relay, and hub
// ABOUTME: Owns the HTTP listener lifecycle and graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/parley/internal/broadcast"
	"github.com/2389/parley/internal/catalog"
	"github.com/2389/parley/internal/config"
	"github.com/2389/parley/internal/metrics"
	"github.com/2389/parley/internal/provider"
	"github.com/2389/parley/internal/reaper"
	"github.com/2389/parley/internal/relay"
	"github.com/2389/parley/internal/session"
	"github.com/2389/parley/internal/store"
)

// Server coordinates the broker's components: the persistent store,
// the upstream provider client, the session manager, the relay, the
// viewer hub, and the idle reaper.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	client   provider.Client
	registry *session.Registry
	manager  *session.Manager
	relay    *relay.Relay
	hub      *broadcast.Hub
	reaper   *reaper.Reaper
	catalog  *catalog.Catalog
	metrics  *metrics.Metrics

	httpServer *http.Server

	// baseCtx parents every streaming turn so in-flight replies are
	// cancelled on shutdown, not when the originating request ends.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New builds a server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	client := provider.NewAnthropicClient(cfg.Provider.APIKey, logger)
	return newWithDeps(cfg, logger, st, client, cat), nil
}

// newWithDeps wires the server around injected dependencies. Tests use
// this to swap in a mock provider and an in-memory store.
func newWithDeps(cfg *config.Config, logger *slog.Logger, st store.Store, client provider.Client, cat *catalog.Catalog) *Server {
	registry := session.NewRegistry()
	manager := session.NewManager(client, registry, logger, session.Options{
		IdleTimeout:        cfg.Sessions.IdleTimeout,
		MaxHistoryMessages: cfg.Sessions.MaxHistoryMessages,
		MaxTokens:          cfg.Provider.MaxTokens,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		logger:     logger.With("component", "server"),
		store:      st,
		client:     client,
		registry:   registry,
		manager:    manager,
		relay:      relay.New(manager, logger),
		hub:        broadcast.NewHub(logger),
		reaper:     reaper.New(manager, cfg.Sessions.SweepInterval, logger),
		catalog:    cat,
		metrics:    metrics.New(),
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the reaper and serves HTTP until ctx is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.reaper.Start(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown with a fresh context and timeout. The
// original context is already cancelled by the time this runs.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server, the reaper, and every live session,
// then closes the hub and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown: %w", err)
	}

	s.reaper.Stop()
	s.cancelBase()
	s.destroyAllSessions(ctx)

	s.hub.Close()

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("store close: %w", err)
	}

	s.logger.Info("shutdown complete")
	return firstErr
}

func (s *Server) destroyAllSessions(ctx context.Context) {
	for _, sess := range s.registry.List() {
		id := sess.ConversationID()
		if err := s.manager.DestroySession(ctx, id); err != nil {
			s.logger.Warn("session teardown failed", "conversation_id", id, "error", err)
		}
	}
}
