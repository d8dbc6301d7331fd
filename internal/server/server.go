// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: config and Deps come in, and every service,
// handler and middleware is constructed and wired here, in one place.
//
//	cmd/server → config.Load → server.Open (Deps) → server.New → Start
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/handler"
	"github.com/picketly/api/internal/middleware"
	"github.com/picketly/api/internal/service"
)

// ShutdownTimeout is how long in-flight requests get to finish.
const ShutdownTimeout = 30 * time.Second

// Server owns the router and the dependencies it closes on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	deps   *Deps
}

// New wires deps into routes. The Server takes ownership of deps and
// closes them when Run returns.
func New(cfg config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /health                            → liveness
// GET  /metrics                           → Prometheus exposition
// GET  /api/opportunities                 → catalog, ?category=<tag>
// GET  /api/opportunities/{key}/artwork   → artwork visible to the viewer
// GET  /api/me                            → signed-in user, 401 otherwise
// POST /api/promises                      → submit, mails a magic link
// GET  /api/promises/confirm              → consume the link, 303 to thank-you page
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID  tags the request for the log line
//  2. ClientIP   rewrites RemoteAddr to the client address, read from the
//     X-Forwarded-For entries our own proxies appended
//     (TRUSTED_PROXY_HOPS). The rate limiter keys on it.
//  3. Recoverer  turns panics into 500s
//  4. Logger, Metrics  observe the final status
//  5. CORS       answers preflights before any handler runs
func (s *Server) setupRoutes() error {
	d := s.deps

	clientIP, err := middleware.ClientIPStrategy(s.config.TrustedProxyHops)
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.ClientIP(clientIP))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(d.Metrics))
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))

	s.router.Get("/health", handler.HandleHealth)
	s.router.Handle("/metrics", d.Metrics.Handler())

	// Nil interfaces, not typed nils, when JWT_SECRET is unset.
	var (
		sessions auth.SessionVerifier
		tokens   service.TokenIssuer
	)
	if d.Tokens != nil {
		sessions = d.Tokens
		tokens = d.Tokens
	}

	catalogService := service.NewCatalogService(d.Catalog, s.logger)
	artworkService := service.NewArtworkService(s.config, d.Store, s.logger)
	accountService := service.NewAccountService(s.config, d.Store, s.logger)
	promiseService := service.NewPromiseService(s.config, d.Store, d.Limiter, tokens, d.Sender, d.Metrics, s.logger)

	opportunityHandler := handler.NewOpportunityHandler(catalogService, artworkService, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	promiseHandler := handler.NewPromiseHandler(promiseService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalSession(sessions))

		r.Get("/opportunities", opportunityHandler.HandleList)
		r.Get("/opportunities/{key}/artwork", opportunityHandler.HandleArtwork)
		r.Post("/promises", promiseHandler.HandleSubmit)
		r.Get("/promises/confirm", promiseHandler.HandleConfirm)
		r.Get("/me", accountHandler.HandleMe)
	})
	return nil
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. stop accepting connections, wait up to ShutdownTimeout for in-flight
//     requests
//  2. stop the rate-limit sweeper
//  3. close the database pool and Redis client
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.deps.Close(); err != nil {
			s.logger.Error("closing dependencies", slog.String("error", err.Error()))
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if interval := s.config.RateLimit.SweepInterval; interval > 0 {
		go s.deps.Limiter.Run(sweepCtx, interval, s.logger)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(s.config),
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			append([]any{
				slog.Int("port", s.config.Port),
				slog.String("env", s.config.Env),
			}, s.deps.describe(s.config)...)...,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// writeTimeout leaves the slowest request, a submit that runs two queries
// and one SMTP send, time to write its own error response.
func writeTimeout(cfg config.Config) time.Duration {
	budget := 2*cfg.DB.QueryTimeout + cfg.Mail.Timeout + 5*time.Second
	return max(budget, 15*time.Second)
}
