// Package http provides the audarr HTTP server: a chi router carrying the
// raw stream routes and a huma API for the JSON operations.
package http

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/audarr/internal/config"
	"github.com/jmylchreest/audarr/internal/http/middleware"
)

// Server couples a chi router with a huma API and owns the lifecycle of the
// underlying net/http server.
type Server struct {
	cfg    config.ServerConfig
	router *chi.Mux
	api    huma.API
	srv    *http.Server
	logger *slog.Logger
}

// NewServer assembles the middleware chain and the huma API. The version
// string ends up in the OpenAPI document. Zero cfg fields fall back to the
// config package defaults, so a bare config.ServerConfig{} yields a usable
// server; a zero write timeout stays unlimited.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	version = cmp.Or(version, "dev")
	cfg.Host = cmp.Or(cfg.Host, "0.0.0.0")
	cfg.Port = cmp.Or(cfg.Port, 8080)
	cfg.ReadTimeout = cmp.Or(cfg.ReadTimeout, 30*time.Second)
	cfg.IdleTimeout = cmp.Or(cfg.IdleTimeout, 2*time.Minute)
	cfg.ShutdownTimeout = cmp.Or(cfg.ShutdownTimeout, 10*time.Second)

	router := chi.NewRouter()

	// No response compression: the payloads that matter are already
	// compressed audio, and buffering would break stream pacing.
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	// Docs are served by a dedicated handler, so huma's built-in docs page
	// is disabled. The OpenAPI document itself stays on /openapi.yaml.
	humaConfig := huma.DefaultConfig("audarr API", version)
	humaConfig.Info.Description = "Caching audio transcoder API"
	humaConfig.DocsPath = ""

	return &Server{
		cfg:    cfg,
		router: router,
		api:    humachi.New(router, humaConfig),
		srv: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// API returns the huma API for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router for routes that bypass huma.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server draining",
		slog.Duration("timeout", s.cfg.ShutdownTimeout),
	)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// gracefully. It blocks until the server has stopped.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errc:
		return err
	}
}
