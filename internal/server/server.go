// Package server implements the HTTP query surface (spec §6): the daemon's
// external interface for the CLI, IDE extensions, and MCP tooling. It wraps
// labstack/echo/v4, following the route-registration and middleware shape
// the evalgo-org-eve example pack repo uses for its own Echo services.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gkg/knowledgegraph/internal/config"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/executor"
	"github.com/gkg/knowledgegraph/internal/metrics"
	"github.com/gkg/knowledgegraph/internal/query"
	"github.com/gkg/knowledgegraph/internal/registry"
)

// Version is stamped into GET /api/info. cmd/gkgd sets this from its own
// build-time version before constructing a Server.
var Version = "dev"

// Server hosts the full spec §6 HTTP surface over one Echo instance.
type Server struct {
	echo *echo.Echo
	cfg  config.ServerConfig

	reg     *registry.Registry
	exec    *executor.Executor
	queries *query.Service
	bus     *eventbus.Bus
	replay  *eventbus.ReplayStore
	metrics *metrics.Registry
}

// New wires every handler group onto a fresh Echo instance. replay may be
// nil, in which case /api/events skips replaying the last event per
// project on subscribe.
func New(cfg config.ServerConfig, reg *registry.Registry, exec *executor.Executor, queries *query.Service, bus *eventbus.Bus, replay *eventbus.ReplayStore, metricsReg *metrics.Registry) *Server {
	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		reg:     reg,
		exec:    exec,
		queries: queries,
		bus:     bus,
		replay:  replay,
		metrics: metricsReg,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(slogRequestLogger())

	s.registerPublicRoutes()

	api := s.echo.Group("/api")
	if cfg.RequireAuth {
		api.Use(bearerAuth(cfg.BearerToken()))
	}
	s.registerWorkspaceRoutes(api)
	s.registerGraphRoutes(api)
	s.registerEventRoutes(api)
	api.GET("/info", s.handleInfo)

	return s
}

// registerPublicRoutes wires the two endpoints that stay reachable without
// a bearer token even when RequireAuth is set (spec §6).
func (s *Server) registerPublicRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promHandler(s.metrics)))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"port":    s.cfg.Port,
		"version": Version,
	})
}

// Listener binds the configured address (TCP or Unix socket) without
// starting to serve, so the caller can report "already in use" before
// forking into the background (spec §6: "if already bound, the binary
// exits with a clear message").
func (s *Server) Listener() (net.Listener, error) {
	if s.cfg.UnixSocket != "" {
		return net.Listen("unix", s.cfg.UnixSocket)
	}
	addr := s.cfg.BindAddr
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := s.cfg.Port
	if port <= 0 {
		port = 27495
	}
	return net.Listen("tcp", addr+":"+strconv.Itoa(port))
}

// Serve blocks accepting connections on ln until ctx is cancelled, then
// drains in-flight requests before returning (spec §5: "allow running jobs
// to reach a safe boundary... release all locks").
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Server.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func slogRequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true, LogURI: true, LogLatency: true, LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				slog.String("method", v.Method), slog.String("uri", v.URI),
				slog.Int("status", v.Status), slog.Duration("latency", v.Latency))
			return nil
		},
	})
}
