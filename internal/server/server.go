// Package server exposes the daemon HTTP API: network lifecycle, service
// status, log streaming and transaction submission.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chainpad/internal/config"
	"chainpad/internal/constants"
	"chainpad/internal/db"
	"chainpad/internal/logger"
	"chainpad/internal/network"
)

// Config holds the server configuration
type Config struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// CORS settings
	AllowOrigins []string `toml:"allow_origins"`
	AllowHeaders []string `toml:"allow_headers"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            constants.DefaultServerPort,
		ReadTimeout:     constants.DefaultServerReadTimeout,
		WriteTimeout:    constants.DefaultServerWriteTimeout,
		ShutdownTimeout: constants.DefaultServerShutdownTimeout,
		AllowOrigins:    []string{"*"},
		AllowHeaders:    []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Server is the daemon HTTP server
type Server struct {
	config    *Config
	configMgr *config.Manager
	echo      *echo.Echo
	network   *network.Manager
	db        *db.DB
	startTime time.Time
}

// New creates a server wired to a network manager and database. db may be
// nil when running without persistence.
func New(cfg *Config, configMgr *config.Manager, netMgr *network.Manager, database *db.DB) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	return &Server{
		config:    cfg,
		configMgr: configMgr,
		echo:      e,
		network:   netMgr,
		db:        database,
		startTime: time.Now(),
	}
}

// Echo returns the Echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Handler returns the HTTP handler with middleware and routes installed
func (s *Server) Handler() http.Handler {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}

// Start starts the server and blocks until a signal or context cancellation
func (s *Server) Start(ctx ...context.Context) error {
	var shutdownCtx context.Context
	if len(ctx) > 0 {
		shutdownCtx = ctx[0]
	} else {
		shutdownCtx = context.Background()
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logger.WithFields(logger.Fields{"addr": addr}).Info("Starting daemon API")

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		logger.Info("Shutting down server...")
	case <-shutdownCtx.Done():
		logger.Info("Context cancelled, shutting down server...")
	}

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownTimeout); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Best-effort network teardown so no containers outlive the daemon
	if s.network.Status().Running {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.network.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Network teardown during shutdown reported errors")
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(logger.RequestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.config.AllowOrigins,
		AllowHeaders: s.config.AllowHeaders,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	s.echo.Use(contextEnricher(s.configMgr))
}
