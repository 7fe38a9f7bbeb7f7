// Package server defines the core Server struct that composes the app's main dependencies.
//
// It contains the initialization logic to spin up the HTTP server
// and handles graceful shutdowns
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - the LaTeX renderer and the headless-browser rasterizer
//   - the prometheus registry
//   - http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/render-api/internal/config"
	"github.com/deppfellow/render-api/internal/metrics"
	"github.com/deppfellow/render-api/internal/render"
	"github.com/deppfellow/render-api/internal/render/latex"
	"github.com/deppfellow/render-api/internal/render/raster"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/render-api/internal/logger"
)

// MetricsNamespace prefixes every prometheus metric the service exports.
const MetricsNamespace = "render_api"

// newRelicShutdownTimeout bounds the final flush of New Relic data.
const newRelicShutdownTimeout = 10 * time.Second

// Server is the application container that holds shared resources.
//
// It is not the HTTP server itself. It holds:
//   - the config
//   - the logger(s)
//   - the renderer backends
//   - the metrics registry
//   - an internal *http.Server used to listen and serve requests
type Server struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application instance.
	// If New Relic is disabled, this may exist but contain nil nrApp.
	LoggerService *loggerPkg.LoggerService

	// Markup renders LaTeX to HTML/MathML.
	Markup render.MarkupRenderer

	// Raster renders HTML to images. Nil when render.image.enabled is false.
	Raster render.Rasterizer

	// Metrics is the prometheus registry shared by the dispatcher and services.
	Metrics *metrics.Metrics

	// httpServer is the standard library HTTP server instance.
	// It is configured in SetupHTTPServer and started in Start().
	httpServer *http.Server
}

// New constructs a Server and initializes core dependencies.
//
// It does NOT start the HTTP server directly. That is done in SetupHTTPServer + Start.
// The rasterizer does not start a browser here either; it launches one on first use.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	server := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		Markup:        latex.New(),
		Metrics:       metrics.New(MetricsNamespace),
	}

	if cfg.Render.Image.Enabled {
		rasterLogger := logger.With().Str("component", "rasterizer").Logger()
		server.Raster = raster.New(raster.Config{
			ControlURL:    cfg.Render.Image.ControlURL,
			BrowserBin:    cfg.Render.Image.BrowserBin,
			NoSandbox:     cfg.Render.Image.NoSandbox,
			DefaultWidth:  cfg.Render.Image.DefaultWidth,
			DefaultHeight: cfg.Render.Image.DefaultHeight,
		}, &rasterLogger)
	}

	return server, nil
}

// SetupHTTPServer configures the internal net/http server.
//
// The actual router/mux is passed in as handler.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:    ":" + s.Config.Server.Port,
		Handler: handler,

		// Config stores int values, interpreted here as seconds.
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start runs the HTTP server. It blocks until the server stops.
//
// It requires SetupHTTPServer to be called first.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Str("prefix", s.Config.API.Prefix).
		Bool("image_enabled", s.Raster != nil).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its dependencies.
//
// It attempts to:
//   - stop HTTP server (finish inflight requests until ctx deadline)
//   - close the rasterizer's browser
//   - flush New Relic
//
// Every step runs even if an earlier one fails; the first error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	if closer, ok := s.Raster.(render.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close rasterizer: %w", err)
		}
	}

	s.LoggerService.Shutdown(newRelicShutdownTimeout)

	return firstErr
}
