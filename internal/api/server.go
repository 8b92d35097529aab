// Package api provides the HTTP server of the prediction service: the
// coordinate and biomass prediction endpoints, health, and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/sargazo/sargazo-predictor/internal/api/middleware"
	"github.com/sargazo/sargazo-predictor/internal/app"
	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/observability"
)

// DefaultShutdownTimeout applies when settings leave the shutdown timeout unset.
const DefaultShutdownTimeout = 10 * time.Second

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Server is the HTTP server of the prediction service.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	app      *app.Context
	metrics  *observability.Metrics
	log      logger.Logger

	// Lifecycle management
	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	serveErr error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics sets the observability metrics for the server. It defaults to
// the metrics of the application context.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, appCtx *app.Context, opts ...ServerOption) (*Server, error) {
	if settings == nil {
		return nil, fmt.Errorf("server settings are nil")
	}
	if appCtx == nil {
		return nil, fmt.Errorf("application context is nil")
	}

	s := &Server{
		settings: settings,
		app:      appCtx,
		metrics:  appCtx.Metrics(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	cfg := settings.Server
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", cfg.Address()),
		logger.Bool("metrics", s.serveMetrics()),
		logger.Bool("debug", settings.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	cfg := s.settings.Server

	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, skipPaths("/health", "/metrics")))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP, skipPaths("/metrics")))
	}

	securityConfig := mw.SecurityConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}

	if len(securityConfig.AllowedOrigins) > 0 {
		s.echo.Use(mw.NewCORS(securityConfig))
	}
	if securityConfig.RateLimit > 0 {
		s.echo.Use(mw.NewRateLimiter(securityConfig, skipPaths("/health", "/metrics")))
	}
	if cfg.BodyLimit != "" {
		s.echo.Use(mw.NewBodyLimit(cfg.BodyLimit))
	}

	// promhttp negotiates its own compression
	s.echo.Use(mw.NewGzip(skipPaths("/metrics")))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.POST("/predict", s.predictCoordinates)
	s.echo.POST("/predict/biomass", s.predictBiomass)

	if s.serveMetrics() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// serveMetrics reports whether /metrics is served on the API listener
// rather than on a dedicated metrics endpoint.
func (s *Server) serveMetrics() bool {
	return s.metrics != nil && s.settings.Metrics.Enabled && s.settings.Metrics.Listen == ""
}

func skipPaths(paths ...string) echomw.Skipper {
	return func(c echo.Context) bool {
		p := c.Path()
		if p == "" {
			p = c.Request().URL.Path
		}
		for _, skip := range paths {
			if p == skip {
				return true
			}
		}
		return false
	}
}

// Start binds the configured address and serves in a background goroutine.
// It returns once the listener is bound.
func (s *Server) Start() error {
	return s.StartListener(nil)
}

// StartListener serves on ln, or binds the configured address when ln is nil.
func (s *Server) StartListener(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already started")
	}

	addr := s.settings.Server.Address()
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	}
	s.listener = ln
	s.echo.Listener = ln

	s.wg.Go(func() {
		if err := s.echo.StartServer(s.echo.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.Error(err))
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	})

	s.log.Info("HTTP server started", logger.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StartWithGracefulShutdown starts the server and shuts it down on
// SIGINT/SIGTERM or when ctx is cancelled.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	s.log.Info("shutdown signal received, initiating graceful shutdown")
	return s.Shutdown()
}

// Shutdown gracefully stops the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown() error {
	timeout := s.settings.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.wg.Wait()

	s.mu.Lock()
	err := s.serveErr
	s.mu.Unlock()

	s.log.Info("server shutdown complete")
	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Routes lists the registered method and path pairs, for startup logging.
func (s *Server) Routes() []string {
	routes := s.echo.Routes()
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, strings.TrimSpace(r.Method+" "+r.Path))
	}
	return out
}
