// Package api provides the HTTP REST surface of reconengine. It exposes the
// scan engine, the report history and the operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/cyberdash/reconengine/docs"
	apihandlers "github.com/cyberdash/reconengine/internal/api/handlers"
	"github.com/cyberdash/reconengine/internal/api/middleware"
	"github.com/cyberdash/reconengine/internal/config"
	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
	"github.com/cyberdash/reconengine/internal/slots"
)

const maxHeaderBytes = 1 << 20

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	scanner    apihandlers.Scanner
	store      *db.Store
	schedules  apihandlers.ScheduleLister
	slots      *slots.Limiter
	metrics    *metrics.PrometheusMetrics
	logger     *logging.Logger
	version    string
	startTime  time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithSchedules exposes the state of scheduled scans.
func WithSchedules(l apihandlers.ScheduleLister) Option {
	return func(s *Server) { s.schedules = l }
}

// New creates a new API server instance. store is nil when report history is
// disabled; pm is nil when metrics are disabled.
func New(
	cfg *config.Config,
	scanner apihandlers.Scanner,
	store *db.Store,
	pm *metrics.PrometheusMetrics,
	logger *logging.Logger,
	version string,
	opts ...Option,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		scanner:   scanner,
		store:     store,
		slots:     slots.New(cfg.API.MaxConcurrentScans),
		metrics:   pm,
		logger:    logger.WithComponent("api"),
		version:   version,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           cfg.APIAddress(),
		Handler:        s.setupMiddleware(),
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	return s, nil
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
		"history_enabled", s.store != nil,
		"metrics_enabled", s.metrics != nil)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	timeout := s.config.API.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	_ = s.slots.Close()

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// A nil *db.Store must reach the handlers as a nil interface.
	var reports apihandlers.ReportStore
	var pinger apihandlers.DatabasePinger
	if s.store != nil {
		reports = s.store
		pinger = s.store
	}

	scanner := apihandlers.NewScannerHandler(
		s.scanner, reports, s.slots, s.logger, s.config.API.ScanTimeout, s.config.API.MaxRequestSize)
	health := apihandlers.NewHealthHandler(pinger, s.slots, s.logger, s.version)
	schedules := apihandlers.NewSchedulesHandler(s.schedules)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	scans := api.PathPrefix("/scanner").Subrouter()
	scans.HandleFunc("/scan", scanner.Scan).Methods(http.MethodPost)
	scans.HandleFunc("/quick", scanner.QuickScan).Methods(http.MethodPost)
	scans.HandleFunc("/ports", scanner.Ports).Methods(http.MethodGet)
	scans.HandleFunc("/history", scanner.History).Methods(http.MethodGet)
	scans.HandleFunc("/history/{id}", scanner.Report).Methods(http.MethodGet)
	scans.HandleFunc("/schedules", schedules.List).Methods(http.MethodGet)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.config.API.DocsEnabled {
		docs.SwaggerInfo.Version = s.version
		s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("none"),
		)).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
}

// setupMiddleware builds the handler chain. Route-aware middleware is
// attached to the router; the rest wraps it.
func (s *Server) setupMiddleware() http.Handler {
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.ContentType())

	var h http.Handler = s.router
	h = handlers.CompressHandler(h)

	cors := s.config.API.CORS
	if cors.Enabled {
		h = handlers.CORS(
			handlers.AllowedOrigins(cors.AllowedOrigins),
			handlers.AllowedMethods(cors.AllowedMethods),
			handlers.AllowedHeaders(cors.AllowedHeaders),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(h)
	}

	h = middleware.Logging(s.logger)(h)
	h = middleware.Recovery(s.logger)(h)
	return middleware.RequestID()(h)
}

// index describes the service for requests to the root path.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":    "/api/v1/health",
		"scan":      "/api/v1/scanner/scan",
		"quick":     "/api/v1/scanner/quick",
		"ports":     "/api/v1/scanner/ports",
		"schedules": "/api/v1/scanner/schedules",
	}
	if s.store != nil {
		endpoints["history"] = "/api/v1/scanner/history"
	}
	if s.metrics != nil && s.config.Metrics.Enabled {
		endpoints["metrics"] = s.config.Metrics.Path
	}
	if s.config.API.DocsEnabled {
		endpoints["docs"] = "/swagger/index.html"
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service":   "reconengine",
		"version":   s.version,
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, map[string]any{
		"success":   false,
		"message":   "Endpoint not found",
		"code":      "NOT_FOUND",
		"requestId": middleware.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Handler returns the full handler chain including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}
