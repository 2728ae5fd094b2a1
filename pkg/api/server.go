// Package api serves the transactions dashboard over HTTP: the HTML page,
// a JSON state API, the CSV download, and the bank-link callbacks.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"bank-dashboard/pkg/link"
	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/metrics"
	"bank-dashboard/pkg/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides the dashboard HTTP endpoints.
type Server struct {
	store    *store.Store
	flow     *link.Flow
	widget   *link.SessionWidget
	metrics  metrics.MetricsCollector
	registry *prometheus.Registry
	logger   *logging.Logger

	router    *mux.Router
	server    *http.Server
	config    ServerConfig
	startTime time.Time
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string `yaml:"address"`

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:         ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Dependencies are the components the server exposes.
type Dependencies struct {
	Store  *store.Store
	Flow   *link.Flow
	Widget *link.SessionWidget

	// Metrics receives export events (optional)
	Metrics metrics.MetricsCollector

	// Registry backs /metrics and receives the HTTP metrics. A private
	// registry is created when nil.
	Registry *prometheus.Registry

	Logger *logging.Logger
}

// NewServer creates the dashboard server.
func NewServer(deps Dependencies, config ServerConfig) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpCollector{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = logging.L()
	}

	s := &Server{
		store:     deps.Store,
		flow:      deps.Flow,
		widget:    deps.Widget,
		metrics:   deps.Metrics,
		registry:  deps.Registry,
		logger:    deps.Logger.Named("api"),
		config:    config,
		startTime: time.Now(),
	}

	r := mux.NewRouter()
	r.Use(prometheusMiddleware(newHTTPMetrics(deps.Registry)))
	r.Use(s.loggingMiddleware)

	// Dashboard
	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/export/transactions.csv", s.handleExport).Methods(http.MethodGet)

	// Bank link
	r.HandleFunc("/api/link/token", s.handleLinkToken).Methods(http.MethodPost)
	r.HandleFunc("/api/link/{session}/success", s.handleLinkSuccess).Methods(http.MethodPost)
	r.HandleFunc("/api/link/{session}/exit", s.handleLinkExit).Methods(http.MethodPost)

	// Health, status and metrics
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", zap.String("address", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}
