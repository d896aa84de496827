package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/scriptbook/internal/application/orchestrator"
	"github.com/aescanero/scriptbook/internal/application/workers"
	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RequestObserver records served requests
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator *orchestrator.Manager
	health       *workers.HealthMonitor
	metrics      ports.MetricsCollector
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	// Health is nil when the interpreter pool runs out of process
	Health   *workers.HealthMonitor
	Metrics  ports.MetricsCollector
	Observer RequestObserver
	Gatherer prometheus.Gatherer
	RunLimit RunLimit
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())
	if cfg.Observer != nil {
		router.Use(requestMetrics(cfg.Observer))
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		health:       cfg.Health,
		metrics:      metrics,
		logger:       cfg.Logger,
	}

	s.setupRoutes(cfg.Gatherer, cfg.RunLimit)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer, limit RunLimit) {
	// Run endpoints share one limiter so run-all counts against the same budget
	run := []gin.HandlerFunc{}
	if limit.Rate > 0 {
		run = append(run, rateLimit(newRunLimiter(limit)))
	}

	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Notebook endpoints
		v1.GET("/notebook", s.handleGetNotebook)
		v1.DELETE("/notebook", s.handleClearNotebook)
		v1.GET("/notebook/export", s.handleExportNotebook)
		v1.POST("/notebook/import", s.handleImportNotebook)
		v1.POST("/notebook/save", s.handleSaveNotebook)
		v1.POST("/notebook/load", s.handleLoadNotebook)
		v1.GET("/notebook/snapshots", s.handleListSnapshots)
		v1.POST("/notebook/run-all", append(run, s.handleRunAll)...)

		// Cell endpoints
		v1.POST("/cells", s.handleAddCell)
		v1.GET("/cells/:id", s.handleGetCell)
		v1.DELETE("/cells/:id", s.handleDeleteCell)
		v1.PUT("/cells/:id/source", s.handleUpdateSource)
		v1.PUT("/cells/:id/kind", s.handleChangeKind)
		v1.POST("/cells/:id/run", append(run, s.handleRunCell)...)
		v1.POST("/cells/:id/stop", s.handleStopCell)
		v1.GET("/cells/:id/render", s.handleRenderCell)

		// Ad-hoc rendering
		v1.POST("/render", s.handleRender)
	}
}

// StreamHandler serves the notebook event stream
type StreamHandler interface {
	HandleNotebookStream(*gin.Context)
}

// SetupWebSocket adds the WebSocket handler to the server
func (s *Server) SetupWebSocket(handler StreamHandler) {
	s.router.GET("/api/v1/notebook/ws", handler.HandleNotebookStream)
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
