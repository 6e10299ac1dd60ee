// Package api exposes the prediction core over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
	"github.com/ddi-prediction-server/internal/middleware"
	"github.com/ddi-prediction-server/internal/service"
)

// Version is the API version reported by the health and info endpoints.
const Version = "1.0.0"

const serviceName = "Drug Interaction Prediction API"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	validator     *service.Validator
	predictor     *service.Predictor
	healthChecks  []HealthCheck
	router        *gin.Engine
	server        *http.Server
}

// HealthCheck reports readiness of one server component.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// NewServer creates a new HTTP server instance wired to the prediction
// core.
func NewServer(
	configManager domain.ConfigManager,
	logger *logrus.Logger,
	validator *service.Validator,
	predictor *service.Predictor,
	healthChecks []HealthCheck,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RateLimit(cfg.RateLimit))

	server := &Server{
		configManager: configManager,
		logger:        logger,
		validator:     validator,
		predictor:     predictor,
		healthChecks:  healthChecks,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the configured gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/predict-interactions", s.handlePredictInteractions)
	s.router.GET("/api/info", s.handleInfo)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Endpoint not found",
			"status": "error",
			"available_endpoints": []string{
				"/", "/health", "/predict-interactions", "/api/info",
			},
		})
	})
}
