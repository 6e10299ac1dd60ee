package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddi-prediction-server/internal/api"
	"github.com/ddi-prediction-server/internal/cache"
	"github.com/ddi-prediction-server/internal/config"
	"github.com/ddi-prediction-server/internal/domain"
	"github.com/ddi-prediction-server/internal/logging"
	"github.com/ddi-prediction-server/internal/model"
	"github.com/ddi-prediction-server/internal/service"
	"github.com/ddi-prediction-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)

	// Feature schema is versioned together with the model artifact; fall
	// back to the built-in contract when no schema file is configured.
	schema := domain.DefaultFeatureSchema()
	if cfg.Model.SchemaPath != "" {
		schema, err = domain.LoadFeatureSchema(cfg.Model.SchemaPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load feature schema")
		}
	}

	// Select the classifier backend.
	var classifier domain.Classifier
	switch cfg.Model.Mode {
	case "remote":
		classifier = external.NewModelClient(external.ModelClientConfig{
			BaseURL:     cfg.Model.Remote.BaseURL,
			Timeout:     cfg.Model.Remote.Timeout,
			RateLimit:   cfg.Model.Remote.RateLimit,
			NumFeatures: schema.NumFeatures(),
		}, logger)
	default:
		classifier, err = model.Load(cfg.Model.ArtifactPath, schema, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load model")
		}
	}

	cached, err := cache.NewCachedClassifier(classifier, cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create prediction cache")
	}
	defer cached.Close()

	// Wire the prediction core.
	validator := service.NewValidator(schema, logger)
	features := service.NewFeatureBuilder(schema, logger)
	predictor := service.NewPredictor(logger, features, cached)

	healthChecks := []api.HealthCheck{
		{Name: "model_loaded", Check: func(ctx context.Context) bool { return classifier != nil }},
		{Name: "schema_ready", Check: func(ctx context.Context) bool { return schema.Validate() == nil }},
		{Name: "cache_ready", Check: cached.IsHealthy},
	}

	server := api.NewServer(configManager, logger, validator, predictor, healthChecks)

	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).
		Info("Starting Drug Interaction Prediction Server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
