package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/api"
	"github.com/smartlipad/smartlipad-go/internal/api/handlers"
	"github.com/smartlipad/smartlipad-go/internal/cache"
	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/database"
	"github.com/smartlipad/smartlipad-go/internal/logging"
	"github.com/smartlipad/smartlipad-go/internal/services"
	"github.com/smartlipad/smartlipad-go/internal/telemetry"
	"github.com/smartlipad/smartlipad-go/pkg/amadeus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A local .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.Environment)
	logger := logrus.StandardLogger()

	ctx := context.Background()
	tele, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tele.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	// Repositories and stores.
	routeRepo := database.NewRouteRepository(db.Pool)
	fareRepo := database.NewFareRepository(db.Pool)
	forecastStore := database.NewForecastStore(db.Pool)

	// Forecast pipeline.
	quoteClient := amadeus.NewClient(&cfg.Amadeus)
	forecaster := services.NewTrendSeasonalForecaster(fareRepo, forecastStore, cfg.Forecast, logger)
	sampler := services.NewQuoteSampler(quoteClient, logger)
	backfill := services.NewSeasonalBackfillEstimator(cfg.Forecast.BackfillAlpha, cfg.Forecast.SimpleBand)
	registry := services.NewRequestRegistry()
	orchestrator := services.NewForecastOrchestrator(
		routeRepo, forecaster, sampler, backfill,
		fareRepo, forecastStore, registry, cfg.Forecast, logger,
	)

	ingestion := services.NewIngestionService(routeRepo, fareRepo, logger)

	cacheTTL, err := time.ParseDuration(cfg.Forecast.CacheTTL)
	if err != nil {
		return fmt.Errorf("invalid forecast cache TTL: %w", err)
	}
	forecastCache := cache.NewRedisForecastCache(redis.Client, cacheTTL, logger)

	cleanup := services.NewCleanupService(db.Pool, forecastStore, logger)
	cleanup.Start(cfg.Cleanup)
	defer cleanup.Stop()

	notifier := services.NewNotifier(cfg.Telegram, logger)
	if notifier.Enabled() {
		logger.Info("Telegram notifications enabled")
	}

	// HTTP layer.
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	api.SetupRoutes(router, cfg, api.Handlers{
		Health:   handlers.NewHealthHandler(db, redis),
		Forecast: handlers.NewForecastHandler(orchestrator, forecastCache, notifier, logger),
		Flights:  handlers.NewFlightsHandler(routeRepo, fareRepo, ingestion, forecastCache, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	srvLog := logging.WithComponent("server")
	go func() {
		srvLog.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Environment,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvLog.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	srvLog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
