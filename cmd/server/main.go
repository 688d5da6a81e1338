// Package main is the entry point for the item record service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"item-record-service/internal/aggregation"
	"item-record-service/internal/cache"
	"item-record-service/internal/config"
	"item-record-service/internal/database"
	"item-record-service/internal/handlers"
	"item-record-service/internal/middleware"
	"item-record-service/internal/repository"
	"item-record-service/internal/routes"
	"item-record-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dayLocation, err := aggregation.ParseOffset(cfg.Inventory.DayBoundaryOffset)
	if err != nil {
		logger.Fatal("Invalid DAY_BOUNDARY_OFFSET", zap.String("value", cfg.Inventory.DayBoundaryOffset), zap.Error(err))
	}

	// --- Record store ---
	var (
		postgresDB *database.PostgresDB
		recordRepo repository.RecordRepository
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		postgresDB, err = database.NewPostgresDB(
			cfg.Database.URL,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer postgresDB.Close()

		schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = postgresDB.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to prepare schema", zap.Error(err))
		}

		recordRepo, err = repository.NewRecordRepository(postgresDB.DB)
		if err != nil {
			logger.Fatal("Failed to prepare record repository", zap.Error(err))
		}
	case config.DriverMemory:
		logger.Warn("Using in-memory record store, records are lost on restart")
		recordRepo = repository.NewMemoryRecordRepository()
	}

	// --- Idempotency ---
	var (
		redisDB          *database.RedisDB
		idempotencyStore cache.IdempotencyStore
	)
	if cfg.Redis.IdempotencyEnabled {
		if cfg.Database.Driver == config.DriverMemory {
			idempotencyStore = cache.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL)
		} else {
			redisDB, err = database.NewRedisDB(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, logger)
			if err != nil {
				logger.Fatal("Failed to connect to Redis", zap.Error(err))
			}
			defer redisDB.Close()
			idempotencyStore = cache.NewRedisIdempotencyStore(redisDB.Client, cfg.Redis.IdempotencyTTL, logger)
		}
	}

	// --- Services ---
	recordService := services.NewRecordService(recordRepo, services.RecordServiceOptions{
		StoreTimeout:       cfg.Database.StoreTimeout,
		DayLocation:        dayLocation,
		WriteMode:          cfg.Inventory.WriteMode,
		CatalogEnforcement: cfg.Inventory.CatalogEnforcement,
	}, logger)
	monitoringService := services.NewMonitoringService(logger, cfg, recordRepo, postgresDB, redisDB, idempotencyStore)

	// --- Handlers ---
	recordHandler := handlers.NewRecordHandler(recordService, logger)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService, logger)
	healthChecker := middleware.NewHealthChecker(recordRepo, cfg.Database.Driver, postgresDB, redisDB, logger)

	// --- Router ---
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(monitoringHandler.RecordRequestMiddleware())

	routes.SetupRoutes(router, recordHandler, monitoringHandler, healthChecker, idempotencyStore, logger)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		middleware.ServerInfo(cfg, logger)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}

// newLogger uses the development encoder in gin debug mode and JSON otherwise
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Logging.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Server.GinMode == gin.DebugMode {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}
