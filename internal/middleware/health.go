package middleware

import (
	"context"
	"net/http"
	"time"

	"item-record-service/internal/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is anything whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	store      Pinger
	driver     string
	postgresDB *database.PostgresDB
	redisDB    *database.RedisDB
	timeout    time.Duration
	logger     *zap.Logger
}

// NewHealthChecker builds the /health handler. postgresDB and redisDB may be nil
// when the memory driver is used or idempotency is disabled.
func NewHealthChecker(store Pinger, driver string, postgresDB *database.PostgresDB, redisDB *database.RedisDB, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		store:      store,
		driver:     driver,
		postgresDB: postgresDB,
		redisDB:    redisDB,
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

func (h *HealthChecker) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	healthy := true
	services := gin.H{}

	storeStatus := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
		healthy = false
		h.logger.Error("Record store health check failed", zap.String("driver", h.driver), zap.Error(err))
	}

	store := gin.H{
		"status": storeStatus,
		"driver": h.driver,
	}
	if h.postgresDB != nil {
		stats := h.postgresDB.GetStats()
		store["stats"] = gin.H{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
		}
	}
	services["store"] = store

	if h.redisDB != nil {
		redisStatus := "healthy"
		if err := h.redisDB.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
			healthy = false
			h.logger.Error("Redis health check failed", zap.Error(err))
		}

		redis := gin.H{"status": redisStatus}
		if redisStatus == "healthy" {
			if stats, err := h.redisDB.GetStats(ctx); err != nil {
				h.logger.Warn("Failed to get Redis stats", zap.Error(err))
				redis["stats"] = "unavailable"
			} else {
				redis["stats"] = gin.H{
					"keys":        stats.Keys,
					"used_memory": stats.UsedMemory,
					"connections": stats.Connections,
				}
			}
		}
		services["redis"] = redis
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}
