package routes

import (
	"net/http"

	"item-record-service/internal/cache"
	"item-record-service/internal/handlers"
	"item-record-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes registers every endpoint. idempotencyStore may be nil, in which
// case X-Idempotency-Key is ignored.
func SetupRoutes(
	router *gin.Engine,
	recordHandler *handlers.RecordHandler,
	monitoringHandler *handlers.MonitoringHandler,
	healthChecker *middleware.HealthChecker,
	idempotencyStore cache.IdempotencyStore,
	logger *zap.Logger,
) {
	createRecord := []gin.HandlerFunc{recordHandler.CreateRecord}
	if idempotencyStore != nil {
		createRecord = append([]gin.HandlerFunc{middleware.Idempotency(idempotencyStore, logger)}, createRecord...)
	}

	v1 := router.Group("/api/v1")
	{
		records := v1.Group("/records")
		{
			records.POST("", createRecord...)
			records.GET("", recordHandler.GetRecords)
		}

		v1.GET("/summary", recordHandler.GetSummary)
		v1.GET("/sales-by-date", recordHandler.GetSalesByDate)
		v1.GET("/catalog", recordHandler.GetCatalog)

		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", monitoringHandler.GetMetrics)
			monitoring.GET("/metrics/summary", monitoringHandler.GetMetricsSummary)
			monitoring.GET("/ws", monitoringHandler.WebSocketMetrics)
		}
	}

	router.GET("/health", healthChecker.HealthCheck)
	router.GET("/health/monitoring", monitoringHandler.HealthCheck)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Item Record Service API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": gin.H{
				"health": "/health",
				"api":    "/api/v1",
				"records": gin.H{
					"create":        "POST /api/v1/records",
					"list":          "GET /api/v1/records[?start=RFC3339&end=RFC3339]",
					"summary":       "GET /api/v1/summary",
					"sales_by_date": "GET /api/v1/sales-by-date?date=YYYY-MM-DD[&offset=+05:30]",
					"catalog":       "GET /api/v1/catalog",
				},
				"monitoring": gin.H{
					"metrics":   "GET /api/v1/monitoring/metrics",
					"summary":   "GET /api/v1/monitoring/metrics/summary",
					"websocket": "GET /api/v1/monitoring/ws",
				},
			},
		})
	})
}
