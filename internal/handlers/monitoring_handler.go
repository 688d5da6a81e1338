package handlers

import (
	"net/http"
	"time"

	"item-record-service/internal/models"
	"item-record-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	metricsPushInterval = 10 * time.Second
	wsPongWait          = 60 * time.Second
	wsWriteWait         = 10 * time.Second
)

type MonitoringHandler struct {
	monitoringService services.MonitoringService
	logger            *zap.Logger
	pushInterval      time.Duration
}

func NewMonitoringHandler(monitoringService services.MonitoringService, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		logger:            logger,
		pushInterval:      metricsPushInterval,
	}
}

// GetMetrics returns the full metrics snapshot
func (h *MonitoringHandler) GetMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_metrics"))

	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	logger.Debug("Metrics collected",
		zap.Int("total_requests", metrics.Requests.TotalRequests),
		zap.Int("total_endpoints", metrics.Requests.Total),
		zap.String("avg_response_time", metrics.Performance.AvgResponseTimeMs))

	c.JSON(http.StatusOK, metrics)
}

var upgrader = websocket.Upgrader{
	// dashboards are served from other origins
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMetrics pushes a metrics snapshot every pushInterval until the client goes away
func (h *MonitoringHandler) WebSocketMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "websocket_metrics"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Info("WebSocket connection established", zap.String("client_ip", c.ClientIP()))

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// the read loop only exists to notice close frames and pongs
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		metrics := h.monitoringService.GetMetrics(c.Request.Context())
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(metrics); err != nil {
			logger.Warn("Failed to push metrics", zap.Error(err))
			return false
		}
		logger.Debug("Metrics pushed",
			zap.Int("total_requests", metrics.Requests.TotalRequests),
			zap.String("timestamp", metrics.Timestamp))
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(h.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !send() {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			logger.Info("WebSocket connection closed by client")
			return
		case <-c.Request.Context().Done():
			logger.Info("WebSocket connection closed by context")
			return
		}
	}
}

// RecordRequestMiddleware feeds every handled request into the monitoring service
func (h *MonitoringHandler) RecordRequestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if h.shouldSkipMonitoring(path) {
			return
		}

		// route templates keep the endpoint map bounded
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		var lastErr error
		if last := c.Errors.Last(); last != nil {
			lastErr = last.Err
		}

		h.monitoringService.RecordRequest(models.RequestData{
			Endpoint:   endpoint,
			Method:     c.Request.Method,
			Duration:   time.Since(start),
			StatusCode: c.Writer.Status(),
			Timestamp:  time.Now(),
			Error:      lastErr,
		})
	}
}

var excludedPaths = map[string]bool{
	"/api/v1/monitoring/metrics":         true,
	"/api/v1/monitoring/metrics/summary": true,
	"/api/v1/monitoring/ws":              true,
	"/health/monitoring":                 true,
	"/health":                            true,
	"/":                                  true,
}

func (h *MonitoringHandler) shouldSkipMonitoring(path string) bool {
	return excludedPaths[path]
}

// HealthCheck reports degraded rather than failing when a dependency is down
func (h *MonitoringHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	store := h.monitoringService.GetStoreStats(ctx)
	redis := h.monitoringService.GetRedisStats(ctx)
	idempotency := h.monitoringService.GetIdempotencyStats()

	status := "healthy"
	if store.Status != "online" || redis.Status == "offline" {
		status = "degraded"
	}

	idempotencyStatus := "disabled"
	if idempotency.Enabled {
		idempotencyStatus = idempotency.Backend
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0",
		"services": gin.H{
			"store":       store.Status,
			"redis":       redis.Status,
			"idempotency": idempotencyStatus,
		},
	})
}

// GetMetricsSummary returns the headline numbers of GetMetrics
func (h *MonitoringHandler) GetMetricsSummary(c *gin.Context) {
	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"requests": gin.H{
			"total":         metrics.Requests.TotalRequests,
			"endpoints":     metrics.Requests.Total,
			"errors":        metrics.Requests.ErrorsCount,
			"slow_requests": metrics.Requests.SlowRequestsCount,
		},
		"performance": gin.H{
			"avg_response_time": metrics.Performance.AvgResponseTimeMs,
			"max_response_time": metrics.Performance.MaxResponseTimeMs,
			"min_response_time": metrics.Performance.MinResponseTimeMs,
		},
		"idempotency": gin.H{
			"enabled":   metrics.Idempotency.Enabled,
			"replayed":  metrics.Idempotency.Replayed,
			"conflicts": metrics.Idempotency.Conflicts,
		},
		"store": gin.H{
			"driver":           metrics.Store.Driver,
			"status":           metrics.Store.Status,
			"open_connections": metrics.Store.OpenConnections,
		},
		"system": gin.H{
			"memory_usage": metrics.System.MemoryUsage,
			"uptime":       metrics.System.UptimeHours,
			"goroutines":   metrics.System.Goroutines,
		},
		"redis": gin.H{
			"connected": metrics.Redis.Connected,
			"keys":      metrics.Redis.Keys,
			"memory":    metrics.Redis.MemoryMB,
			"status":    metrics.Redis.Status,
		},
		"timestamp": metrics.Timestamp,
	})
}
