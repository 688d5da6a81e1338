package services

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"item-record-service/internal/cache"
	"item-record-service/internal/config"
	"item-record-service/internal/database"
	"item-record-service/internal/models"
	"item-record-service/internal/repository"

	"go.uber.org/zap"
)

const (
	slowRequestThreshold = time.Second
	maxTrackedEvents     = 100
	maxTopEndpoints      = 10
	statsTimeout         = 2 * time.Second
)

type MonitoringService interface {
	GetMetrics(ctx context.Context) *models.MonitoringResponse
	RecordRequest(data models.RequestData)
	GetIdempotencyStats() models.IdempotencyMetrics
	GetStoreStats(ctx context.Context) models.StoreMetrics
	GetSystemStats() models.SystemMetrics
	GetRedisStats(ctx context.Context) models.RedisMetrics
}

type monitoringService struct {
	logger      *zap.Logger
	config      *config.Config
	store       repository.RecordRepository
	postgresDB  *database.PostgresDB
	redisDB     *database.RedisDB
	idempotency cache.IdempotencyStore

	requestsMutex sync.RWMutex
	requests      map[string]*models.EndpointMetrics
	slowRequests  []models.SlowRequest
	errors        []models.RequestError
	totalRequests int64
	minDuration   int64
	maxDuration   int64

	startTime time.Time
}

// NewMonitoringService wires the collectors. postgresDB, redisDB and idempotency
// are optional and reported as disabled when nil.
func NewMonitoringService(
	logger *zap.Logger,
	config *config.Config,
	store repository.RecordRepository,
	postgresDB *database.PostgresDB,
	redisDB *database.RedisDB,
	idempotency cache.IdempotencyStore,
) MonitoringService {
	return &monitoringService{
		logger:      logger,
		config:      config,
		store:       store,
		postgresDB:  postgresDB,
		redisDB:     redisDB,
		idempotency: idempotency,
		requests:    make(map[string]*models.EndpointMetrics),
		minDuration: math.MaxInt64,
		startTime:   time.Now(),
	}
}

func (s *monitoringService) RecordRequest(data models.RequestData) {
	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	endpointKey := fmt.Sprintf("%s %s", data.Method, data.Endpoint)

	metrics, exists := s.requests[endpointKey]
	if !exists {
		metrics = &models.EndpointMetrics{}
		s.requests[endpointKey] = metrics
	}

	durationMs := data.Duration.Milliseconds()
	metrics.Count++
	metrics.TotalTime += durationMs
	metrics.AvgTime = float64(metrics.TotalTime) / float64(metrics.Count)
	if durationMs > metrics.MaxTime {
		metrics.MaxTime = durationMs
	}

	s.totalRequests++
	if durationMs < s.minDuration {
		s.minDuration = durationMs
	}
	if durationMs > s.maxDuration {
		s.maxDuration = durationMs
	}

	if data.Duration > slowRequestThreshold {
		s.slowRequests = appendBounded(s.slowRequests, models.SlowRequest{
			Endpoint:  endpointKey,
			Duration:  durationMs,
			Timestamp: data.Timestamp,
		})
	}

	if data.Error != nil || data.StatusCode >= 400 {
		s.errors = appendBounded(s.errors, models.RequestError{
			Endpoint:   endpointKey,
			StatusCode: data.StatusCode,
			Timestamp:  data.Timestamp,
		})
	}
}

// appendBounded keeps only the newest maxTrackedEvents entries
func appendBounded[T any](events []T, event T) []T {
	events = append(events, event)
	if len(events) > maxTrackedEvents {
		events = events[len(events)-maxTrackedEvents:]
	}
	return events
}

func (s *monitoringService) GetMetrics(ctx context.Context) *models.MonitoringResponse {
	s.requestsMutex.RLock()
	requestMetrics := s.calculateRequestMetrics()
	performanceMetrics := s.calculatePerformanceMetrics()
	s.requestsMutex.RUnlock()

	return &models.MonitoringResponse{
		Requests:    requestMetrics,
		Performance: performanceMetrics,
		Idempotency: s.GetIdempotencyStats(),
		Store:       s.GetStoreStats(ctx),
		System:      s.GetSystemStats(),
		Redis:       s.GetRedisStats(ctx),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     "1.0",
		GeneratedBy: "Item Record Monitoring Service",
	}
}

// calculateRequestMetrics must be called with requestsMutex held
func (s *monitoringService) calculateRequestMetrics() models.RequestMetrics {
	type endpointEntry struct {
		key     string
		metrics *models.EndpointMetrics
	}

	endpoints := make([]endpointEntry, 0, len(s.requests))
	byEndpoint := make(map[string]models.EndpointMetrics, len(s.requests))
	for key, metrics := range s.requests {
		endpoints = append(endpoints, endpointEntry{key, metrics})
		byEndpoint[key] = *metrics
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].metrics.Count != endpoints[j].metrics.Count {
			return endpoints[i].metrics.Count > endpoints[j].metrics.Count
		}
		return endpoints[i].key < endpoints[j].key
	})

	topEndpoints := make([]models.TopEndpoint, 0, maxTopEndpoints)
	for i, endpoint := range endpoints {
		if i >= maxTopEndpoints {
			break
		}
		topEndpoints = append(topEndpoints, models.TopEndpoint{
			Endpoint:  endpoint.key,
			Count:     endpoint.metrics.Count,
			AvgTimeMs: fmt.Sprintf("%.2fms", endpoint.metrics.AvgTime),
		})
	}

	return models.RequestMetrics{
		Total:             len(s.requests),
		ByEndpoint:        byEndpoint,
		SlowRequests:      append([]models.SlowRequest{}, s.slowRequests...),
		Errors:            append([]models.RequestError{}, s.errors...),
		TotalRequests:     int(s.totalRequests),
		SlowRequestsCount: len(s.slowRequests),
		ErrorsCount:       len(s.errors),
		TopEndpoints:      topEndpoints,
	}
}

// calculatePerformanceMetrics must be called with requestsMutex held
func (s *monitoringService) calculatePerformanceMetrics() models.PerformanceMetrics {
	var totalTime int64
	var count int
	for _, metrics := range s.requests {
		totalTime += metrics.TotalTime
		count += metrics.Count
	}

	var avgTime float64
	if count > 0 {
		avgTime = float64(totalTime) / float64(count)
	}

	minTime := s.minDuration
	if minTime == math.MaxInt64 {
		minTime = 0
	}

	return models.PerformanceMetrics{
		AvgResponseTime:   avgTime,
		MaxResponseTime:   s.maxDuration,
		MinResponseTime:   minTime,
		AvgResponseTimeMs: fmt.Sprintf("%.2fms", avgTime),
		MaxResponseTimeMs: fmt.Sprintf("%dms", s.maxDuration),
		MinResponseTimeMs: fmt.Sprintf("%dms", minTime),
	}
}

func (s *monitoringService) GetIdempotencyStats() models.IdempotencyMetrics {
	if s.idempotency == nil {
		return models.IdempotencyMetrics{Enabled: false, Backend: "none"}
	}

	stats := s.idempotency.GetStats()
	return models.IdempotencyMetrics{
		Enabled:   true,
		Backend:   stats.Backend,
		Acquired:  stats.Acquired,
		Replayed:  stats.Replayed,
		Conflicts: stats.Conflicts,
		Released:  stats.Released,
	}
}

func (s *monitoringService) GetStoreStats(ctx context.Context) models.StoreMetrics {
	metrics := models.StoreMetrics{
		Driver:    s.config.Database.Driver,
		WriteMode: s.config.Inventory.WriteMode,
		Status:    "online",
	}

	pingCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()
	if err := s.store.Ping(pingCtx); err != nil {
		s.logger.Warn("Record store ping failed", zap.Error(err))
		metrics.Status = "offline"
	}

	if s.postgresDB != nil {
		stats := s.postgresDB.GetStats()
		metrics.OpenConnections = stats.OpenConnections
		metrics.InUse = stats.InUse
		metrics.Idle = stats.Idle
		metrics.WaitCount = stats.WaitCount
		metrics.MaxOpenConnections = stats.MaxOpenConnections
	}

	return metrics
}

func (s *monitoringService) GetSystemStats() models.SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(s.startTime).Seconds()

	environment := "production"
	if s.config.Server.GinMode == "debug" {
		environment = "development"
	}

	return models.SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f", float64(m.Alloc)/1024/1024),
		Uptime:      uptime,
		Memory: models.MemoryMetrics{
			HeapUsed:  fmt.Sprintf("%.2f MB", float64(m.HeapAlloc)/1024/1024),
			HeapTotal: fmt.Sprintf("%.2f MB", float64(m.HeapSys)/1024/1024),
			Other:     fmt.Sprintf("%.2f MB", float64(m.OtherSys)/1024/1024),
			Sys:       fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Goroutines:  runtime.NumGoroutine(),
		UptimeHours: fmt.Sprintf("%.2fh", uptime/3600),
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS,
		Environment: environment,
	}
}

func (s *monitoringService) GetRedisStats(ctx context.Context) models.RedisMetrics {
	if s.redisDB == nil {
		return models.RedisMetrics{Status: "disabled"}
	}

	statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats, err := s.redisDB.GetStats(statsCtx)
	if err != nil {
		s.logger.Warn("Failed to read Redis stats", zap.Error(err))
		return models.RedisMetrics{Status: "offline"}
	}

	return models.RedisMetrics{
		Connected: true,
		Keys:      stats.Keys,
		Memory:    stats.UsedMemory,
		Status:    "online",
		MemoryMB:  fmt.Sprintf("%.2f MB", float64(stats.UsedMemory)/1024/1024),
	}
}
