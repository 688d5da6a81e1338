package models

import "time"

// MonitoringResponse is the full payload of /api/v1/monitoring/metrics
type MonitoringResponse struct {
	Requests    RequestMetrics     `json:"requests"`
	Performance PerformanceMetrics `json:"performance"`
	Idempotency IdempotencyMetrics `json:"idempotency"`
	Store       StoreMetrics       `json:"store"`
	System      SystemMetrics      `json:"system"`
	Redis       RedisMetrics       `json:"redis"`
	Timestamp   string             `json:"timestamp"`
	Version     string             `json:"version"`
	GeneratedBy string             `json:"generated_by"`
}

type RequestMetrics struct {
	Total             int                        `json:"total"`
	ByEndpoint        map[string]EndpointMetrics `json:"byEndpoint"`
	SlowRequests      []SlowRequest              `json:"slowRequests"`
	Errors            []RequestError             `json:"errors"`
	TotalRequests     int                        `json:"total_requests"`
	SlowRequestsCount int                        `json:"slow_requests_count"`
	ErrorsCount       int                        `json:"errors_count"`
	TopEndpoints      []TopEndpoint              `json:"top_endpoints"`
}

// EndpointMetrics aggregates every call to one "METHOD /route"
type EndpointMetrics struct {
	Count     int     `json:"count"`
	AvgTime   float64 `json:"avgTime"`
	TotalTime int64   `json:"totalTime"`
	MaxTime   int64   `json:"maxTime"`
}

type SlowRequest struct {
	Endpoint  string    `json:"endpoint"`
	Duration  int64     `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

type RequestError struct {
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

type TopEndpoint struct {
	Endpoint  string `json:"endpoint"`
	Count     int    `json:"count"`
	AvgTimeMs string `json:"avg_time_ms"`
}

type PerformanceMetrics struct {
	AvgResponseTime   float64 `json:"avgResponseTime"`
	MaxResponseTime   int64   `json:"maxResponseTime"`
	MinResponseTime   int64   `json:"minResponseTime"`
	AvgResponseTimeMs string  `json:"avg_response_time_ms"`
	MaxResponseTimeMs string  `json:"max_response_time_ms"`
	MinResponseTimeMs string  `json:"min_response_time_ms"`
}

// IdempotencyMetrics reports how X-Idempotency-Key requests were resolved
type IdempotencyMetrics struct {
	Enabled   bool   `json:"enabled"`
	Backend   string `json:"backend"`
	Acquired  int64  `json:"acquired"`
	Replayed  int64  `json:"replayed"`
	Conflicts int64  `json:"conflicts"`
	Released  int64  `json:"released"`
}

// StoreMetrics describes the record store. Pool fields are only set for postgres.
type StoreMetrics struct {
	Driver             string `json:"driver"`
	Status             string `json:"status"`
	WriteMode          string `json:"write_mode"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	MaxOpenConnections int    `json:"max_open_connections"`
}

type SystemMetrics struct {
	MemoryUsage string        `json:"memoryUsage"`
	Uptime      float64       `json:"uptime"`
	Memory      MemoryMetrics `json:"memory"`
	Goroutines  int           `json:"goroutines"`
	UptimeHours string        `json:"uptime_hours"`
	GoVersion   string        `json:"go_version"`
	Platform    string        `json:"platform"`
	Environment string        `json:"environment"`
}

type MemoryMetrics struct {
	HeapUsed  string `json:"heapUsed"`
	HeapTotal string `json:"heapTotal"`
	Other     string `json:"other"`
	Sys       string `json:"sys"`
}

type RedisMetrics struct {
	Connected bool   `json:"connected"`
	Keys      int64  `json:"keys"`
	Memory    int64  `json:"memory"`
	Status    string `json:"status"`
	MemoryMB  string `json:"memory_mb"`
}

// RequestData is what the request middleware hands to the monitoring service
type RequestData struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
	Error      error
}
