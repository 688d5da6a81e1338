package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"item-record-service/internal/apperror"
	"item-record-service/internal/cache"
	"item-record-service/internal/config"
	"item-record-service/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIdempotentRouter(store cache.IdempotencyStore, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.POST("/records", Idempotency(store, zap.NewNop()), handler)
	return router
}

func post(router http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysFirstResponse(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(cache.NewMemoryIdempotencyStore(time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"success": true, "call": calls})
	})

	first := post(router, "key-1", `{"kv":"5kv"}`)
	second := post(router, "key-1", `{"kv":"5kv"}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotencyReplayed))
	assert.Empty(t, first.Header().Get(HeaderIdempotencyReplayed))
}

func TestIdempotency_DifferentBodyConflicts(t *testing.T) {
	router := newIdempotentRouter(cache.NewMemoryIdempotencyStore(time.Hour), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	require.Equal(t, http.StatusCreated, post(router, "key-1", `{"quantity":1}`).Code)
	w := post(router, "key-1", `{"quantity":2}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, apperror.CodeIdempotencyConflict, body["code"])
}

func TestIdempotency_FailedRequestReleasesKey(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(cache.NewMemoryIdempotencyStore(time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			RespondError(c, zap.NewNop(), "Error storing record", apperror.NewStorage("append_record", context.DeadlineExceeded))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	first := post(router, "key-1", `{}`)
	second := post(router, "key-1", `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_PanickingHandlerReleasesKey(t *testing.T) {
	calls := 0
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/records", Idempotency(cache.NewMemoryIdempotencyStore(time.Hour), zap.NewNop()), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("handler exploded")
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	first := post(router, "key-1", `{}`)
	second := post(router, "key-1", `{}`)

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(cache.NewMemoryIdempotencyStore(time.Hour), func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	post(router, "", `{}`)
	post(router, "", `{}`)

	assert.Equal(t, 2, calls)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryAfter string
	}{
		{"validation", apperror.NewValidation("date is required"), http.StatusBadRequest, apperror.CodeValidation, ""},
		{"storage", apperror.NewStorage("list_records", errors.New("boom")), http.StatusInternalServerError, apperror.CodeStorage, ""},
		{"timeout", apperror.NewStorage("list_records", context.DeadlineExceeded), http.StatusServiceUnavailable, apperror.CodeStorageTimeout, "1"},
		{"plain error", errors.New("unexpected"), http.StatusInternalServerError, apperror.CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/", func(c *gin.Context) {
				RespondError(c, zap.NewNop(), "Request failed", tt.err)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, false, body["success"])
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-id", w.Header().Get(HeaderRequestID))
}

type downStore struct{}

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantStatus int
		wantHealth string
	}{
		{"memory store", repository.NewMemoryRecordRepository(), http.StatusOK, "healthy"},
		{"unreachable store", downStore{}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(tt.store, config.DriverMemory, nil, nil, zap.NewNop())
			router := gin.New()
			router.GET("/health", checker.HealthCheck)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Status   string                            `json:"status"`
				Services map[string]map[string]interface{} `json:"services"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantHealth, body.Status)
			assert.Equal(t, "memory", body.Services["store"]["driver"])
			assert.NotContains(t, body.Services, "redis")
		})
	}
}
