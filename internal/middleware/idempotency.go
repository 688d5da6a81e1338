package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"item-record-service/internal/apperror"
	"item-record-service/internal/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey      = "X-Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLength  = 255
	maxIdempotencyBodyBytes  = 1 << 20
	idempotencyFinishTimeout = 5 * time.Second
)

// Idempotency makes POST requests carrying X-Idempotency-Key safe to retry.
// The first successful response is stored and replayed for later requests with
// the same key and body. Failed requests release the key.
func Idempotency(store cache.IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			RespondError(c, logger, "Invalid idempotency key",
				apperror.NewValidation("idempotency key is too long").WithDetail("max_length", maxIdempotencyKeyLength))
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			RespondError(c, logger, "Could not read request body", apperror.NewValidation("request body could not be read"))
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			RespondError(c, logger, "Request body too large", appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// the route is part of the hash so a key cannot be replayed on another endpoint
		hash := sha256.Sum256(append([]byte(c.Request.Method+" "+c.FullPath()+"\n"), body...))
		requestHash := hex.EncodeToString(hash[:])

		replay, err := store.Acquire(c.Request.Context(), key, requestHash)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			RespondError(c, logger, "Idempotency check failed", err)
			return
		}

		if replay != nil {
			logger.Info("ℹ️ Replaying stored response",
				zap.String("idempotency_key", key),
				zap.Int("status_code", replay.StatusCode))
			c.Header(HeaderIdempotencyReplayed, "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		finished := false
		defer func() {
			// a panicking handler must not leave the key pending until it expires
			if !finished {
				releaseIdempotencyKey(store, logger, key)
			}
		}()

		c.Next()
		finished = true

		status := writer.Status()
		if status < 200 || status >= 300 {
			releaseIdempotencyKey(store, logger, key)
			return
		}

		// the request context may already be canceled once the client has its answer
		ctx, cancel := context.WithTimeout(context.Background(), idempotencyFinishTimeout)
		defer cancel()

		err = store.Complete(ctx, key, cache.IdempotencyReplay{
			StatusCode:  status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
		if err != nil {
			logger.Error("❌ Failed to store idempotent response", zap.String("idempotency_key", key), zap.Error(err))
		}
	}
}

func releaseIdempotencyKey(store cache.IdempotencyStore, logger *zap.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyFinishTimeout)
	defer cancel()

	if err := store.Release(ctx, key); err != nil {
		logger.Error("❌ Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

// bodyCaptureWriter keeps a copy of everything written to the client
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
