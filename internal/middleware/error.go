package middleware

import (
	"strconv"

	"item-record-service/internal/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// retryAfterSeconds is advertised on retryable failures
const retryAfterSeconds = 1

// RespondError writes the error envelope for err and aborts the chain.
// Causes of 5xx errors are logged but never sent to the client.
func RespondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	appErr := apperror.Normalize(err)

	if appErr.HTTPStatus >= 500 {
		logger.Error("❌ "+message,
			zap.String("code", appErr.Code),
			zap.String("request_id", c.GetString(ContextRequestID)),
			zap.Error(err))
	}

	if appErr.Retryable {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	body := gin.H{
		"success": false,
		"message": "❌ " + message,
		"code":    appErr.Code,
		"error":   appErr.Message,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}
