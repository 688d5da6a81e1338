package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"item-record-service/internal/aggregation"
	"item-record-service/internal/apperror"
	"item-record-service/internal/middleware"
	"item-record-service/internal/models"
	"item-record-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"
)

// RecordHandler serves the movement ledger and the reports derived from it
type RecordHandler struct {
	recordService services.RecordService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRecordHandler creates the handler with its request validator
func NewRecordHandler(recordService services.RecordService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		validator:     newValidator(),
		logger:        logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

func (h *RecordHandler) logDebug(msg string, fields ...zap.Field) {
	h.logger.Debug("🔍 [DEBUG] "+msg, fields...)
}

func (h *RecordHandler) logInfo(msg string, fields ...zap.Field) {
	h.logger.Info("ℹ️ "+msg, fields...)
}

func (h *RecordHandler) logWarn(msg string, fields ...zap.Field) {
	h.logger.Warn("⚠️ "+msg, fields...)
}

func (h *RecordHandler) logSuccess(msg string, fields ...zap.Field) {
	h.logger.Info("✅ "+msg, fields...)
}

// CreateRecord appends one movement
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	start := time.Now()

	var req models.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logWarn("Error binding JSON", zap.Error(err))
		middleware.RespondError(c, h.logger, "Invalid request body",
			apperror.NewValidation("request body is not valid JSON for a record").WithDetail("error", err.Error()))
		return
	}

	h.logDebug("Record request received",
		zap.String("kv", req.KV),
		zap.String("material", req.Material),
		zap.String("type", req.Type),
		zap.Int("quantity", req.Quantity),
		zap.String("action", req.Action))

	if err := h.validator.Struct(req); err != nil {
		h.logWarn("Validation error", zap.Error(err))
		middleware.RespondError(c, h.logger, "Invalid record data", validationError(err))
		return
	}

	response, err := h.recordService.CreateRecord(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondError(c, h.logger, "Error recording movement", err)
		return
	}

	h.logSuccess("Record created",
		zap.String("id", response.Record.ID),
		zap.Int("quantity", response.Record.Quantity),
		zap.Bool("merged", response.Merged),
		zap.Int("warnings", len(response.Warnings)),
		zap.Duration("latency", time.Since(start)))

	message := "✅ Record created"
	if response.Merged {
		message = "✅ Record merged into existing configuration"
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"data":    response,
	})
}

// GetRecords lists every movement, or only those in [start, end) when both are given
func (h *RecordHandler) GetRecords(c *gin.Context) {
	startParam, endParam := c.Query("start"), c.Query("end")

	var (
		records []*models.Record
		err     error
	)

	switch {
	case startParam == "" && endParam == "":
		records, err = h.recordService.ListRecords(c.Request.Context())
	case startParam == "" || endParam == "":
		middleware.RespondError(c, h.logger, "Invalid time window",
			apperror.NewValidation("start and end must be provided together"))
		return
	default:
		start, parseErr := parseTimestamp("start", startParam)
		if parseErr != nil {
			middleware.RespondError(c, h.logger, "Invalid time window", parseErr)
			return
		}
		end, parseErr := parseTimestamp("end", endParam)
		if parseErr != nil {
			middleware.RespondError(c, h.logger, "Invalid time window", parseErr)
			return
		}
		records, err = h.recordService.ListRecordsByWindow(c.Request.Context(), start, end)
	}

	if err != nil {
		middleware.RespondError(c, h.logger, "Error listing records", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Records retrieved",
		"data":    records,
		"count":   len(records),
	})
}

// GetSummary returns the all-time stock per configuration
func (h *RecordHandler) GetSummary(c *gin.Context) {
	summary, err := h.recordService.GetSummary(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, h.logger, "Error computing summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Summary computed",
		"data":    summary,
		"count":   len(summary),
	})
}

// GetSalesByDate reports the sales of one calendar day. offset overrides the
// configured day boundary for this request.
func (h *RecordHandler) GetSalesByDate(c *gin.Context) {
	date := c.Query("date")
	if strings.TrimSpace(date) == "" {
		middleware.RespondError(c, h.logger, "Missing date",
			apperror.NewValidation("date query parameter is required (YYYY-MM-DD)").WithDetail("field", "date"))
		return
	}

	var loc *time.Location
	if offset, ok := c.GetQuery("offset"); ok {
		parsed, err := aggregation.ParseOffset(offset)
		if err != nil {
			middleware.RespondError(c, h.logger, "Invalid offset",
				apperror.NewValidation(err.Error()).WithDetail("field", "offset"))
			return
		}
		loc = parsed
	}

	report, err := h.recordService.GetSalesByDate(c.Request.Context(), date, loc)
	if err != nil {
		middleware.RespondError(c, h.logger, "Error computing sales", err)
		return
	}

	h.logInfo("Sales by date served",
		zap.String("date", report.Date),
		zap.String("offset", report.Offset),
		zap.Int("sales", len(report.Records)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Sales computed",
		"data":    report,
	})
}

// GetCatalog lists the accepted kv, material and type values
func (h *RecordHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Catalog retrieved",
		"data":    h.recordService.GetCatalog(),
	})
}

func parseTimestamp(field, value string) (time.Time, error) {
	// an unescaped '+' in a query string arrives as a space
	value = strings.ReplaceAll(value, " ", "+")

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperror.NewValidation(field+" must be an RFC3339 timestamp").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return t, nil
}

// validationError converts validator output into a VALIDATION_ERROR listing each field
func validationError(err error) *apperror.AppError {
	appErr := apperror.NewValidation("request failed validation")

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErr.WithDetail("error", err.Error())
	}

	fields := make([]gin.H, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, gin.H{
			"field": fe.Field(),
			"rule":  fe.Tag(),
			"param": fe.Param(),
		})
	}
	return appErr.WithDetail("fields", fields)
}
