package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"item-record-service/internal/aggregation"
	"item-record-service/internal/apperror"
	"item-record-service/internal/catalog"
	"item-record-service/internal/config"
	"item-record-service/internal/models"
	"item-record-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordService records inventory movements and derives stock summaries from them
type RecordService interface {
	// Movements
	CreateRecord(ctx context.Context, req *models.CreateRecordRequest) (*models.CreateRecordResponse, error)
	ListRecords(ctx context.Context) ([]*models.Record, error)
	ListRecordsByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error)

	// Summaries
	GetSummary(ctx context.Context) ([]*models.StockSummary, error)
	GetSalesByDate(ctx context.Context, date string, loc *time.Location) (*models.DaySales, error)

	GetCatalog() *models.CatalogResponse
}

// RecordServiceOptions configures how movements are written and reported.
type RecordServiceOptions struct {
	StoreTimeout       time.Duration
	DayLocation        *time.Location
	WriteMode          string
	CatalogEnforcement string

	// Now and NewID are replaced in tests
	Now   func() time.Time
	NewID func() string
}

type recordService struct {
	repo   repository.RecordRepository
	opts   RecordServiceOptions
	logger *zap.Logger
}

// NewRecordService creates the service; zero-valued options fall back to defaults.
func NewRecordService(repo repository.RecordRepository, opts RecordServiceOptions, logger *zap.Logger) RecordService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.DayLocation == nil {
		opts.DayLocation = time.UTC
	}
	if opts.WriteMode == "" {
		opts.WriteMode = config.WriteModeAppend
	}
	if opts.CatalogEnforcement == "" {
		opts.CatalogEnforcement = config.EnforcementStrict
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &recordService{
		repo:   repo,
		opts:   opts,
		logger: logger,
	}
}

// CreateRecord validates a movement and appends it to the ledger
func (s *recordService) CreateRecord(ctx context.Context, req *models.CreateRecordRequest) (*models.CreateRecordResponse, error) {
	logger := s.logger.With(
		zap.String("operation", "create_record"),
		zap.String("kv", req.KV),
		zap.String("material", req.Material),
		zap.String("type", req.Type),
		zap.Int("quantity", req.Quantity),
		zap.String("action", req.Action),
	)

	if err := requireConfiguration(req); err != nil {
		logger.Warn("Incomplete configuration", zap.Error(err))
		return nil, err
	}

	quantity, err := catalog.SignedQuantity(req.Action, req.Quantity)
	if err != nil {
		logger.Warn("Invalid quantity", zap.Error(err))
		return nil, apperror.NewValidation(err.Error()).WithDetail("field", "quantity")
	}

	var warnings []string
	if err := catalog.Validate(req.KV, req.Material, req.Type); err != nil {
		var catalogErr *catalog.ValidationError
		if !errors.As(err, &catalogErr) {
			return nil, apperror.NewInternal(err)
		}

		if s.opts.CatalogEnforcement == config.EnforcementStrict {
			logger.Warn("Configuration rejected by catalog", zap.Error(err))
			return nil, apperror.NewValidation("configuration is not in the catalog").
				WithDetail("fields", catalogErr.Fields)
		}

		for _, f := range catalogErr.Fields {
			warnings = append(warnings, f.Message)
		}
		logger.Warn("Configuration flagged by catalog", zap.Strings("warnings", warnings))
	}

	timestamp := s.opts.Now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	record := &models.Record{
		ID:        s.opts.NewID(),
		KV:        req.KV,
		Material:  req.Material,
		Type:      req.Type,
		Quantity:  quantity,
		Timestamp: timestamp,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	merged := false
	if s.opts.WriteMode == config.WriteModeMerge {
		record, merged, err = s.repo.MergeAppend(storeCtx, record)
	} else {
		err = s.repo.Append(storeCtx, record)
	}
	if err != nil {
		logger.Error("Error storing record", zap.Error(err))
		return nil, apperror.NewStorage("append_record", err)
	}

	logger.Info("Record stored",
		zap.String("id", record.ID),
		zap.Int("signed_quantity", quantity),
		zap.Bool("merged", merged))

	return &models.CreateRecordResponse{
		Record:   record,
		Merged:   merged,
		Warnings: warnings,
	}, nil
}

// ListRecords returns the whole ledger, newest first
func (s *recordService) ListRecords(ctx context.Context) ([]*models.Record, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	records, err := s.repo.ListAll(storeCtx)
	if err != nil {
		s.logger.Error("Error listing records", zap.Error(err))
		return nil, apperror.NewStorage("list_records", err)
	}
	return records, nil
}

// ListRecordsByWindow returns the records in [start, end)
func (s *recordService) ListRecordsByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error) {
	if !start.Before(end) {
		return nil, apperror.NewValidation("start must be before end").
			WithDetail("start", start).
			WithDetail("end", end)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	records, err := s.repo.ListByWindow(storeCtx, start, end)
	if err != nil {
		s.logger.Error("Error listing records by window",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		return nil, apperror.NewStorage("list_records_by_window", err)
	}
	return records, nil
}

// GetSummary aggregates the whole ledger per configuration
func (s *recordService) GetSummary(ctx context.Context) ([]*models.StockSummary, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	summary := aggregation.Aggregate(records)

	s.logger.Debug("Summary computed",
		zap.Int("records", len(records)),
		zap.Int("configurations", len(summary)))

	return summary, nil
}

// GetSalesByDate reports the sales recorded on a calendar day in loc.
// A nil loc uses the configured day boundary.
func (s *recordService) GetSalesByDate(ctx context.Context, date string, loc *time.Location) (*models.DaySales, error) {
	if loc == nil {
		loc = s.opts.DayLocation
	}

	start, end, err := aggregation.DayWindow(date, loc)
	if err != nil {
		return nil, apperror.NewValidation(err.Error()).WithDetail("field", "date")
	}

	records, err := s.ListRecordsByWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	sales := aggregation.SalesOnly(records)

	s.logger.Info("Sales by date computed",
		zap.String("date", date),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("records_in_window", len(records)),
		zap.Int("sales", len(sales)))

	return &models.DaySales{
		Date:    strings.TrimSpace(date),
		Offset:  aggregation.LocationLabel(loc, start),
		Start:   start,
		End:     end,
		Records: sales,
		Summary: aggregation.SalesSummary(sales),
	}, nil
}

// GetCatalog describes the configurations accepted by CreateRecord
func (s *recordService) GetCatalog() *models.CatalogResponse {
	return &models.CatalogResponse{
		KVOptions:       catalog.KVOptions(),
		MaterialOptions: catalog.MaterialOptions(),
		Actions:         catalog.Actions(),
		TypeOptions:     catalog.TypeTable(),
		DefaultTypes:    catalog.DefaultTypes(),
		Enforcement:     s.opts.CatalogEnforcement,
	}
}

func (s *recordService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func requireConfiguration(req *models.CreateRecordRequest) error {
	var missing []string
	if strings.TrimSpace(req.KV) == "" {
		missing = append(missing, "kv")
	}
	if strings.TrimSpace(req.Material) == "" {
		missing = append(missing, "material")
	}
	if strings.TrimSpace(req.Type) == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return apperror.NewValidation("configuration fields must be non-empty").
			WithDetail("missing", missing)
	}
	return nil
}
