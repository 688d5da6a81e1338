package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"item-record-service/internal/apperror"
	"item-record-service/internal/config"
	"item-record-service/internal/models"
	"item-record-service/internal/repository"
)

var ist = time.FixedZone("+05:30", 5*3600+30*60)

// failingRepo returns err from every call
type failingRepo struct {
	err error
}

func (f *failingRepo) Append(ctx context.Context, r *models.Record) error { return f.err }
func (f *failingRepo) MergeAppend(ctx context.Context, r *models.Record) (*models.Record, bool, error) {
	return nil, false, f.err
}
func (f *failingRepo) ListAll(ctx context.Context) ([]*models.Record, error) { return nil, f.err }
func (f *failingRepo) ListByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error) {
	return nil, f.err
}
func (f *failingRepo) Ping(ctx context.Context) error { return f.err }

// blockingRepo waits for the context to expire
type blockingRepo struct {
	failingRepo
}

func (b *blockingRepo) Append(ctx context.Context, r *models.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

type serviceFixture struct {
	svc  RecordService
	repo *repository.MemoryRecordRepository
	now  time.Time
}

func newFixture(t *testing.T, mutate func(*RecordServiceOptions)) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo: repository.NewMemoryRecordRepository(),
		now:  time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
	}
	seq := 0
	opts := RecordServiceOptions{
		StoreTimeout:       time.Second,
		DayLocation:        ist,
		WriteMode:          config.WriteModeAppend,
		CatalogEnforcement: config.EnforcementStrict,
		Now:                func() time.Time { return f.now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("rec-%03d", seq)
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = NewRecordService(f.repo, opts, zap.NewNop())
	return f
}

func (f *serviceFixture) create(t *testing.T, req models.CreateRecordRequest) *models.CreateRecordResponse {
	t.Helper()
	resp, err := f.svc.CreateRecord(context.Background(), &req)
	require.NoError(t, err)
	return resp
}

func TestCreateRecord_AppendThenSummarize(t *testing.T) {
	f := newFixture(t, nil)

	f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 10})
	f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: -3})

	summary, err := f.svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, &models.StockSummary{KV: "5kv", Material: "Copper", Type: "Digital", TotalQuantity: 7}, summary[0])
	assert.Equal(t, 2, f.repo.Len())
}

func TestCreateRecord_AssignsIDAndTimestamp(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.create(t, models.CreateRecordRequest{KV: "3kv", Material: "Aluminium", Type: "Local", Quantity: 4})

	assert.Equal(t, "rec-001", resp.Record.ID)
	assert.Equal(t, f.now, resp.Record.Timestamp)
	assert.False(t, resp.Merged)
	assert.Empty(t, resp.Warnings)

	at := time.Date(2024, 1, 10, 12, 0, 0, 0, ist)
	resp = f.create(t, models.CreateRecordRequest{KV: "3kv", Material: "Aluminium", Type: "Local", Quantity: 1, Timestamp: &at})
	assert.Equal(t, at.UTC(), resp.Record.Timestamp)
	assert.Equal(t, time.UTC, resp.Record.Timestamp.Location())
}

func TestCreateRecord_ActionSetsSign(t *testing.T) {
	f := newFixture(t, nil)

	made := f.create(t, models.CreateRecordRequest{KV: "10kv", Material: "Copper", Type: "Manual", Quantity: -5, Action: "made"})
	sold := f.create(t, models.CreateRecordRequest{KV: "10kv", Material: "Copper", Type: "Manual", Quantity: 2, Action: "sold"})

	assert.Equal(t, 5, made.Record.Quantity)
	assert.Equal(t, -2, sold.Record.Quantity)
}

func TestCreateRecord_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  models.CreateRecordRequest
	}{
		{"missing kv", models.CreateRecordRequest{Material: "Copper", Type: "Digital", Quantity: 1}},
		{"missing type", models.CreateRecordRequest{KV: "5kv", Material: "Copper", Quantity: 1}},
		{"zero quantity", models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital"}},
		{"unknown action", models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 1, Action: "lost"}},
		{"unknown kv", models.CreateRecordRequest{KV: "7kv", Material: "Copper", Type: "Digital", Quantity: 1}},
		{"type not allowed for kv", models.CreateRecordRequest{KV: "Inverter", Material: "Copper", Type: "Manual", Quantity: 1}},
		{"case sensitive material", models.CreateRecordRequest{KV: "5kv", Material: "copper", Type: "Digital", Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.svc.CreateRecord(context.Background(), &tt.req)

			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "expected validation error, got %v", err)
			assert.Equal(t, 0, f.repo.Len())
		})
	}
}

func TestCreateRecord_BlankConfigurationRejectedInFlagMode(t *testing.T) {
	f := newFixture(t, func(o *RecordServiceOptions) {
		o.CatalogEnforcement = config.EnforcementFlag
	})

	_, err := f.svc.CreateRecord(context.Background(), &models.CreateRecordRequest{
		KV: "5kv", Material: "  ", Type: "\t", Quantity: 1,
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected app error, got %v", err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, []string{"material", "type"}, appErr.Details["missing"])
	assert.Equal(t, 0, f.repo.Len())
}

func TestCreateRecord_FlagModeStoresWithWarnings(t *testing.T) {
	f := newFixture(t, func(o *RecordServiceOptions) {
		o.CatalogEnforcement = config.EnforcementFlag
	})

	resp := f.create(t, models.CreateRecordRequest{KV: "7kv", Material: "Copper", Type: "Digital", Quantity: 2})

	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "7kv")
	assert.Equal(t, 1, f.repo.Len())
}

func TestCreateRecord_MergeMode(t *testing.T) {
	f := newFixture(t, func(o *RecordServiceOptions) {
		o.WriteMode = config.WriteModeMerge
	})

	first := f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 10})
	second := f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 3, Action: "sold"})

	assert.False(t, first.Merged)
	assert.True(t, second.Merged)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, 7, second.Record.Quantity)
	assert.Equal(t, 1, f.repo.Len())

	summary, err := f.svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 7, summary[0].TotalQuantity)
}

func TestRecordService_StorageErrors(t *testing.T) {
	svc := NewRecordService(&failingRepo{err: errors.New("connection refused")}, RecordServiceOptions{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateRecord(ctx, &models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 1})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStorage, appErr.Code)
	assert.Equal(t, "append_record", appErr.Details["operation"])

	_, err = svc.GetSummary(ctx)
	assert.True(t, apperror.IsStorage(err))

	_, err = svc.GetSalesByDate(ctx, "2024-01-15", nil)
	assert.True(t, apperror.IsStorage(err))
}

func TestRecordService_StoreTimeout(t *testing.T) {
	svc := NewRecordService(&blockingRepo{}, RecordServiceOptions{StoreTimeout: 20 * time.Millisecond}, zap.NewNop())

	_, err := svc.CreateRecord(context.Background(), &models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 1})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStorageTimeout, appErr.Code)
	assert.True(t, appErr.Retryable)
}

func TestListRecordsByWindow_RejectsEmptyRange(t *testing.T) {
	f := newFixture(t, nil)
	at := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.ListRecordsByWindow(context.Background(), at, at)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.ListRecordsByWindow(context.Background(), at.Add(time.Hour), at)
	assert.True(t, apperror.IsValidation(err))
}

func TestGetSalesByDate_DayBoundary(t *testing.T) {
	f := newFixture(t, nil)

	lastSecond := time.Date(2024, 1, 15, 23, 59, 59, 0, ist)
	nextDay := time.Date(2024, 1, 16, 0, 0, 1, 0, ist)
	madeSameDay := time.Date(2024, 1, 15, 9, 0, 0, 0, ist)

	f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 2, Action: "sold", Timestamp: &lastSecond})
	f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 1, Action: "sold", Timestamp: &nextDay})
	f.create(t, models.CreateRecordRequest{KV: "5kv", Material: "Copper", Type: "Digital", Quantity: 8, Timestamp: &madeSameDay})

	report, err := f.svc.GetSalesByDate(context.Background(), "2024-01-15", nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-15", report.Date)
	assert.Equal(t, "+05:30", report.Offset)
	assert.True(t, report.Start.Equal(time.Date(2024, 1, 14, 18, 30, 0, 0, time.UTC)))
	assert.True(t, report.End.Equal(report.Start.Add(24*time.Hour)))

	require.Len(t, report.Records, 1)
	assert.True(t, report.Records[0].Timestamp.Equal(lastSecond))

	require.Len(t, report.Summary, 1)
	assert.Equal(t, -2, report.Summary[0].TotalQuantity)
	assert.Equal(t, 2, report.Summary[0].TotalSold)
}

func TestGetSalesByDate_LocationOverride(t *testing.T) {
	f := newFixture(t, nil)

	// 2024-01-15 20:00 UTC is already the 16th in +05:30
	at := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	f.create(t, models.CreateRecordRequest{KV: "8kv", Material: "Aluminium", Type: "Local", Quantity: 1, Action: "sold", Timestamp: &at})

	report, err := f.svc.GetSalesByDate(context.Background(), "2024-01-15", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Records)
	assert.NotNil(t, report.Summary)

	report, err = f.svc.GetSalesByDate(context.Background(), "2024-01-15", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "UTC", report.Offset)
	assert.Len(t, report.Records, 1)
}

func TestGetSalesByDate_InvalidDate(t *testing.T) {
	f := newFixture(t, nil)

	for _, date := range []string{"", "15-01-2024", "2024-13-01"} {
		_, err := f.svc.GetSalesByDate(context.Background(), date, nil)
		assert.True(t, apperror.IsValidation(err), "date %q", date)
	}
}

func TestGetCatalog(t *testing.T) {
	f := newFixture(t, func(o *RecordServiceOptions) {
		o.CatalogEnforcement = config.EnforcementFlag
	})

	cat := f.svc.GetCatalog()

	assert.Contains(t, cat.KVOptions, "5kv")
	assert.Equal(t, []string{"Aluminium", "Copper"}, cat.MaterialOptions)
	assert.Equal(t, []string{"made", "sold"}, cat.Actions)
	assert.Equal(t, []string{"Automatic"}, cat.TypeOptions["Inverter"])
	assert.Equal(t, config.EnforcementFlag, cat.Enforcement)
}
