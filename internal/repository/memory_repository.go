package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"item-record-service/internal/aggregation"
	"item-record-service/internal/models"
)

// MemoryRecordRepository keeps the ledger in process memory.
// Used with STORAGE_DRIVER=memory and in tests.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records []models.Record
}

// NewMemoryRecordRepository creates an empty in-memory store
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		records: []models.Record{},
	}
}

// Verify interface compliance
var _ RecordRepository = (*MemoryRecordRepository)(nil)

func (r *MemoryRecordRepository) Append(ctx context.Context, record *models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, *record)
	return nil
}

func (r *MemoryRecordRepository) MergeAppend(ctx context.Context, record *models.Record) (*models.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := -1
	for i := range r.records {
		if r.records[i].Configuration() != record.Configuration() {
			continue
		}
		if target == -1 || olderThan(&r.records[i], &r.records[target]) {
			target = i
		}
	}

	if target == -1 {
		r.records = append(r.records, *record)
		stored := *record
		return &stored, false, nil
	}

	r.records[target].Quantity += record.Quantity
	merged := r.records[target]
	return &merged, true, nil
}

func (r *MemoryRecordRepository) ListAll(ctx context.Context) ([]*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Record, 0, len(r.records))
	for i := range r.records {
		rec := r.records[i]
		out = append(out, &rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRecordRepository) ListByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return aggregation.FilterWindow(all, start, end), nil
}

func (r *MemoryRecordRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored rows
func (r *MemoryRecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func olderThan(a, b *models.Record) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func sortNewestFirst(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return olderThan(records[j], records[i])
	})
}
