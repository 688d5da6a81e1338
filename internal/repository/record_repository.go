package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"item-record-service/internal/models"
)

const recordsTable = "inventory_records"

var recordColumns = []string{"id", "kv", "material", "item_type", "quantity", "recorded_at"}

const (
	stmtAppendRecord  = "append_record"
	stmtListAll       = "list_all"
	stmtMergeQuantity = "merge_quantity"
)

// RecordRepository is the movement store.
type RecordRepository interface {
	// Append inserts a fully resolved record (id and timestamp already set).
	Append(ctx context.Context, record *models.Record) error

	// MergeAppend folds the delta into the oldest record with the same configuration,
	// inserting when none exists. It returns the stored row and whether a merge happened.
	MergeAppend(ctx context.Context, record *models.Record) (*models.Record, bool, error)

	// ListAll returns every record, newest first.
	ListAll(ctx context.Context) ([]*models.Record, error)

	// ListByWindow returns records with start <= timestamp < end, newest first.
	ListByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error)

	Ping(ctx context.Context) error
}

// recordRepository implements RecordRepository on PostgreSQL
type recordRepository struct {
	db      *sql.DB
	stmts   map[string]*sql.Stmt
	builder squirrel.StatementBuilderType
}

// NewRecordRepository prepares the static statements and returns a PostgreSQL-backed store.
func NewRecordRepository(db *sql.DB) (RecordRepository, error) {
	repo := &recordRepository{
		db:      db,
		stmts:   make(map[string]*sql.Stmt),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return repo, nil
}

func (r *recordRepository) prepareStatements() error {
	statements, err := r.statementQueries()
	if err != nil {
		return err
	}

	for name, query := range statements {
		stmt, err := r.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		r.stmts[name] = stmt
	}

	return nil
}

// statementQueries builds the static statements from recordColumns. Arguments
// are bound at execution time.
func (r *recordRepository) statementQueries() (map[string]string, error) {
	placeholders := make([]interface{}, len(recordColumns))

	builders := map[string]squirrel.Sqlizer{
		stmtAppendRecord: r.builder.Insert(recordsTable).
			Columns(recordColumns...).
			Values(placeholders...),
		stmtListAll: r.builder.Select(recordColumns...).
			From(recordsTable).
			OrderBy("recorded_at DESC", "id DESC"),
		stmtMergeQuantity: r.builder.Update(recordsTable).
			Set("quantity", squirrel.Expr("quantity + ?", 0)).
			Where("id = ?", "").
			Suffix("RETURNING quantity"),
	}

	statements := make(map[string]string, len(builders))
	for name, builder := range builders {
		query, _, err := builder.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", name, err)
		}
		statements[name] = query
	}
	return statements, nil
}

// Append inserts a new movement row
func (r *recordRepository) Append(ctx context.Context, record *models.Record) error {
	if err := execAppend(ctx, r.stmts[stmtAppendRecord], record); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// MergeAppend locks the matching row so concurrent merges cannot drop a delta.
func (r *recordRepository) MergeAppend(ctx context.Context, record *models.Record) (*models.Record, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.mergeLookupQuery(record.Configuration())
	if err != nil {
		return nil, false, fmt.Errorf("failed to build merge lookup: %w", err)
	}

	existing, err := scanRecord(tx.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up record for merge: %w", err)
	}

	if existing == nil {
		if err := execAppend(ctx, tx.StmtContext(ctx, r.stmts[stmtAppendRecord]), record); err != nil {
			return nil, false, fmt.Errorf("failed to insert record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit merge: %w", err)
		}
		stored := *record
		return &stored, false, nil
	}

	err = tx.StmtContext(ctx, r.stmts[stmtMergeQuantity]).
		QueryRowContext(ctx, record.Quantity, existing.ID).
		Scan(&existing.Quantity)
	if err != nil {
		return nil, false, fmt.Errorf("failed to merge record %s: %w", existing.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit merge: %w", err)
	}

	return existing, true, nil
}

// ListAll returns the whole ledger
func (r *recordRepository) ListAll(ctx context.Context) ([]*models.Record, error) {
	rows, err := r.stmts[stmtListAll].QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByWindow returns the records of a half-open time window
func (r *recordRepository) ListByWindow(ctx context.Context, start, end time.Time) ([]*models.Record, error) {
	query, args, err := r.windowQuery(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to build window query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records by window: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *recordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *recordRepository) windowQuery(start, end time.Time) (string, []interface{}, error) {
	return r.builder.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.GtOrEq{"recorded_at": start}).
		Where(squirrel.Lt{"recorded_at": end}).
		OrderBy("recorded_at DESC", "id DESC").
		ToSql()
}

func (r *recordRepository) mergeLookupQuery(config models.Configuration) (string, []interface{}, error) {
	return r.builder.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.Eq{
			"kv":        config.KV,
			"material":  config.Material,
			"item_type": config.Type,
		}).
		OrderBy("recorded_at ASC", "id ASC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
}

func execAppend(ctx context.Context, stmt *sql.Stmt, record *models.Record) error {
	_, err := stmt.ExecContext(ctx,
		record.ID, record.KV, record.Material, record.Type, record.Quantity, record.Timestamp,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var record models.Record
	err := row.Scan(
		&record.ID, &record.KV, &record.Material, &record.Type, &record.Quantity, &record.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	record.Timestamp = record.Timestamp.UTC()
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*models.Record, error) {
	records := []*models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
