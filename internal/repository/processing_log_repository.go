package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/ecomdata/internal/domain"
)

const processingLogsTable = "processing_logs"

type processingLogRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewProcessingLogRepository wires a repository backed by pgxpool.
func NewProcessingLogRepository(pool *pgxpool.Pool) ProcessingLogRepository {
	return &processingLogRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *processingLogRepository) Record(ctx context.Context, entry domain.ProcessingLog) error {
	if r.pool == nil {
		return fmt.Errorf("processing log %w", ErrNotInitialized)
	}

	errs := entry.Errors
	if errs == nil {
		errs = []string{}
	}

	query, args, err := r.sb.Insert(processingLogsTable).
		Columns("id", "filename", "status", "records_processed", "records_failed", "errors", `"timestamp"`, "processing_time").
		Values(entry.ID, entry.FileName, string(entry.Status), entry.RecordsProcessed, entry.RecordsFailed, errs, entry.Timestamp, entry.ProcessingTime).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record processing log: %w", err)
	}
	return nil
}

func (r *processingLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ProcessingLog, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("processing log %w", ErrNotInitialized)
	}

	builder := r.sb.Select("id", "filename", "status", "records_processed", "records_failed", "errors", `"timestamp"`, "processing_time").
		From(processingLogsTable).
		OrderBy(`"timestamp" DESC`)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ProcessingLog{}
	for rows.Next() {
		var (
			entry          domain.ProcessingLog
			status         string
			timestamp      pgtype.Timestamptz
			processingTime pgtype.Float8
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.FileName,
			&status,
			&entry.RecordsProcessed,
			&entry.RecordsFailed,
			&entry.Errors,
			&timestamp,
			&processingTime,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan processing log: %w", scanErr)
		}

		entry.Status = domain.ProcessingStatus(status)
		if timestamp.Valid {
			entry.Timestamp = timestamp.Time
		}
		if processingTime.Valid {
			value := processingTime.Float64
			entry.ProcessingTime = &value
		}
		if entry.Errors == nil {
			entry.Errors = []string{}
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate processing logs: %w", rowsErr)
	}

	return logs, nil
}

func (r *processingLogRepository) DeleteAll(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("processing log %w", ErrNotInitialized)
	}
	query, args, err := r.sb.Delete(processingLogsTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete processing logs: %w", err)
	}
	return nil
}
