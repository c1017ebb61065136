package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/ecomdata/internal/db"
	"github.com/rpattn/ecomdata/internal/domain"
)

const orderLinesTable = "order_lines"

// copyBatchSize bounds the rows sent per COPY round-trip.
const copyBatchSize = 5000

var orderLineColumns = []string{
	"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "total_price",
	"customer_id", "order_date", "country", "attributes", "source_file", "processed_at",
}

type orderLineRepository struct {
	conn *db.Connection
	sb   sq.StatementBuilderType
}

// NewOrderLineRepository wires a repository backed by pgxpool.
func NewOrderLineRepository(conn *db.Connection) OrderLineRepository {
	return &orderLineRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *orderLineRepository) ready() error {
	if r.conn == nil || r.conn.Pool == nil {
		return fmt.Errorf("order line %w", ErrNotInitialized)
	}
	return nil
}

// InsertMany copies all lines inside one transaction so a failed batch
// leaves nothing behind.
func (r *orderLineRepository) InsertMany(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		var attributes any
		if len(line.Attributes) > 0 {
			encoded, err := json.Marshal(line.Attributes)
			if err != nil {
				return 0, fmt.Errorf("failed to encode attributes: %w", err)
			}
			attributes = string(encoded)
		}
		rows = append(rows, []any{
			line.ID,
			line.OrderID,
			line.ProductID,
			line.ProductName,
			line.Quantity,
			line.UnitPrice,
			line.TotalPrice,
			line.CustomerID,
			line.OrderDate,
			line.Country,
			attributes,
			line.SourceFile,
			line.ProcessedAt,
		})
	}

	var inserted int64
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for start := 0; start < len(rows); start += copyBatchSize {
			end := min(start+copyBatchSize, len(rows))
			n, err := tx.CopyFrom(ctx, pgx.Identifier{orderLinesTable}, orderLineColumns, pgx.CopyFromRows(rows[start:end]))
			if err != nil {
				return fmt.Errorf("failed to copy order lines: %w", err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

func (r *orderLineRepository) DeleteAll(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	query, args, err := r.sb.Delete(orderLinesTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.conn.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete order lines: %w", err)
	}
	return nil
}

func (r *orderLineRepository) Count(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	query, args, err := r.sb.Select("COUNT(*)").From(orderLinesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var count int64
	if err := r.conn.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count order lines: %w", err)
	}
	return count, nil
}

func (r *orderLineRepository) Aggregate(ctx context.Context, spec domain.AggregateSpec) ([]domain.AggregateRow, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	plan, err := buildAggregateQuery(r.sb, spec)
	if err != nil {
		return nil, err
	}
	query, args, err := plan.builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregate query: %w", err)
	}
	defer rows.Close()

	results := []domain.AggregateRow{}
	for rows.Next() {
		row, scanErr := plan.scan(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", scanErr)
		}
		results = append(results, row)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate aggregate rows: %w", rowsErr)
	}
	return results, nil
}

func (r *orderLineRepository) FindSorted(ctx context.Context, sortKey string, descending bool, limit int) ([]domain.OrderLine, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if !domain.IsCanonicalField(sortKey) {
		return nil, fmt.Errorf("unknown sort key %q", sortKey)
	}

	builder := r.sb.Select(orderLineColumns...).
		From(orderLinesTable).
		OrderBy(orderClause(sortKey, descending), "seq")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find query: %w", err)
	}

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		var (
			line        domain.OrderLine
			productName pgtype.Text
			customerID  pgtype.Text
			orderDate   pgtype.Text
			country     pgtype.Text
			attributes  []byte
			processedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&productName,
			&line.Quantity,
			&line.UnitPrice,
			&line.TotalPrice,
			&customerID,
			&orderDate,
			&country,
			&attributes,
			&line.SourceFile,
			&processedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", scanErr)
		}

		line.ProductName = textPtr(productName)
		line.CustomerID = textPtr(customerID)
		line.OrderDate = textPtr(orderDate)
		line.Country = textPtr(country)
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &line.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode attributes: %w", err)
			}
		}
		if processedAt.Valid {
			line.ProcessedAt = processedAt.Time
		}

		lines = append(lines, line)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate order lines: %w", rowsErr)
	}
	return lines, nil
}

func textPtr(value pgtype.Text) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

// orderClause sorts nulls first ascending and last descending, matching the
// document and memory stores.
func orderClause(column string, descending bool) string {
	if descending {
		return column + " DESC NULLS LAST"
	}
	return column + " ASC NULLS FIRST"
}
