package repository

import (
	"context"
	"errors"

	"github.com/rpattn/ecomdata/internal/db"
	"github.com/rpattn/ecomdata/internal/domain"
)

// ErrNotInitialized is returned by repositories constructed without a client.
var ErrNotInitialized = errors.New("repository not initialized")

// OrderLineRepository stores cleaned order records and answers aggregate
// queries over them.
type OrderLineRepository interface {
	InsertMany(ctx context.Context, lines []domain.OrderLine) (int, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Aggregate(ctx context.Context, spec domain.AggregateSpec) ([]domain.AggregateRow, error)
	// FindSorted returns up to limit records ordered by a canonical field;
	// limit <= 0 means no limit.
	FindSorted(ctx context.Context, sortKey string, descending bool, limit int) ([]domain.OrderLine, error)
}

// ProcessingLogRepository stores one outcome record per upload.
type ProcessingLogRepository interface {
	Record(ctx context.Context, entry domain.ProcessingLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.ProcessingLog, error)
	DeleteAll(ctx context.Context) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Orders OrderLineRepository
	Logs   ProcessingLogRepository
	Close  func(ctx context.Context) error
}

// NewPostgresStore wires both repositories onto one pool.
func NewPostgresStore(conn *db.Connection) Store {
	return Store{
		Orders: NewOrderLineRepository(conn),
		Logs:   NewProcessingLogRepository(conn.Pool),
		Close: func(context.Context) error {
			conn.Close()
			return nil
		},
	}
}
