// Package mongostore persists order lines and processing logs in MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository"
)

const (
	OrderLinesCollection     = "ecommerce_data"
	ProcessingLogsCollection = "processing_logs"
)

// Config selects the deployment and database.
type Config struct {
	URL      string `mapstructure:"url" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// NewStore wires both repositories onto one database.
func NewStore(client *mongo.Client, database string) repository.Store {
	db := client.Database(database)
	return repository.Store{
		Orders: &OrderLineRepository{coll: db.Collection(OrderLinesCollection)},
		Logs:   &ProcessingLogRepository{coll: db.Collection(ProcessingLogsCollection)},
		Close:  client.Disconnect,
	}
}

type orderLineDocument struct {
	ID          string            `bson:"_id"`
	Seq         int64             `bson:"_seq"`
	OrderID     string            `bson:"order_id"`
	ProductID   string            `bson:"product_id"`
	ProductName *string           `bson:"product_name,omitempty"`
	Quantity    float64           `bson:"quantity"`
	UnitPrice   float64           `bson:"unit_price"`
	TotalPrice  float64           `bson:"total_price"`
	CustomerID  *string           `bson:"customer_id,omitempty"`
	OrderDate   *string           `bson:"order_date,omitempty"`
	Country     *string           `bson:"country,omitempty"`
	Attributes  map[string]string `bson:"attributes,omitempty"`
	SourceFile  string            `bson:"source_file"`
	ProcessedAt time.Time         `bson:"processed_at"`
}

func toOrderLineDocument(line domain.OrderLine, seq int64) orderLineDocument {
	return orderLineDocument{
		ID:          line.ID.String(),
		Seq:         seq,
		OrderID:     line.OrderID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		TotalPrice:  line.TotalPrice,
		CustomerID:  line.CustomerID,
		OrderDate:   line.OrderDate,
		Country:     line.Country,
		Attributes:  line.Attributes,
		SourceFile:  line.SourceFile,
		ProcessedAt: line.ProcessedAt,
	}
}

func (d orderLineDocument) toDomain() (domain.OrderLine, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.OrderLine{}, fmt.Errorf("invalid order line id %q: %w", d.ID, err)
	}
	return domain.OrderLine{
		ID:          id,
		OrderID:     d.OrderID,
		ProductID:   d.ProductID,
		ProductName: d.ProductName,
		Quantity:    d.Quantity,
		UnitPrice:   d.UnitPrice,
		TotalPrice:  d.TotalPrice,
		CustomerID:  d.CustomerID,
		OrderDate:   d.OrderDate,
		Country:     d.Country,
		Attributes:  d.Attributes,
		SourceFile:  d.SourceFile,
		ProcessedAt: d.ProcessedAt,
	}, nil
}

// OrderLineRepository stores order lines in the ecommerce_data collection.
type OrderLineRepository struct {
	coll *mongo.Collection
}

func (r *OrderLineRepository) InsertMany(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if r.coll == nil {
		return 0, fmt.Errorf("order line %w", repository.ErrNotInitialized)
	}
	if len(lines) == 0 {
		return 0, nil
	}

	// _seq preserves insertion order for tie-breaks.
	base := time.Now().UnixNano()
	docs := make([]any, 0, len(lines))
	for idx, line := range lines {
		docs = append(docs, toOrderLineDocument(line, base+int64(idx)))
	}

	res, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("failed to insert order lines: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (r *OrderLineRepository) DeleteAll(ctx context.Context) error {
	if r.coll == nil {
		return fmt.Errorf("order line %w", repository.ErrNotInitialized)
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to delete order lines: %w", err)
	}
	return nil
}

func (r *OrderLineRepository) Count(ctx context.Context) (int64, error) {
	if r.coll == nil {
		return 0, fmt.Errorf("order line %w", repository.ErrNotInitialized)
	}
	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count order lines: %w", err)
	}
	return count, nil
}

func (r *OrderLineRepository) Aggregate(ctx context.Context, spec domain.AggregateSpec) ([]domain.AggregateRow, error) {
	if r.coll == nil {
		return nil, fmt.Errorf("order line %w", repository.ErrNotInitialized)
	}
	pipeline, err := BuildPipeline(spec)
	if err != nil {
		return nil, err
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregate pipeline: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate results: %w", err)
	}

	rows := make([]domain.AggregateRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, decodeAggregateRow(spec, doc))
	}
	return rows, nil
}

func (r *OrderLineRepository) FindSorted(ctx context.Context, sortKey string, descending bool, limit int) ([]domain.OrderLine, error) {
	if r.coll == nil {
		return nil, fmt.Errorf("order line %w", repository.ErrNotInitialized)
	}
	if !domain.IsCanonicalField(sortKey) {
		return nil, fmt.Errorf("unknown sort key %q", sortKey)
	}

	direction := 1
	if descending {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: direction}, {Key: "_seq", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	var docs []orderLineDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode order lines: %w", err)
	}

	lines := make([]domain.OrderLine, 0, len(docs))
	for _, doc := range docs {
		line, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

type processingLogDocument struct {
	ID               string    `bson:"_id"`
	FileName         string    `bson:"filename"`
	Status           string    `bson:"status"`
	RecordsProcessed int       `bson:"records_processed"`
	RecordsFailed    int       `bson:"records_failed"`
	Errors           []string  `bson:"errors"`
	Timestamp        time.Time `bson:"timestamp"`
	ProcessingTime   *float64  `bson:"processing_time"`
}

// ProcessingLogRepository stores outcome records in processing_logs.
type ProcessingLogRepository struct {
	coll *mongo.Collection
}

func (r *ProcessingLogRepository) Record(ctx context.Context, entry domain.ProcessingLog) error {
	if r.coll == nil {
		return fmt.Errorf("processing log %w", repository.ErrNotInitialized)
	}
	errs := entry.Errors
	if errs == nil {
		errs = []string{}
	}
	doc := processingLogDocument{
		ID:               entry.ID.String(),
		FileName:         entry.FileName,
		Status:           string(entry.Status),
		RecordsProcessed: entry.RecordsProcessed,
		RecordsFailed:    entry.RecordsFailed,
		Errors:           errs,
		Timestamp:        entry.Timestamp,
		ProcessingTime:   entry.ProcessingTime,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record processing log: %w", err)
	}
	return nil
}

func (r *ProcessingLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ProcessingLog, error) {
	if r.coll == nil {
		return nil, fmt.Errorf("processing log %w", repository.ErrNotInitialized)
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	var docs []processingLogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode processing logs: %w", err)
	}

	logs := make([]domain.ProcessingLog, 0, len(docs))
	for _, doc := range docs {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid processing log id %q: %w", doc.ID, err)
		}
		errs := doc.Errors
		if errs == nil {
			errs = []string{}
		}
		logs = append(logs, domain.ProcessingLog{
			ID:               id,
			FileName:         doc.FileName,
			Status:           domain.ProcessingStatus(doc.Status),
			RecordsProcessed: doc.RecordsProcessed,
			RecordsFailed:    doc.RecordsFailed,
			Errors:           errs,
			Timestamp:        doc.Timestamp,
			ProcessingTime:   doc.ProcessingTime,
		})
	}
	return logs, nil
}

func (r *ProcessingLogRepository) DeleteAll(ctx context.Context) error {
	if r.coll == nil {
		return fmt.Errorf("processing log %w", repository.ErrNotInitialized)
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to delete processing logs: %w", err)
	}
	return nil
}
