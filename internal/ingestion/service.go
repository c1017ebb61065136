package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository"
)

const (
	// AcceptedExtension is matched case-sensitively against upload names.
	AcceptedExtension = ".csv"
	// RecentLogLimit caps RecentLogs.
	RecentLogLimit = 50

	SuccessMessage = "File processed successfully"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Stage names reported by ProcessingError.
const (
	StageParse = "parse"
	StageStore = "store"
	StageLog   = "log"
)

// ProcessingError is a fatal ingestion failure. A failed outcome has already
// been recorded when it is returned, except for StageLog.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Observer receives every terminal outcome, e.g. for metrics.
type Observer interface {
	ObserveOutcome(entry domain.ProcessingLog)
}

// Notifier publishes terminal outcomes to other systems.
type Notifier interface {
	Publish(ctx context.Context, entry domain.ProcessingLog) error
}

// Outcome is returned to callers of Ingest.
type Outcome struct {
	Message          string   `json:"message"`
	RecordsProcessed int      `json:"records_processed"`
	RecordsFailed    int      `json:"records_failed"`
	Errors           []string `json:"errors"`
	ProcessingTime   float64  `json:"processing_time"`

	Log domain.ProcessingLog `json:"-"`
}

// Service runs uploads through the cleaning pipeline and persists them.
type Service struct {
	orders   repository.OrderLineRepository
	logs     repository.ProcessingLogRepository
	observer Observer
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new ingestion service.
func NewService(
	orders repository.OrderLineRepository,
	logs repository.ProcessingLogRepository,
	opts ...Option,
) *Service {
	service := &Service{
		orders: orders,
		logs:   logs,
		logger: slog.Default(),
		tracer: otel.Tracer("ingestion"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Ingest parses, cleans, normalizes and stores one uploaded CSV file and
// records exactly one terminal outcome for it. Names without the .csv suffix
// are rejected with ErrUnsupportedFormat before anything is recorded.
func (s *Service) Ingest(ctx context.Context, fileName string, data []byte) (Outcome, error) {
	if !strings.HasSuffix(fileName, AcceptedExtension) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}

	ctx, span := s.tracer.Start(ctx, "Service.Ingest", trace.WithAttributes(
		attribute.String("file.name", fileName),
		attribute.Int("file.size", len(data)),
	))
	defer span.End()

	start := s.now()
	entry := domain.NewProcessingLog(fileName, start)

	table, err := parseCSV(data)
	if err != nil {
		return s.fail(ctx, span, entry, start, 0, &ProcessingError{Stage: StageParse, Err: err})
	}
	originalCount := len(table.Rows)

	cleaned := Clean(table)
	normalized := Normalize(cleaned.Table)
	coerced := Coerce(normalized.Table)

	diagnostics := make([]string, 0, len(cleaned.Diagnostics)+len(normalized.Diagnostics)+len(coerced.Diagnostics))
	diagnostics = append(diagnostics, cleaned.Diagnostics...)
	diagnostics = append(diagnostics, normalized.Diagnostics...)
	diagnostics = append(diagnostics, coerced.Diagnostics...)

	stored := 0
	if len(coerced.Rows) > 0 {
		lines := toOrderLines(coerced.Rows, fileName, s.now().UTC())
		stored, err = s.orders.InsertMany(ctx, lines)
		if err != nil {
			return s.fail(ctx, span, entry, start, originalCount, &ProcessingError{Stage: StageStore, Err: err})
		}
	}

	entry = entry.Complete(stored, originalCount-stored, diagnostics, s.now().Sub(start))
	if err := s.logs.Record(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record outcome")
		return Outcome{}, &ProcessingError{Stage: StageLog, Err: fmt.Errorf("failed to record outcome: %w", err)}
	}
	s.finish(ctx, entry)

	span.SetAttributes(
		attribute.Int("records.processed", entry.RecordsProcessed),
		attribute.Int("records.failed", entry.RecordsFailed),
	)
	s.logger.Info("file processed",
		"file", fileName,
		"records_processed", entry.RecordsProcessed,
		"records_failed", entry.RecordsFailed,
		"diagnostics", len(entry.Errors),
	)

	return outcomeFromLog(entry), nil
}

// fail records a failed outcome carrying err as the sole diagnostic.
func (s *Service) fail(ctx context.Context, span trace.Span, entry domain.ProcessingLog, start time.Time, failed int, perr *ProcessingError) (Outcome, error) {
	span.RecordError(perr)
	span.SetStatus(codes.Error, perr.Stage)

	entry = entry.Fail(failed, []string{perr.Error()}, s.now().Sub(start))
	if err := s.logs.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record failed outcome", "file", entry.FileName, "error", err)
	} else {
		s.finish(ctx, entry)
	}

	s.logger.Warn("file processing failed", "file", entry.FileName, "stage", perr.Stage, "error", perr.Err)
	return outcomeFromLog(entry), perr
}

func (s *Service) finish(ctx context.Context, entry domain.ProcessingLog) {
	if s.observer != nil {
		s.observer.ObserveOutcome(entry)
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, entry); err != nil {
			s.logger.Warn("failed to publish outcome", "file", entry.FileName, "error", err)
		}
	}
}

// RecentLogs returns the newest outcome records first.
func (s *Service) RecentLogs(ctx context.Context) ([]domain.ProcessingLog, error) {
	logs, err := s.logs.ListRecent(ctx, RecentLogLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	return logs, nil
}

// Clear deletes every stored record and outcome log.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.orders.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear order lines: %w", err)
	}
	if err := s.logs.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear processing logs: %w", err)
	}
	s.logger.Info("cleared all data")
	return nil
}

func toOrderLines(rows []CanonicalRow, fileName string, processedAt time.Time) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.OrderLine{
			ID:          uuid.New(),
			OrderID:     row.OrderID,
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			TotalPrice:  row.TotalPrice,
			CustomerID:  row.CustomerID,
			OrderDate:   row.OrderDate,
			Country:     row.Country,
			Attributes:  row.Attributes,
			SourceFile:  fileName,
			ProcessedAt: processedAt,
		})
	}
	return lines
}

func outcomeFromLog(entry domain.ProcessingLog) Outcome {
	outcome := Outcome{
		Message:          SuccessMessage,
		RecordsProcessed: entry.RecordsProcessed,
		RecordsFailed:    entry.RecordsFailed,
		Errors:           entry.Errors,
		Log:              entry,
	}
	if entry.ProcessingTime != nil {
		outcome.ProcessingTime = *entry.ProcessingTime
	}
	return outcome
}
