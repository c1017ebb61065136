package analytics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository"
)

const (
	TopProductsLimit  = 5
	TopCustomersLimit = 5
	DailyRevenueLimit = 30

	DefaultInsightLimit = 20
	MaxInsightLimit     = 100
)

// Accumulator and metric names used by the aggregates below.
const (
	metricRevenue   = "revenue"
	metricQuantity  = "quantity"
	metricCount     = "count"
	metricCustomers = "customers"
	metricProducts  = "products"
	metricFirstDate = "first_date"
	metricLastDate  = "last_date"
	metricUnitPrice = "unit_price"
)

var (
	summarySpec = domain.AggregateSpec{
		Accumulators: []domain.Accumulator{
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricCustomers, Op: domain.AggregateCountDistinct, Field: domain.FieldCustomerID},
			{Name: metricProducts, Op: domain.AggregateCountDistinct, Field: domain.FieldProductID},
			{Name: metricFirstDate, Op: domain.AggregateMin, Field: domain.FieldOrderDate},
			{Name: metricLastDate, Op: domain.AggregateMax, Field: domain.FieldOrderDate},
		},
	}

	topProductsSpec = domain.AggregateSpec{
		GroupBy: []domain.GroupKey{
			{Field: domain.FieldProductID},
			{Field: domain.FieldProductName},
		},
		Accumulators: []domain.Accumulator{
			{Name: metricQuantity, Op: domain.AggregateSum, Field: domain.FieldQuantity},
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricCount, Op: domain.AggregateCount},
		},
		SortBy:     metricRevenue,
		Descending: true,
		Limit:      TopProductsLimit,
	}

	topCustomersSpec = domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldCustomerID}},
		Accumulators: []domain.Accumulator{
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricCount, Op: domain.AggregateCount},
		},
		NonNull:    []string{domain.FieldCustomerID},
		SortBy:     metricRevenue,
		Descending: true,
		Limit:      TopCustomersLimit,
	}

	dailyRevenueSpec = domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldOrderDate, Bucket: domain.BucketDay}},
		Accumulators: []domain.Accumulator{
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricCount, Op: domain.AggregateCount},
		},
		NonNull: []string{domain.FieldOrderDate},
		SortBy:  domain.FieldOrderDate,
		Limit:   DailyRevenueLimit,
	}
)

// Service computes read-only aggregates over stored order lines.
type Service struct {
	orders repository.OrderLineRepository
	tracer trace.Tracer
}

// NewService creates a new analytics service.
func NewService(orders repository.OrderLineRepository) *Service {
	return &Service{
		orders: orders,
		tracer: otel.Tracer("analytics"),
	}
}

// Overview returns the dashboard payload, or the empty-state payload when
// nothing has been stored. The four aggregations run concurrently.
func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Overview")
	defer span.End()

	total, err := s.orders.Count(ctx)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("failed to count order lines: %w", err)
	}
	span.SetAttributes(attribute.Int64("records.total", total))
	if total == 0 {
		return domain.EmptyOverview(), nil
	}

	var (
		summary   []domain.AggregateRow
		products  []domain.AggregateRow
		customers []domain.AggregateRow
		daily     []domain.AggregateRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.orders.Aggregate(gctx, summarySpec)
		if err != nil {
			return fmt.Errorf("failed to aggregate summary: %w", err)
		}
		summary = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.orders.Aggregate(gctx, topProductsSpec)
		if err != nil {
			return fmt.Errorf("failed to aggregate top products: %w", err)
		}
		products = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.orders.Aggregate(gctx, topCustomersSpec)
		if err != nil {
			return fmt.Errorf("failed to aggregate top customers: %w", err)
		}
		customers = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.orders.Aggregate(gctx, dailyRevenueSpec)
		if err != nil {
			return fmt.Errorf("failed to aggregate daily revenue: %w", err)
		}
		daily = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.Overview{}, err
	}

	overview := domain.Overview{
		TotalRecords: total,
		TopProducts:  make([]domain.ProductRevenue, 0, len(products)),
		TopCustomers: make([]domain.CustomerRevenue, 0, len(customers)),
		DailyRevenue: make([]domain.DailyRevenue, 0, len(daily)),
	}

	// An ungrouped aggregate yields one row; some backends yield none when
	// nothing matched.
	if len(summary) > 0 {
		row := summary[0]
		overview.TotalRevenue = row.Metrics[metricRevenue]
		overview.UniqueCustomers = int64(row.Metrics[metricCustomers])
		overview.UniqueProducts = int64(row.Metrics[metricProducts])
		overview.DateRange = domain.DateRange{
			Start: row.Text(metricFirstDate),
			End:   row.Text(metricLastDate),
		}
	}

	for _, row := range products {
		overview.TopProducts = append(overview.TopProducts, domain.ProductRevenue{
			ProductID:     row.Key(domain.FieldProductID),
			ProductName:   row.Keys[domain.FieldProductName],
			TotalRevenue:  row.Metrics[metricRevenue],
			TotalQuantity: row.Metrics[metricQuantity],
			OrderCount:    int64(row.Metrics[metricCount]),
		})
	}
	for _, row := range customers {
		overview.TopCustomers = append(overview.TopCustomers, domain.CustomerRevenue{
			CustomerID: row.Key(domain.FieldCustomerID),
			TotalSpent: row.Metrics[metricRevenue],
			OrderCount: int64(row.Metrics[metricCount]),
		})
	}
	for _, row := range daily {
		overview.DailyRevenue = append(overview.DailyRevenue, domain.DailyRevenue{
			Date:    row.Key(domain.FieldOrderDate),
			Revenue: row.Metrics[metricRevenue],
			Orders:  int64(row.Metrics[metricCount]),
		})
	}

	return overview, nil
}

// CustomerInsights ranks customers by total spend.
func (s *Service) CustomerInsights(ctx context.Context, limit int) ([]domain.CustomerInsight, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CustomerInsights")
	defer span.End()

	spec := domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldCustomerID}},
		Accumulators: []domain.Accumulator{
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricCount, Op: domain.AggregateCount},
			{Name: metricFirstDate, Op: domain.AggregateMin, Field: domain.FieldOrderDate},
			{Name: metricLastDate, Op: domain.AggregateMax, Field: domain.FieldOrderDate},
		},
		NonNull:    []string{domain.FieldCustomerID},
		SortBy:     metricRevenue,
		Descending: true,
		Limit:      clampLimit(limit),
	}
	rows, err := s.orders.Aggregate(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate customer insights: %w", err)
	}

	insights := make([]domain.CustomerInsight, 0, len(rows))
	for _, row := range rows {
		orders := int64(row.Metrics[metricCount])
		spent := row.Metrics[metricRevenue]
		insights = append(insights, domain.CustomerInsight{
			CustomerID:    row.Key(domain.FieldCustomerID),
			TotalOrders:   orders,
			TotalSpent:    spent,
			AvgOrderValue: average(spent, orders),
			FirstPurchase: row.Text(metricFirstDate),
			LastPurchase:  row.Text(metricLastDate),
		})
	}
	return insights, nil
}

// ProductInsights ranks products by revenue.
func (s *Service) ProductInsights(ctx context.Context, limit int) ([]domain.ProductInsight, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ProductInsights")
	defer span.End()

	spec := domain.AggregateSpec{
		GroupBy: []domain.GroupKey{
			{Field: domain.FieldProductID},
			{Field: domain.FieldProductName},
		},
		Accumulators: []domain.Accumulator{
			{Name: metricQuantity, Op: domain.AggregateSum, Field: domain.FieldQuantity},
			{Name: metricRevenue, Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: metricUnitPrice, Op: domain.AggregateSum, Field: domain.FieldUnitPrice},
			{Name: metricCount, Op: domain.AggregateCount},
		},
		SortBy:     metricRevenue,
		Descending: true,
		Limit:      clampLimit(limit),
	}
	rows, err := s.orders.Aggregate(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate product insights: %w", err)
	}

	insights := make([]domain.ProductInsight, 0, len(rows))
	for _, row := range rows {
		count := int64(row.Metrics[metricCount])
		insights = append(insights, domain.ProductInsight{
			ProductID:     row.Key(domain.FieldProductID),
			ProductName:   row.Keys[domain.FieldProductName],
			TotalQuantity: row.Metrics[metricQuantity],
			TotalRevenue:  row.Metrics[metricRevenue],
			AvgPrice:      average(row.Metrics[metricUnitPrice], count),
			OrdersCount:   count,
		})
	}
	return insights, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultInsightLimit
	case limit > MaxInsightLimit:
		return MaxInsightLimit
	default:
		return limit
	}
}

func average(total float64, count int64) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
