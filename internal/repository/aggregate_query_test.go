package repository

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/ecomdata/internal/domain"
)

var testBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func TestBuildAggregateQueryDailyRevenue(t *testing.T) {
	plan, err := buildAggregateQuery(testBuilder, domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldOrderDate, Bucket: domain.BucketDay}},
		Accumulators: []domain.Accumulator{
			{Name: "revenue", Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: "orders", Op: domain.AggregateCountDistinct, Field: domain.FieldOrderID},
		},
		NonNull: []string{domain.FieldOrderDate},
		SortBy:  domain.FieldOrderDate,
		Limit:   30,
	})
	require.NoError(t, err)

	query, args, err := plan.builder.ToSql()
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Contains(t, query, "substring(order_date from 1 for 10) AS k0")
	assert.Contains(t, query, "COALESCE(SUM(total_price), 0)::double precision AS m0")
	assert.Contains(t, query, "COUNT(DISTINCT order_id)::double precision AS m1")
	assert.Contains(t, query, "FROM order_lines")
	assert.Contains(t, query, "WHERE order_date IS NOT NULL")
	assert.Contains(t, query, "GROUP BY k0")
	assert.Contains(t, query, "ORDER BY k0 ASC NULLS FIRST, MIN(seq)")
	assert.Contains(t, query, "LIMIT 30")
}

func TestBuildAggregateQueryDescendingMetric(t *testing.T) {
	plan, err := buildAggregateQuery(testBuilder, domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldCustomerID}},
		Accumulators: []domain.Accumulator{
			{Name: "spent", Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: "first", Op: domain.AggregateMin, Field: domain.FieldOrderDate},
		},
		SortBy:     "spent",
		Descending: true,
	})
	require.NoError(t, err)

	query, _, err := plan.builder.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "MIN(order_date) AS m1")
	assert.Contains(t, query, "ORDER BY m0 DESC NULLS LAST, MIN(seq)")
	assert.NotContains(t, query, "LIMIT")
	assert.NotContains(t, query, "WHERE")
}

func TestBuildAggregateQueryUngrouped(t *testing.T) {
	plan, err := buildAggregateQuery(testBuilder, domain.AggregateSpec{
		Accumulators: []domain.Accumulator{
			{Name: "records", Op: domain.AggregateCount},
			{Name: "latest", Op: domain.AggregateMax, Field: domain.FieldOrderDate},
		},
	})
	require.NoError(t, err)

	query, _, err := plan.builder.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "COUNT(*)::double precision AS m0")
	assert.Contains(t, query, "MAX(order_date) AS m1")
	assert.NotContains(t, query, "GROUP BY")
	assert.NotContains(t, query, "ORDER BY")
}

func TestBuildAggregateQueryRejectsInvalidSpec(t *testing.T) {
	_, err := buildAggregateQuery(testBuilder, domain.AggregateSpec{
		Accumulators: []domain.Accumulator{{Name: "x", Op: domain.AggregateSum, Field: "discount; DROP TABLE order_lines"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAggregate)
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "order_date ASC NULLS FIRST", orderClause("order_date", false))
	assert.Equal(t, "m0 DESC NULLS LAST", orderClause("m0", true))
}

func TestRepositoriesRequireConnection(t *testing.T) {
	repo := &orderLineRepository{}
	_, err := repo.Count(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}
