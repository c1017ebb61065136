package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/rpattn/ecomdata/internal/domain"
)

func stage(t *testing.T, d bson.D, name string) any {
	t.Helper()
	require.Len(t, d, 1)
	require.Equal(t, name, d[0].Key)
	return d[0].Value
}

func TestBuildPipelineTopCustomers(t *testing.T) {
	spec := domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldCustomerID}},
		Accumulators: []domain.Accumulator{
			{Name: "spent", Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: "orders", Op: domain.AggregateCountDistinct, Field: domain.FieldOrderID},
		},
		NonNull:    []string{domain.FieldCustomerID},
		SortBy:     "spent",
		Descending: true,
		Limit:      5,
	}

	pipeline, err := BuildPipeline(spec)
	require.NoError(t, err)
	require.Len(t, pipeline, 4)

	match := stage(t, pipeline[0], "$match").(bson.D)
	assert.Equal(t, bson.D{{Key: "customer_id", Value: bson.M{"$ne": nil}}}, match)

	group := stage(t, pipeline[1], "$group").(bson.D)
	assert.Equal(t, bson.E{Key: "_id", Value: bson.D{{Key: "k0", Value: "$customer_id"}}}, group[0])
	assert.Equal(t, bson.E{Key: "m0", Value: bson.M{"$sum": "$total_price"}}, group[1])
	assert.Equal(t, bson.E{Key: "m1", Value: bson.M{"$addToSet": "$order_id"}}, group[2])
	assert.Equal(t, bson.E{Key: "_first", Value: bson.M{"$min": "$_seq"}}, group[3])

	sort := stage(t, pipeline[2], "$sort").(bson.D)
	assert.Equal(t, bson.D{{Key: "m0", Value: -1}, {Key: "_first", Value: 1}}, sort)

	assert.Equal(t, 5, stage(t, pipeline[3], "$limit"))
}

func TestBuildPipelineDayBucketSortsByKey(t *testing.T) {
	pipeline, err := BuildPipeline(domain.AggregateSpec{
		GroupBy:      []domain.GroupKey{{Field: domain.FieldOrderDate, Bucket: domain.BucketDay}},
		Accumulators: []domain.Accumulator{{Name: "revenue", Op: domain.AggregateSum, Field: domain.FieldTotalPrice}},
		SortBy:       domain.FieldOrderDate,
	})
	require.NoError(t, err)
	require.Len(t, pipeline, 2)

	group := stage(t, pipeline[0], "$group").(bson.D)
	id := group[0].Value.(bson.D)
	assert.Equal(t, bson.M{"$substrCP": bson.A{"$order_date", 0, 10}}, id[0].Value)

	sort := stage(t, pipeline[1], "$sort").(bson.D)
	assert.Equal(t, "_id.k0", sort[0].Key)
	assert.Equal(t, 1, sort[0].Value)
}

func TestBuildPipelineUngrouped(t *testing.T) {
	pipeline, err := BuildPipeline(domain.AggregateSpec{
		Accumulators: []domain.Accumulator{{Name: "n", Op: domain.AggregateCount}},
	})
	require.NoError(t, err)
	require.Len(t, pipeline, 1)

	group := stage(t, pipeline[0], "$group").(bson.D)
	assert.Nil(t, group[0].Value)
	assert.Equal(t, bson.M{"$sum": 1}, group[1].Value)
}

func TestBuildPipelineRejectsInvalidSpec(t *testing.T) {
	_, err := BuildPipeline(domain.AggregateSpec{})
	assert.ErrorIs(t, err, domain.ErrInvalidAggregate)
}

func TestDecodeAggregateRow(t *testing.T) {
	spec := domain.AggregateSpec{
		GroupBy: []domain.GroupKey{{Field: domain.FieldProductID}, {Field: domain.FieldProductName}},
		Accumulators: []domain.Accumulator{
			{Name: "revenue", Op: domain.AggregateSum, Field: domain.FieldTotalPrice},
			{Name: "lines", Op: domain.AggregateCount},
			{Name: "orders", Op: domain.AggregateCountDistinct, Field: domain.FieldOrderID},
			{Name: "first", Op: domain.AggregateMin, Field: domain.FieldOrderDate},
		},
	}
	doc := bson.M{
		"_id": bson.D{{Key: "k0", Value: "P1"}, {Key: "k1", Value: nil}},
		"m0":  12.5,
		"m1":  int32(3),
		"m2":  bson.A{"A1", "A2", nil},
		"m3":  "2024-01-01T00:00:00",
	}

	row := decodeAggregateRow(spec, doc)
	assert.Equal(t, "P1", row.Key(domain.FieldProductID))
	assert.Nil(t, row.Keys[domain.FieldProductName])
	assert.Equal(t, 12.5, row.Metrics["revenue"])
	assert.Equal(t, 3.0, row.Metrics["lines"])
	assert.Equal(t, 2.0, row.Metrics["orders"])
	assert.Equal(t, "2024-01-01T00:00:00", row.Text("first"))
}
