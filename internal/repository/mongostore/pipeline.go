package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rpattn/ecomdata/internal/domain"
)

// firstSeen holds the smallest _seq of each group and breaks sort ties.
const firstSeen = "_first"

// BuildPipeline compiles an AggregateSpec into an aggregation pipeline.
// Group keys land under _id.k<i>; accumulators under m<i>.
func BuildPipeline(spec domain.AggregateSpec) (mongo.Pipeline, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var pipeline mongo.Pipeline

	if len(spec.NonNull) > 0 {
		match := bson.D{}
		for _, field := range spec.NonNull {
			match = append(match, bson.E{Key: field, Value: bson.M{"$ne": nil}})
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	var id any
	if len(spec.GroupBy) > 0 {
		keys := bson.D{}
		for idx, key := range spec.GroupBy {
			keys = append(keys, bson.E{Key: keyAlias(idx), Value: groupExpression(key)})
		}
		id = keys
	}

	group := bson.D{{Key: "_id", Value: id}}
	for idx, acc := range spec.Accumulators {
		group = append(group, bson.E{Key: metricAlias(idx), Value: accumulatorExpression(acc)})
	}
	group = append(group, bson.E{Key: firstSeen, Value: bson.M{"$min": "$_seq"}})
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: group}})

	sort := bson.D{}
	if spec.SortBy != "" {
		direction := 1
		if spec.Descending {
			direction = -1
		}
		sort = append(sort, bson.E{Key: sortPath(spec), Value: direction})
	}
	if len(spec.GroupBy) > 0 {
		sort = append(sort, bson.E{Key: firstSeen, Value: 1})
	}
	if len(sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	if spec.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: spec.Limit}})
	}
	return pipeline, nil
}

func keyAlias(idx int) string    { return fmt.Sprintf("k%d", idx) }
func metricAlias(idx int) string { return fmt.Sprintf("m%d", idx) }

func groupExpression(key domain.GroupKey) any {
	if key.Bucket == domain.BucketDay {
		return bson.M{"$substrCP": bson.A{"$" + key.Field, 0, 10}}
	}
	return "$" + key.Field
}

func accumulatorExpression(acc domain.Accumulator) bson.M {
	switch acc.Op {
	case domain.AggregateSum:
		return bson.M{"$sum": "$" + acc.Field}
	case domain.AggregateCount:
		return bson.M{"$sum": 1}
	case domain.AggregateCountDistinct:
		return bson.M{"$addToSet": "$" + acc.Field}
	case domain.AggregateMin:
		return bson.M{"$min": "$" + acc.Field}
	default:
		return bson.M{"$max": "$" + acc.Field}
	}
}

func sortPath(spec domain.AggregateSpec) string {
	for idx, acc := range spec.Accumulators {
		if acc.Name == spec.SortBy {
			return metricAlias(idx)
		}
	}
	for idx, key := range spec.GroupBy {
		if key.Field == spec.SortBy {
			return "_id." + keyAlias(idx)
		}
	}
	return spec.SortBy
}

func decodeAggregateRow(spec domain.AggregateSpec, doc bson.M) domain.AggregateRow {
	row := domain.AggregateRow{
		Keys:    make(map[string]*string, len(spec.GroupBy)),
		Metrics: make(map[string]float64),
		Texts:   make(map[string]*string),
	}
	id := doc["_id"]
	for idx, key := range spec.GroupBy {
		row.Keys[key.Field] = stringValue(lookup(id, keyAlias(idx)))
	}
	for idx, acc := range spec.Accumulators {
		value := doc[metricAlias(idx)]
		switch acc.Op {
		case domain.AggregateCountDistinct:
			row.Metrics[acc.Name] = float64(countNonNull(value))
		case domain.AggregateMin, domain.AggregateMax:
			row.Texts[acc.Name] = stringValue(value)
		default:
			row.Metrics[acc.Name] = floatValue(value)
		}
	}
	return row
}

func lookup(doc any, key string) any {
	switch d := doc.(type) {
	case bson.M:
		return d[key]
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value
			}
		}
	}
	return nil
}

func stringValue(value any) *string {
	switch v := value.(type) {
	case string:
		return &v
	case nil:
		return nil
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

func floatValue(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func countNonNull(value any) int {
	items, ok := value.(bson.A)
	if !ok {
		return 0
	}
	count := 0
	for _, item := range items {
		if item != nil {
			count++
		}
	}
	return count
}
