package domain

import (
	"errors"
	"fmt"
)

// AggregateOp names an accumulator function.
type AggregateOp string

const (
	AggregateSum           AggregateOp = "sum"
	AggregateCount         AggregateOp = "count"
	AggregateCountDistinct AggregateOp = "count_distinct"
	AggregateMin           AggregateOp = "min"
	AggregateMax           AggregateOp = "max"
)

// Bucket transforms a group key before grouping.
type Bucket string

const (
	BucketNone Bucket = ""
	// BucketDay truncates an ISO timestamp to its YYYY-MM-DD prefix.
	BucketDay Bucket = "day"
)

// GroupKey is one component of a composite group key.
type GroupKey struct {
	Field  string
	Bucket Bucket
}

// Accumulator computes a named metric per group. Sum works on numeric
// fields, Count ignores Field, CountDistinct ignores nulls, and Min/Max
// compare the stored text.
type Accumulator struct {
	Name  string
	Op    AggregateOp
	Field string
}

// AggregateSpec is a backend-neutral grouped aggregation over order lines.
// An empty GroupBy aggregates all matching records into a single row.
type AggregateSpec struct {
	GroupBy      []GroupKey
	Accumulators []Accumulator
	// NonNull restricts input to records where every listed field is set.
	NonNull []string
	// SortBy names an accumulator or a group key field. Empty keeps the
	// backend's natural group order.
	SortBy     string
	Descending bool
	Limit      int
}

// AggregateRow is one result group.
type AggregateRow struct {
	Keys    map[string]*string
	Metrics map[string]float64
	Texts   map[string]*string
}

// Key returns the group key value for field, or "" when null.
func (r AggregateRow) Key(field string) string {
	if v := r.Keys[field]; v != nil {
		return *v
	}
	return ""
}

// Text returns a min/max result, or "" when no non-null input existed.
func (r AggregateRow) Text(name string) string {
	if v := r.Texts[name]; v != nil {
		return *v
	}
	return ""
}

var ErrInvalidAggregate = errors.New("invalid aggregate spec")

// Validate checks that every field named by the aggregate is canonical and that
// accumulators are applied to fields of a compatible kind.
func (s AggregateSpec) Validate() error {
	if len(s.Accumulators) == 0 {
		return fmt.Errorf("%w: no accumulators", ErrInvalidAggregate)
	}
	names := make(map[string]bool, len(s.Accumulators)+len(s.GroupBy))
	for _, key := range s.GroupBy {
		if !IsCanonicalField(key.Field) {
			return fmt.Errorf("%w: unknown group field %q", ErrInvalidAggregate, key.Field)
		}
		if key.Bucket == BucketDay && key.Field != FieldOrderDate {
			return fmt.Errorf("%w: day bucket requires %s", ErrInvalidAggregate, FieldOrderDate)
		}
		names[key.Field] = true
	}
	for _, acc := range s.Accumulators {
		if acc.Name == "" {
			return fmt.Errorf("%w: accumulator without name", ErrInvalidAggregate)
		}
		if names[acc.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidAggregate, acc.Name)
		}
		names[acc.Name] = true
		switch acc.Op {
		case AggregateCount:
		case AggregateSum:
			if !IsNumericField(acc.Field) {
				return fmt.Errorf("%w: sum requires a numeric field, got %q", ErrInvalidAggregate, acc.Field)
			}
		case AggregateCountDistinct, AggregateMin, AggregateMax:
			if !IsCanonicalField(acc.Field) || IsNumericField(acc.Field) {
				return fmt.Errorf("%w: %s requires a text field, got %q", ErrInvalidAggregate, acc.Op, acc.Field)
			}
		default:
			return fmt.Errorf("%w: unknown op %q", ErrInvalidAggregate, acc.Op)
		}
	}
	for _, field := range s.NonNull {
		if !IsCanonicalField(field) {
			return fmt.Errorf("%w: unknown filter field %q", ErrInvalidAggregate, field)
		}
	}
	if s.SortBy != "" && !names[s.SortBy] {
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidAggregate, s.SortBy)
	}
	if s.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidAggregate)
	}
	return nil
}

// Accumulator looks up an accumulator by name.
func (s AggregateSpec) Accumulator(name string) (Accumulator, bool) {
	for _, acc := range s.Accumulators {
		if acc.Name == name {
			return acc, true
		}
	}
	return Accumulator{}, false
}

// ApplyBucket applies b to a raw key value.
func ApplyBucket(b Bucket, value string) string {
	if b == BucketDay && len(value) >= 10 {
		return value[:10]
	}
	return value
}
