package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/ecomdata/internal/domain"
)

// aggregatePlan is a compiled AggregateSpec plus the knowledge needed to map
// result columns back onto an AggregateRow.
type aggregatePlan struct {
	builder sq.SelectBuilder
	spec    domain.AggregateSpec
}

// buildAggregateQuery compiles spec into SQL. Only canonical column names are
// ever interpolated; aliases are positional (k0.., m0..).
func buildAggregateQuery(sb sq.StatementBuilderType, spec domain.AggregateSpec) (aggregatePlan, error) {
	if err := spec.Validate(); err != nil {
		return aggregatePlan{}, err
	}

	var (
		columns []string
		groupBy []string
		aliases = make(map[string]string)
	)
	for idx, key := range spec.GroupBy {
		alias := fmt.Sprintf("k%d", idx)
		columns = append(columns, fmt.Sprintf("%s AS %s", keyExpression(key), alias))
		groupBy = append(groupBy, alias)
		aliases[key.Field] = alias
	}
	for idx, acc := range spec.Accumulators {
		alias := fmt.Sprintf("m%d", idx)
		columns = append(columns, fmt.Sprintf("%s AS %s", accumulatorExpression(acc), alias))
		aliases[acc.Name] = alias
	}

	builder := sb.Select(columns...).From(orderLinesTable)
	for _, field := range spec.NonNull {
		builder = builder.Where(sq.NotEq{field: nil})
	}
	if len(groupBy) > 0 {
		builder = builder.GroupBy(groupBy...)
	}

	var orderBy []string
	if spec.SortBy != "" {
		orderBy = append(orderBy, orderClause(aliases[spec.SortBy], spec.Descending))
	}
	if len(groupBy) > 0 {
		// first-seen group wins ties
		orderBy = append(orderBy, "MIN(seq)")
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}
	if spec.Limit > 0 {
		builder = builder.Limit(uint64(spec.Limit))
	}

	return aggregatePlan{builder: builder, spec: spec}, nil
}

func keyExpression(key domain.GroupKey) string {
	if key.Bucket == domain.BucketDay {
		return fmt.Sprintf("substring(%s from 1 for 10)", key.Field)
	}
	return key.Field
}

func accumulatorExpression(acc domain.Accumulator) string {
	switch acc.Op {
	case domain.AggregateSum:
		return fmt.Sprintf("COALESCE(SUM(%s), 0)::double precision", acc.Field)
	case domain.AggregateCount:
		return "COUNT(*)::double precision"
	case domain.AggregateCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)::double precision", acc.Field)
	case domain.AggregateMin:
		return fmt.Sprintf("MIN(%s)", acc.Field)
	default:
		return fmt.Sprintf("MAX(%s)", acc.Field)
	}
}

func (p aggregatePlan) scan(rows pgx.Rows) (domain.AggregateRow, error) {
	keys := make([]pgtype.Text, len(p.spec.GroupBy))
	metrics := make([]float64, len(p.spec.Accumulators))
	texts := make([]pgtype.Text, len(p.spec.Accumulators))

	dest := make([]any, 0, len(keys)+len(metrics))
	for i := range keys {
		dest = append(dest, &keys[i])
	}
	for i, acc := range p.spec.Accumulators {
		switch acc.Op {
		case domain.AggregateMin, domain.AggregateMax:
			dest = append(dest, &texts[i])
		default:
			dest = append(dest, &metrics[i])
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.AggregateRow{}, err
	}

	row := domain.AggregateRow{
		Keys:    make(map[string]*string, len(keys)),
		Metrics: make(map[string]float64),
		Texts:   make(map[string]*string),
	}
	for i, key := range p.spec.GroupBy {
		row.Keys[key.Field] = textPtr(keys[i])
	}
	for i, acc := range p.spec.Accumulators {
		switch acc.Op {
		case domain.AggregateMin, domain.AggregateMax:
			row.Texts[acc.Name] = textPtr(texts[i])
		default:
			row.Metrics[acc.Name] = metrics[i]
		}
	}
	return row, nil
}
