package memory

import (
	"sort"
	"strings"

	"github.com/rpattn/ecomdata/internal/domain"
)

type groupState struct {
	keys     map[string]*string
	sums     map[string]float64
	counts   map[string]float64
	distinct map[string]map[string]struct{}
	texts    map[string]*string
}

// Evaluate runs an aggregate spec over lines. Groups keep first-seen order,
// which also breaks ties when sorting.
func Evaluate(lines []domain.OrderLine, spec domain.AggregateSpec) ([]domain.AggregateRow, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	index := make(map[string]*groupState)
	var order []*groupState

	for _, line := range lines {
		if !matchesNonNull(line, spec.NonNull) {
			continue
		}

		keys, composite := groupKeys(line, spec.GroupBy)
		state, ok := index[composite]
		if !ok {
			state = &groupState{
				keys:     keys,
				sums:     make(map[string]float64),
				counts:   make(map[string]float64),
				distinct: make(map[string]map[string]struct{}),
				texts:    make(map[string]*string),
			}
			index[composite] = state
			order = append(order, state)
		}

		for _, acc := range spec.Accumulators {
			accumulate(state, acc, line)
		}
	}

	rows := make([]domain.AggregateRow, 0, len(order))
	for _, state := range order {
		rows = append(rows, state.row(spec))
	}

	if spec.SortBy != "" {
		sortRows(rows, spec)
	}
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}
	return rows, nil
}

func matchesNonNull(line domain.OrderLine, fields []string) bool {
	for _, field := range fields {
		if _, ok := line.Text(field); !ok {
			return false
		}
	}
	return true
}

func groupKeys(line domain.OrderLine, groupBy []domain.GroupKey) (map[string]*string, string) {
	keys := make(map[string]*string, len(groupBy))
	var b strings.Builder
	for _, key := range groupBy {
		value, ok := line.Text(key.Field)
		if !ok {
			keys[key.Field] = nil
			b.WriteString("\x00-")
			continue
		}
		value = domain.ApplyBucket(key.Bucket, value)
		keys[key.Field] = &value
		b.WriteString("\x00+")
		b.WriteString(value)
	}
	return keys, b.String()
}

func accumulate(state *groupState, acc domain.Accumulator, line domain.OrderLine) {
	switch acc.Op {
	case domain.AggregateSum:
		value, _ := line.Number(acc.Field)
		state.sums[acc.Name] += value
	case domain.AggregateCount:
		state.counts[acc.Name]++
	case domain.AggregateCountDistinct:
		value, ok := line.Text(acc.Field)
		if !ok {
			return
		}
		set := state.distinct[acc.Name]
		if set == nil {
			set = make(map[string]struct{})
			state.distinct[acc.Name] = set
		}
		set[value] = struct{}{}
	case domain.AggregateMin, domain.AggregateMax:
		value, ok := line.Text(acc.Field)
		if !ok {
			return
		}
		current := state.texts[acc.Name]
		if current == nil ||
			(acc.Op == domain.AggregateMin && value < *current) ||
			(acc.Op == domain.AggregateMax && value > *current) {
			v := value
			state.texts[acc.Name] = &v
		}
	}
}

func (g *groupState) row(spec domain.AggregateSpec) domain.AggregateRow {
	row := domain.AggregateRow{
		Keys:    g.keys,
		Metrics: make(map[string]float64),
		Texts:   make(map[string]*string),
	}
	for _, acc := range spec.Accumulators {
		switch acc.Op {
		case domain.AggregateSum:
			row.Metrics[acc.Name] = g.sums[acc.Name]
		case domain.AggregateCount:
			row.Metrics[acc.Name] = g.counts[acc.Name]
		case domain.AggregateCountDistinct:
			row.Metrics[acc.Name] = float64(len(g.distinct[acc.Name]))
		case domain.AggregateMin, domain.AggregateMax:
			row.Texts[acc.Name] = g.texts[acc.Name]
		}
	}
	return row
}

func sortRows(rows []domain.AggregateRow, spec domain.AggregateSpec) {
	compare := func(a, b domain.AggregateRow) int {
		if acc, ok := spec.Accumulator(spec.SortBy); ok {
			switch acc.Op {
			case domain.AggregateMin, domain.AggregateMax:
				x, y := a.Texts[acc.Name], b.Texts[acc.Name]
				return compareOptional(deref(x), x != nil, deref(y), y != nil)
			default:
				return compareFloat(a.Metrics[acc.Name], b.Metrics[acc.Name])
			}
		}
		x, y := a.Keys[spec.SortBy], b.Keys[spec.SortBy]
		return compareOptional(deref(x), x != nil, deref(y), y != nil)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i], rows[j])
		if spec.Descending {
			return c > 0
		}
		return c < 0
	})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOptional(a string, okA bool, b string, okB bool) int {
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
