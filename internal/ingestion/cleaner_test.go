package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(values ...string) RawRow {
	out := make(RawRow, len(values))
	for i, v := range values {
		if v == "<missing>" {
			continue
		}
		out[i] = present(v)
	}
	return out
}

func TestCleanRemovesDuplicatesKeepingFirst(t *testing.T) {
	table := RawTable{
		Headers: []string{"a", "b"},
		Rows: []RawRow{
			row("1", "x"),
			row("2", "y"),
			row("1", "x"),
			row("1", "x"),
		},
	}

	result := Clean(table)
	assert.Equal(t, 2, result.DuplicatesRemoved)
	assert.Equal(t, 0, result.MissingRemoved)
	assert.Equal(t, []RawRow{row("1", "x"), row("2", "y")}, result.Table.Rows)
	assert.Equal(t, []string{"Removed 2 duplicate records"}, result.Diagnostics)
}

func TestCleanRemovesRowsWithMissingValues(t *testing.T) {
	table := RawTable{
		Headers: []string{"a", "b", "notes"},
		Rows: []RawRow{
			row("1", "x", "ok"),
			row("2", "y", "<missing>"),
			row("3", "<missing>", "<missing>"),
		},
	}

	result := Clean(table)
	require.Len(t, result.Table.Rows, 1)
	assert.Equal(t, 2, result.MissingRemoved)
	assert.Equal(t, []string{"Removed 2 records with missing values"}, result.Diagnostics)
}

func TestCleanDuplicateMissingRowsCountOnceAsDuplicate(t *testing.T) {
	table := RawTable{
		Headers: []string{"a", "b"},
		Rows: []RawRow{
			row("1", "<missing>"),
			row("1", "<missing>"),
			row("1", ""),
		},
	}

	result := Clean(table)
	assert.Equal(t, 1, result.DuplicatesRemoved)
	assert.Equal(t, 1, result.MissingRemoved)
	assert.Equal(t, []RawRow{row("1", "")}, result.Table.Rows)
}

func TestCleanEmptyTable(t *testing.T) {
	result := Clean(RawTable{Headers: []string{"a"}})
	assert.Empty(t, result.Table.Rows)
	assert.Empty(t, result.Diagnostics)
	assert.NotNil(t, result.Diagnostics)
}
