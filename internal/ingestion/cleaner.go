package ingestion

import "fmt"

// CleanResult is the outcome of the cleaning stage.
type CleanResult struct {
	Table             RawTable
	DuplicatesRemoved int
	MissingRemoved    int
	Diagnostics       []string
}

// Clean drops exact duplicate rows, keeping the first occurrence, and then
// drops every row that has a missing cell in any column.
func Clean(table RawTable) CleanResult {
	result := CleanResult{Diagnostics: []string{}}

	seen := make(map[string]struct{}, len(table.Rows))
	unique := make([]RawRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		key := row.key()
		if _, dup := seen[key]; dup {
			result.DuplicatesRemoved++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}
	if result.DuplicatesRemoved > 0 {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Removed %d duplicate records", result.DuplicatesRemoved))
	}

	complete := make([]RawRow, 0, len(unique))
	for _, row := range unique {
		if row.HasMissing() {
			result.MissingRemoved++
			continue
		}
		complete = append(complete, row)
	}
	if result.MissingRemoved > 0 {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("Removed %d records with missing values", result.MissingRemoved))
	}

	result.Table = table.withRows(complete)
	return result
}
