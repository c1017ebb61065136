package ingestion

import "strings"

// Cell is one parsed value. Valid is false for missing values.
type Cell struct {
	Value string
	Valid bool
}

func present(value string) Cell {
	return Cell{Value: value, Valid: true}
}

// RawRow is a row prior to type coercion.
type RawRow []Cell

// HasMissing reports whether any cell is missing.
func (r RawRow) HasMissing() bool {
	for _, cell := range r {
		if !cell.Valid {
			return true
		}
	}
	return false
}

// key encodes the row so that equal rows produce equal keys and missing
// cells compare equal to each other but never to a present empty string.
func (r RawRow) key() string {
	var b strings.Builder
	for _, cell := range r {
		if !cell.Valid {
			b.WriteString("\x00-")
			continue
		}
		b.WriteString("\x00+")
		b.WriteString(strings.ReplaceAll(cell.Value, "\x00", "\x00\x00"))
	}
	return b.String()
}

// RawTable is a header plus rows, all rows padded to the header width.
type RawTable struct {
	Headers []string
	Rows    []RawRow
}

// Column returns the index of the named column or -1.
func (t RawTable) Column(name string) int {
	for idx, header := range t.Headers {
		if header == name {
			return idx
		}
	}
	return -1
}

func (t RawTable) withRows(rows []RawRow) RawTable {
	return RawTable{Headers: t.Headers, Rows: rows}
}
