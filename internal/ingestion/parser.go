package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	// ErrEmptyFile is returned when an upload has no header row.
	ErrEmptyFile = errors.New("no columns to parse from file")

	// Tokens read as missing values, matching the pandas read_csv defaults.
	missingTokens = map[string]struct{}{
		"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
		"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
		"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
	}
)

func parseCSV(payload []byte) (RawTable, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	rest, err := io.ReadAll(reader)
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to read csv: %w", err)
	}
	if !utf8.Valid(rest) {
		return RawTable{}, errors.New("file is not valid UTF-8 text")
	}

	csvReader := csv.NewReader(bytes.NewReader(rest))
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return buildTable(records)
}

func buildTable(records [][]string) (RawTable, error) {
	if len(records) == 0 {
		return RawTable{}, ErrEmptyFile
	}

	headers := sanitizeHeaders(records[0])
	rows := make([]RawRow, 0, len(records)-1)
	for idx, record := range records[1:] {
		if len(record) > len(headers) {
			return RawTable{}, fmt.Errorf("expected %d fields in line %d, saw %d", len(headers), idx+2, len(record))
		}
		rows = append(rows, padRow(record, len(headers)))
	}

	return RawTable{Headers: headers, Rows: rows}, nil
}

// sanitizeHeaders trims header names, names blank columns by position and
// suffixes repeated names with .1, .2 and so on.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", idx)
		}

		base := name
		count := seen[base]
		for count > 0 {
			name = fmt.Sprintf("%s.%d", base, count)
			if _, taken := seen[name]; !taken {
				break
			}
			count++
		}
		seen[base] = count + 1
		if name != base {
			seen[name] = 1
		}

		headers[idx] = name
	}

	return headers
}

func padRow(record []string, length int) RawRow {
	row := make(RawRow, length)
	for i := 0; i < length; i++ {
		if i >= len(record) {
			continue
		}
		if _, missing := missingTokens[record[i]]; missing {
			continue
		}
		row[i] = present(record[i])
	}
	return row
}
