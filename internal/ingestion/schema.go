package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/ecomdata/internal/domain"
)

// RequiredFields must be present after normalization.
var RequiredFields = []string{
	domain.FieldOrderID,
	domain.FieldProductID,
	domain.FieldQuantity,
	domain.FieldUnitPrice,
}

// Month-first layouts tried in order; the first match wins.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"20060102",
}

// Layouts whose values carry an explicit offset.
var zonedLayouts = map[string]struct{}{
	time.RFC3339Nano:            {},
	"2006-01-02 15:04:05Z07:00": {},
	"2006-01-02 15:04:05Z":      {},
	"2006-01-02 15:04:05-0700":  {},
}

// CanonicalRow is a coerced record ready to be stored.
type CanonicalRow struct {
	OrderID     string
	ProductID   string
	ProductName *string
	Quantity    float64
	UnitPrice   float64
	TotalPrice  float64
	CustomerID  *string
	OrderDate   *string
	Country     *string
	Attributes  map[string]string
}

// SchemaResult is the outcome of validation and coercion.
type SchemaResult struct {
	Rows           []CanonicalRow
	MissingColumns []string
	Unparseable    int
	InvalidDates   int
	Diagnostics    []string
}

// Coerce checks required columns and converts rows into CanonicalRow values.
// A missing required column yields no rows. Rows whose quantity or
// unit_price cannot be parsed are excluded; unparseable dates become null.
func Coerce(table RawTable) SchemaResult {
	result := SchemaResult{Rows: []CanonicalRow{}, Diagnostics: []string{}}

	for _, field := range RequiredFields {
		if table.Column(field) < 0 {
			result.MissingColumns = append(result.MissingColumns, field)
		}
	}
	if len(result.MissingColumns) > 0 {
		result.Diagnostics = append(result.Diagnostics,
			"Missing required columns: "+strings.Join(result.MissingColumns, ", "))
		return result
	}

	cols := make(map[string]int, len(domain.CanonicalFields))
	var extra []int
	for idx, header := range table.Headers {
		if domain.IsCanonicalField(header) {
			cols[header] = idx
			continue
		}
		extra = append(extra, idx)
	}

	text := func(row RawRow, field string) *string {
		idx, ok := cols[field]
		if !ok || !row[idx].Valid {
			return nil
		}
		value := row[idx].Value
		return &value
	}

	var badTotals int
	for _, row := range table.Rows {
		quantity, qtyErr := parseNumber(row[cols[domain.FieldQuantity]])
		unitPrice, priceErr := parseNumber(row[cols[domain.FieldUnitPrice]])
		if qtyErr != nil || priceErr != nil {
			result.Unparseable++
			continue
		}

		out := CanonicalRow{
			OrderID:     row[cols[domain.FieldOrderID]].Value,
			ProductID:   row[cols[domain.FieldProductID]].Value,
			ProductName: text(row, domain.FieldProductName),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  quantity * unitPrice,
			CustomerID:  text(row, domain.FieldCustomerID),
			Country:     text(row, domain.FieldCountry),
		}

		if idx, ok := cols[domain.FieldTotalPrice]; ok {
			if total, err := parseNumber(row[idx]); err == nil {
				out.TotalPrice = total
			} else {
				badTotals++
			}
		}

		if raw := text(row, domain.FieldOrderDate); raw != nil {
			if iso, ok := parseOrderDate(*raw); ok {
				out.OrderDate = &iso
			} else {
				result.InvalidDates++
			}
		}

		if len(extra) > 0 {
			out.Attributes = make(map[string]string, len(extra))
			for _, idx := range extra {
				if row[idx].Valid {
					out.Attributes[table.Headers[idx]] = row[idx].Value
				}
			}
		}

		result.Rows = append(result.Rows, out)
	}

	if result.Unparseable > 0 {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
			"Removed %d records with non-numeric %s or %s", result.Unparseable, domain.FieldQuantity, domain.FieldUnitPrice,
		))
	}
	if badTotals > 0 {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
			"Error converting data types: %d %s values are not numeric, derived from %s * %s",
			badTotals, domain.FieldTotalPrice, domain.FieldQuantity, domain.FieldUnitPrice,
		))
	}

	return result
}

func parseNumber(cell Cell) (float64, error) {
	if !cell.Valid {
		return 0, fmt.Errorf("missing value")
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite value %q", cell.Value)
	}
	return value, nil
}

// parseOrderDate parses free-form date text and renders it in ISO 8601.
// Values carrying a zone keep their offset; others are written without one.
func parseOrderDate(raw string) (string, bool) {
	ts, hasZone, err := parseTimestamp(raw)
	if err != nil {
		return "", false
	}
	return formatISO(ts, hasZone), true
}

func parseTimestamp(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			_, zoned := zonedLayouts[layout]
			return ts, zoned, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp format")
}

func formatISO(ts time.Time, hasZone bool) string {
	layout := "2006-01-02T15:04:05"
	if ts.Nanosecond() != 0 {
		layout += ".000000"
	}
	if hasZone {
		layout += "-07:00"
	}
	return ts.Format(layout)
}
