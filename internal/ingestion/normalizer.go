package ingestion

import (
	"fmt"
	"strings"

	"github.com/rpattn/ecomdata/internal/domain"
)

// columnSynonyms maps normalized header names to canonical field names.
var columnSynonyms = map[string]string{
	"invoiceno":   domain.FieldOrderID,
	"invoice":     domain.FieldOrderID,
	"orderid":     domain.FieldOrderID,
	"stockcode":   domain.FieldProductID,
	"productid":   domain.FieldProductID,
	"sku":         domain.FieldProductID,
	"description": domain.FieldProductName,
	"productname": domain.FieldProductName,
	"product":     domain.FieldProductName,
	"quantity":    domain.FieldQuantity,
	"qty":         domain.FieldQuantity,
	"unitprice":   domain.FieldUnitPrice,
	"price":       domain.FieldUnitPrice,
	"totalprice":  domain.FieldTotalPrice,
	"customerid":  domain.FieldCustomerID,
	"customer":    domain.FieldCustomerID,
	"invoicedate": domain.FieldOrderDate,
	"date":        domain.FieldOrderDate,
	"orderdate":   domain.FieldOrderDate,
	"country":     domain.FieldCountry,
}

// NormalizeResult is the outcome of column normalization.
type NormalizeResult struct {
	Table RawTable
	// Renamed maps canonical names to the source header that supplied them.
	Renamed     map[string]string
	Diagnostics []string
}

// normalizeColumnName lower-cases a header and strips spaces and underscores.
func normalizeColumnName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	return strings.ReplaceAll(name, "_", "")
}

// CanonicalName returns the canonical field for a source header, if any.
func CanonicalName(header string) (string, bool) {
	canonical, ok := columnSynonyms[normalizeColumnName(header)]
	return canonical, ok
}

// Normalize renames recognized columns to their canonical names. Columns are
// applied left to right; when two columns map onto the same canonical name
// the later one wins and the earlier one keeps its source header.
func Normalize(table RawTable) NormalizeResult {
	result := NormalizeResult{
		Renamed:     make(map[string]string),
		Diagnostics: []string{},
	}

	headers := append([]string(nil), table.Headers...)
	owner := make(map[string]int)
	for idx, header := range table.Headers {
		canonical, ok := CanonicalName(header)
		if !ok {
			continue
		}
		if prev, taken := owner[canonical]; taken {
			headers[prev] = table.Headers[prev]
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
				"Columns %q and %q both map to %s; using %q",
				table.Headers[prev], header, canonical, header,
			))
		}
		owner[canonical] = idx
		headers[idx] = canonical
		result.Renamed[canonical] = header
	}

	// A pass-through header may now shadow a canonical one; keep names unique.
	for idx, header := range headers {
		if canonical, ok := owner[header]; ok && canonical != idx {
			headers[idx] = header + "_source"
		}
	}

	result.Table = RawTable{Headers: headers, Rows: table.Rows}
	return result
}
