package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRenamesSynonyms(t *testing.T) {
	table := RawTable{Headers: []string{"InvoiceNo", "Stock Code", "Description", "Qty", "Unit_Price", "Customer ID", "InvoiceDate", "Country", "Channel"}}

	result := Normalize(table)
	assert.Equal(t, []string{
		"order_id", "product_id", "product_name", "quantity", "unit_price",
		"customer_id", "order_date", "country", "Channel",
	}, result.Table.Headers)
	assert.Equal(t, "Stock Code", result.Renamed["product_id"])
	assert.Empty(t, result.Diagnostics)
}

func TestNormalizeKeepsUnknownHeaders(t *testing.T) {
	result := Normalize(RawTable{Headers: []string{"Region", "Sales Rep"}})
	assert.Equal(t, []string{"Region", "Sales Rep"}, result.Table.Headers)
	assert.Empty(t, result.Renamed)
}

func TestNormalizeCollisionLastColumnWins(t *testing.T) {
	result := Normalize(RawTable{Headers: []string{"Price", "UnitPrice", "Quantity"}})

	assert.Equal(t, []string{"Price", "unit_price", "quantity"}, result.Table.Headers)
	assert.Equal(t, "UnitPrice", result.Renamed["unit_price"])
	assert.Equal(t, []string{`Columns "Price" and "UnitPrice" both map to unit_price; using "UnitPrice"`}, result.Diagnostics)
}

func TestNormalizeSuffixesShadowedPassThrough(t *testing.T) {
	result := Normalize(RawTable{Headers: []string{"order_id", "InvoiceNo"}})
	assert.Equal(t, []string{"order_id_source", "order_id"}, result.Table.Headers)
}

func TestCanonicalName(t *testing.T) {
	name, ok := CanonicalName("TotalPrice")
	assert.True(t, ok)
	assert.Equal(t, "total_price", name)

	_, ok = CanonicalName("discount")
	assert.False(t, ok)
}
