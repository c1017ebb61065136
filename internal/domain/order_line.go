package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Canonical field names shared by the pipeline, the stores and analytics.
const (
	FieldOrderID     = "order_id"
	FieldProductID   = "product_id"
	FieldProductName = "product_name"
	FieldQuantity    = "quantity"
	FieldUnitPrice   = "unit_price"
	FieldTotalPrice  = "total_price"
	FieldCustomerID  = "customer_id"
	FieldOrderDate   = "order_date"
	FieldCountry     = "country"
)

// CanonicalFields lists the canonical columns in export order.
var CanonicalFields = []string{
	FieldOrderID,
	FieldProductID,
	FieldProductName,
	FieldQuantity,
	FieldUnitPrice,
	FieldTotalPrice,
	FieldCustomerID,
	FieldOrderDate,
	FieldCountry,
}

// OrderLine is a persisted, cleaned order record.
type OrderLine struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     string            `json:"order_id"`
	ProductID   string            `json:"product_id"`
	ProductName *string           `json:"product_name,omitempty"`
	Quantity    float64           `json:"quantity"`
	UnitPrice   float64           `json:"unit_price"`
	TotalPrice  float64           `json:"total_price"`
	CustomerID  *string           `json:"customer_id,omitempty"`
	OrderDate   *string           `json:"order_date,omitempty"`
	Country     *string           `json:"country,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	SourceFile  string            `json:"source_file"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// Text returns the textual value of a canonical field. Numeric fields are
// formatted; ok is false when the field is null or unknown.
func (l OrderLine) Text(field string) (string, bool) {
	switch field {
	case FieldOrderID:
		return l.OrderID, true
	case FieldProductID:
		return l.ProductID, true
	case FieldProductName:
		return deref(l.ProductName)
	case FieldCustomerID:
		return deref(l.CustomerID)
	case FieldOrderDate:
		return deref(l.OrderDate)
	case FieldCountry:
		return deref(l.Country)
	case FieldQuantity, FieldUnitPrice, FieldTotalPrice:
		value, _ := l.Number(field)
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Number returns the numeric value of quantity, unit_price or total_price.
func (l OrderLine) Number(field string) (float64, bool) {
	switch field {
	case FieldQuantity:
		return l.Quantity, true
	case FieldUnitPrice:
		return l.UnitPrice, true
	case FieldTotalPrice:
		return l.TotalPrice, true
	default:
		return 0, false
	}
}

// IsNumericField reports whether the canonical field holds a number.
func IsNumericField(field string) bool {
	switch field {
	case FieldQuantity, FieldUnitPrice, FieldTotalPrice:
		return true
	default:
		return false
	}
}

// IsCanonicalField reports whether name is one of the canonical columns.
func IsCanonicalField(name string) bool {
	for _, field := range CanonicalFields {
		if field == name {
			return true
		}
	}
	return false
}

func deref(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	return *value, true
}

// StringPtr returns a pointer to a copy of value.
func StringPtr(value string) *string {
	return &value
}
