package domain

import "encoding/json"

// EmptyDataMessage is returned by analytics when nothing has been uploaded.
const EmptyDataMessage = "No data available. Please upload a CSV file first."

// Overview is the analytics payload. Only TotalRecords and Message are set
// when the store is empty.
type Overview struct {
	TotalRecords    int64             `json:"total_records"`
	Message         string            `json:"message,omitempty"`
	TotalRevenue    float64           `json:"total_revenue"`
	UniqueCustomers int64             `json:"unique_customers"`
	UniqueProducts  int64             `json:"unique_products"`
	DateRange       DateRange         `json:"date_range"`
	TopProducts     []ProductRevenue  `json:"top_products"`
	TopCustomers    []CustomerRevenue `json:"top_customers"`
	DailyRevenue    []DailyRevenue    `json:"daily_revenue"`
}

// EmptyOverview is the payload served before any upload.
func EmptyOverview() Overview {
	return Overview{TotalRecords: 0, Message: EmptyDataMessage}
}

// Empty reports whether the overview is the empty-state payload.
func (o Overview) Empty() bool {
	return o.TotalRecords == 0
}

// MarshalJSON drops the aggregate sections from the empty-state payload.
func (o Overview) MarshalJSON() ([]byte, error) {
	if o.Empty() {
		return json.Marshal(struct {
			TotalRecords int64  `json:"total_records"`
			Message      string `json:"message"`
		}{o.TotalRecords, o.Message})
	}
	type overview Overview
	return json.Marshal(overview(o))
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ProductRevenue struct {
	ProductID     string  `json:"product_id"`
	ProductName   *string `json:"product_name"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalQuantity float64 `json:"total_quantity"`
	OrderCount    int64   `json:"order_count"`
}

type CustomerRevenue struct {
	CustomerID string  `json:"customer_id"`
	TotalSpent float64 `json:"total_spent"`
	OrderCount int64   `json:"order_count"`
}

type DailyRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Orders  int64   `json:"orders"`
}

// CustomerInsight summarizes one customer's purchases.
type CustomerInsight struct {
	CustomerID    string  `json:"customer_id"`
	TotalOrders   int64   `json:"total_orders"`
	TotalSpent    float64 `json:"total_spent"`
	AvgOrderValue float64 `json:"avg_order_value"`
	FirstPurchase string  `json:"first_purchase"`
	LastPurchase  string  `json:"last_purchase"`
}

// ProductInsight summarizes one product's sales.
type ProductInsight struct {
	ProductID     string  `json:"product_id"`
	ProductName   *string `json:"product_name"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
	AvgPrice      float64 `json:"avg_price"`
	OrdersCount   int64   `json:"orders_count"`
}
