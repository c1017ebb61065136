package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository/memory"
)

func TestHandlerOverviewEmpty(t *testing.T) {
	handler := NewHTTPHandler(NewService(memory.NewStore()))

	rec := httptest.NewRecorder()
	handler.Overview(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_records":0,"message":"No data available. Please upload a CSV file first."}`, rec.Body.String())
}

func TestHandlerOverviewPopulated(t *testing.T) {
	store := seed(t, orderLine("A1", "P1", 2, 10, domain.StringPtr("C1"), "2024-01-01T10:00:00"))
	handler := NewHTTPHandler(NewService(store))

	rec := httptest.NewRecorder()
	handler.Overview(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.EqualValues(t, 1, payload["total_records"])
	assert.EqualValues(t, 20, payload["total_revenue"])
	assert.NotContains(t, payload, "message")
}

func TestHandlerInsightsLimit(t *testing.T) {
	c1, c2 := domain.StringPtr("C1"), domain.StringPtr("C2")
	store := seed(t,
		orderLine("A1", "P1", 1, 10, c1, "2024-01-01T10:00:00"),
		orderLine("A2", "P2", 1, 20, c2, "2024-01-01T10:00:00"),
	)
	handler := NewHTTPHandler(NewService(store))

	rec := httptest.NewRecorder()
	handler.Customers(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/customers?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var customers []domain.CustomerInsight
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &customers))
	require.Len(t, customers, 1)
	assert.Equal(t, "C2", customers[0].CustomerID)

	rec = httptest.NewRecorder()
	handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var products []domain.ProductInsight
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestHandlerInsightsRejectsBadLimit(t *testing.T) {
	handler := NewHTTPHandler(NewService(memory.NewStore()))

	for _, query := range []string{"limit=abc", "limit=-1"} {
		rec := httptest.NewRecorder()
		handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/products?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
