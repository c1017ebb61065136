package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/ecomdata/internal/analytics"
	"github.com/rpattn/ecomdata/internal/export"
	"github.com/rpattn/ecomdata/internal/ingestion"
	"github.com/rpattn/ecomdata/internal/metrics"
	"github.com/rpattn/ecomdata/internal/repository/memory"
)

const ordersCSV = `Invoice,SKU,Product Name,Qty,Price,Customer,Order Date,Country
1001,P1,Mug,2,5.00,C1,2024-03-01 10:00:00,Germany
1001,P2,Plate,1,12.00,C1,2024-03-01 10:00:00,Germany
1002,P1,Mug,4,5.00,C2,2024-03-02 09:15:00,France
1002,P1,Mug,4,5.00,C2,2024-03-02 09:15:00,France
`

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	repos := memory.NewStore().Repositories()
	registry := metrics.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(Deps{
		Ingestion: ingestion.NewService(repos.Orders, repos.Logs, ingestion.WithObserver(registry), ingestion.WithLogger(logger)),
		Analytics: analytics.NewService(repos.Orders),
		Export:    export.NewService(repos.Orders),
		Metrics:   registry.Handler(),
		Logger:    logger,
	}, opts)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, baseURL, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(baseURL+"/api/upload", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestRouterEndToEnd(t *testing.T) {
	srv := newTestServer(t, Options{})

	var root map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/", &root))
	assert.Equal(t, RootMessage, root["message"])

	var empty map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/analytics/overview", &empty))
	assert.EqualValues(t, 0, empty["total_records"])
	assert.Contains(t, empty, "message")

	resp := upload(t, srv.URL, "orders.csv", ordersCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var outcome map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.EqualValues(t, 3, outcome["records_processed"])
	assert.EqualValues(t, 1, outcome["records_failed"])

	var overview map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/analytics/overview", &overview))
	assert.EqualValues(t, 3, overview["total_records"])
	assert.EqualValues(t, 42, overview["total_revenue"])
	assert.EqualValues(t, 2, overview["unique_customers"])
	assert.Equal(t, map[string]any{"start": "2024-03-01T10:00:00", "end": "2024-03-02T09:15:00"}, overview["date_range"])

	var logs []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/logs", &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "completed", logs[0]["status"])
	assert.Equal(t, "orders.csv", logs[0]["filename"])

	exportResp, err := http.Get(srv.URL + "/api/data/export?format=csv")
	require.NoError(t, err)
	defer exportResp.Body.Close()
	assert.Equal(t, http.StatusOK, exportResp.StatusCode)
	assert.Equal(t, "3", exportResp.Header.Get("X-Export-Rows"))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/data/clear", nil)
	require.NoError(t, err)
	clearResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer clearResp.Body.Close()
	assert.Equal(t, http.StatusOK, clearResp.StatusCode)

	var cleared map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/analytics/overview", &cleared))
	assert.EqualValues(t, 0, cleared["total_records"])

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/logs", &logs))
	assert.Empty(t, logs)
}

func TestRouterRejectsNonCSVUpload(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := upload(t, srv.URL, "orders.xlsx", ordersCSV)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var logs []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/logs", &logs))
	assert.Empty(t, logs)
}

func TestRouterRateLimitsUploads(t *testing.T) {
	srv := newTestServer(t, Options{UploadRPS: 0.001, UploadBurst: 1})

	assert.Equal(t, http.StatusOK, upload(t, srv.URL, "a.csv", ordersCSV).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, upload(t, srv.URL, "b.csv", ordersCSV).StatusCode)

	var logs []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/logs", &logs))
	assert.Len(t, logs, 1)
}

func TestRouterCORSAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	upload(t, srv.URL, "orders.csv", ordersCSV)
	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ecom_uploads_total{status="completed"} 1`)
}
