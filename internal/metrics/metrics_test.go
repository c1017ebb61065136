package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/ecomdata/internal/domain"
)

// gathered returns counter values keyed by family name plus label values.
func gathered(t *testing.T, r *Registry) map[string]float64 {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += "/" + label.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestObserveOutcome(t *testing.T) {
	registry := NewRegistry()

	now := time.Now()
	registry.ObserveOutcome(domain.NewProcessingLog("a.csv", now).Complete(9, 1, []string{"Removed 1 duplicate records"}, time.Second))
	registry.ObserveOutcome(domain.NewProcessingLog("b.csv", now).Fail(4, []string{"disk full"}, time.Second))

	values := gathered(t, registry)
	assert.Equal(t, 1.0, values["ecom_uploads_total/completed"])
	assert.Equal(t, 1.0, values["ecom_uploads_total/failed"])
	assert.Equal(t, 9.0, values["ecom_records_stored_total"])
	assert.Equal(t, 5.0, values["ecom_records_failed_total"])
	assert.Equal(t, 2.0, values["ecom_upload_diagnostics_total"])
	assert.Equal(t, 2.0, values["ecom_upload_processing_seconds"])
}

func TestHandlerServesExposition(t *testing.T) {
	registry := NewRegistry()
	registry.ObserveOutcome(domain.NewProcessingLog("a.csv", time.Now()).Complete(1, 0, nil, time.Millisecond))

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecom_uploads_total{status="completed"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	for _, name := range []string{
		"ecom_uploads_total", "ecom_records_stored_total", "ecom_records_failed_total",
		"ecom_upload_diagnostics_total", "ecom_upload_processing_seconds",
	} {
		assert.Contains(t, rec.Body.String(), "# HELP "+name+" ")
	}
}
