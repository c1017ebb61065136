package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpattn/ecomdata/internal/domain"
)

type Registry struct {
	reg            *prometheus.Registry
	Uploads        *prometheus.CounterVec
	RecordsStored  prometheus.Counter
	RecordsFailed  prometheus.Counter
	Diagnostics    prometheus.Counter
	ProcessingTime prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecom_uploads_total",
		Help: "Uploads that reached a terminal state, by status.",
	}, []string{"status"})
	stored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecom_records_stored_total",
		Help: "Order lines persisted by completed uploads.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecom_records_failed_total",
		Help: "Rows removed or rejected during uploads.",
	})
	diagnostics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecom_upload_diagnostics_total",
		Help: "Diagnostic messages recorded on processing logs.",
	})
	processing := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecom_upload_processing_seconds",
		Help:    "Wall time spent processing an upload.",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(
		uploads, stored, failed, diagnostics, processing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:            r,
		Uploads:        uploads,
		RecordsStored:  stored,
		RecordsFailed:  failed,
		Diagnostics:    diagnostics,
		ProcessingTime: processing,
	}
}

// ObserveOutcome records a terminal processing log.
func (r *Registry) ObserveOutcome(entry domain.ProcessingLog) {
	r.Uploads.WithLabelValues(string(entry.Status)).Inc()
	r.RecordsStored.Add(float64(entry.RecordsProcessed))
	r.RecordsFailed.Add(float64(entry.RecordsFailed))
	r.Diagnostics.Add(float64(len(entry.Errors)))
	if entry.ProcessingTime != nil {
		r.ProcessingTime.Observe(*entry.ProcessingTime)
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
