package adapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the ingestion engine's Prometheus instrumentation. A nil
// *Metrics is valid everywhere it's used (every method tolerates a nil
// receiver), so adapters and the default driver don't need to branch on
// whether metrics collection is enabled; it's only non-nil when METRICS_ADDR
// is configured.
type Metrics struct {
	documentsTotal   *prometheus.CounterVec
	bytesTotal       *prometheus.CounterVec
	extractionsTotal *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
}

// NewMetrics registers the ingestion counters and histogram with the default
// Prometheus registry and returns a handle for recording them.
func NewMetrics() *Metrics {
	return &Metrics{
		documentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_documents_total",
			Help: "Total documents processed by source and outcome (downloaded, skipped, failed)",
		}, []string{"source", "status"}),

		bytesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_bytes_total",
			Help: "Total bytes downloaded by source",
		}, []string{"source"}),

		extractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_extractions_total",
			Help: "Total text extractions by source and outcome (completed, failed)",
		}, []string{"source", "status"}),

		fetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_fetch_latency_seconds",
			Help:    "Latency of document download requests by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

// RecordDocument increments the document-outcome counter for source
// ("downloaded", "skipped", or "failed").
func (m *Metrics) RecordDocument(source, status string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(source, status).Inc()
}

// RecordBytes adds n to the downloaded-bytes counter for source.
func (m *Metrics) RecordBytes(source string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(source).Add(float64(n))
}

// RecordExtraction increments the extraction-outcome counter for source
// ("completed" or "failed").
func (m *Metrics) RecordExtraction(source, status string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(source, status).Inc()
}

// ObserveFetchLatency records how long a download took for source.
func (m *Metrics) ObserveFetchLatency(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchLatency.WithLabelValues(source).Observe(d.Seconds())
}
