// Package metrics holds the Prometheus counters for download runs. A CLI run
// is short-lived, so metrics are written to a node_exporter textfile rather
// than served.
//
// Exposed series:
//   - earnings_pages_total{outcome}        pages fetched: ok, failed, server_error
//   - earnings_records_written_total       rows appended across all units
//   - earnings_fetch_retries_total         retry attempts inside the page fetcher
//   - earnings_fetch_duration_seconds      per-page fetch latency (retries included)
//   - earnings_units_total{outcome}        units finished: done, aborted, failed
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Page outcomes.
const (
	PageOK          = "ok"
	PageFailed      = "failed"
	PageServerError = "server_error"
)

// Unit outcomes.
const (
	UnitDone    = "done"
	UnitAborted = "aborted"
	UnitFailed  = "failed"
)

// Metrics groups the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	pages          *prometheus.CounterVec
	recordsWritten prometheus.Counter
	retries        prometheus.Counter
	fetchDuration  prometheus.Histogram
	units          *prometheus.CounterVec
}

// New creates Metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "earnings_pages_total",
			Help: "Report pages fetched, by outcome",
		}, []string{"outcome"}),
		recordsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "earnings_records_written_total",
			Help: "New records appended to output files",
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "earnings_fetch_retries_total",
			Help: "Page fetch retry attempts",
		}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earnings_fetch_duration_seconds",
			Help:    "Page fetch duration including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		units: f.NewCounterVec(prometheus.CounterOpts{
			Name: "earnings_units_total",
			Help: "Report units processed, by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePage records one page fetch.
func (m *Metrics) ObservePage(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

// AddRecords counts appended rows.
func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsWritten.Add(float64(n))
}

// IncRetry counts one retry attempt.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// ObserveUnit records a finished unit.
func (m *Metrics) ObserveUnit(outcome string) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes all series in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
