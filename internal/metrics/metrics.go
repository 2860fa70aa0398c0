// Package metrics exposes Prometheus instrumentation for the discovery
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	CrawlListings prometheus.Counter
	ImportsTotal  *prometheus.CounterVec
}

// New registers the collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "runs_total",
			Help:      "Completed discovery runs by terminal outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discovery",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		CrawlListings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "crawl_listings_total",
			Help:      "Listings collected by the crawl dispatcher.",
		}),
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Name:      "imports_total",
			Help:      "Import attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.RunsTotal, m.StageDuration, m.CrawlListings, m.ImportsTotal)
	return m
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CountRun records a terminal run outcome label.
func (m *Metrics) CountRun(outcome string) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// CountImports records import results from one run.
func (m *Metrics) CountImports(imported, duplicates, failed int) {
	m.ImportsTotal.WithLabelValues("imported").Add(float64(imported))
	m.ImportsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	m.ImportsTotal.WithLabelValues("failed").Add(float64(failed))
}
