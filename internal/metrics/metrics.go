// Package metrics exposes Prometheus instruments for the scrape pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded by ScrapeRequests.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Pipeline stages recorded by StageDuration.
const (
	StageFetch   = "fetch"
	StageConvert = "convert"
	StageUpload  = "upload"
	StageRecord  = "record"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageIndex   = "index"
)

// Metrics holds the service's instruments.
type Metrics struct {
	ScrapeRequests   *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	UsageLogsDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supavec",
			Name:      "scrape_requests_total",
			Help:      "Scrape requests by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supavec",
			Name:      "pipeline_stage_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 80},
		}, []string{"stage"}),
		UsageLogsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supavec",
			Name:      "usage_logs_dropped_total",
			Help:      "Usage log entries dropped because the queue was full.",
		}),
	}

	reg.MustRegister(m.ScrapeRequests, m.StageDuration, m.UsageLogsDropped)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// NewNop returns instruments registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveStage records the time since start for stage. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// CountRequest increments the request counter for outcome. Safe on a nil receiver.
func (m *Metrics) CountRequest(outcome string) {
	if m == nil {
		return
	}
	m.ScrapeRequests.WithLabelValues(outcome).Inc()
}

// CountDropped increments the dropped usage log counter. Safe on a nil receiver.
func (m *Metrics) CountDropped() {
	if m == nil {
		return
	}
	m.UsageLogsDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
