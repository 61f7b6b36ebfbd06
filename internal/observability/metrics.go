// Package observability holds the Prometheus instruments shared by the
// conversation and extraction packages. A nil *Metrics is valid and records
// nothing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatkeeper"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConversations prometheus.Gauge
	Turns               *prometheus.CounterVec
	DroppedTurns        prometheus.Counter
	Summaries           *prometheus.CounterVec
	SummaryLatency      prometheus.Histogram
	Extractions         *prometheus.CounterVec
	ExtractionScore     prometheus.Histogram
	FieldValid          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments with reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConversations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of live conversations.",
		}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns recorded by speaker.",
		}, []string{"speaker"}),
		DroppedTurns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_dropped_total",
			Help:      "Turns removed by truncation.",
		}),
		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summarization attempts by result.",
		}, []string{"result"}),
		SummaryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_latency_ms",
			Help:      "Latency of summarization calls in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000},
		}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extractions by status.",
		}, []string{"status"}),
		ExtractionScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_score",
			Help:      "Overall score of completed extractions.",
			Buckets:   []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		}),
		FieldValid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_checks_total",
			Help:      "Field validation outcomes by field and result.",
		}, []string{"field", "result"}),
		gatherer: reg,
	}
}

func (m *Metrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.ActiveConversations.Set(float64(n))
}

func (m *Metrics) TurnRecorded(speaker string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(speaker).Inc()
}

func (m *Metrics) TurnsDropped(n int) {
	if m == nil {
		return
	}
	m.DroppedTurns.Add(float64(n))
}

func (m *Metrics) SummaryCreated() {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues("ok").Inc()
}

func (m *Metrics) SummaryFailed() {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues("error").Inc()
}

func (m *Metrics) ObserveSummaryLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.SummaryLatency.Observe(float64(d.Milliseconds()))
}

// ExtractionDone records one extraction outcome. score is only observed for
// completed extractions.
func (m *Metrics) ExtractionDone(status string, score float64, fields map[string]bool) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(status).Inc()
	if status == "failed" {
		return
	}
	m.ExtractionScore.Observe(score)
	for f, ok := range fields {
		result := "invalid"
		if ok {
			result = "valid"
		}
		m.FieldValid.WithLabelValues(f, result).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
