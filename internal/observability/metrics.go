// Package observability groups the service's Prometheus instruments and a
// rolling latency window for per-stage turn timing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. All methods
// are safe on a nil receiver and on unset instrument fields so tests can
// pass nil or a partially built value.
type Metrics struct {
	ActiveParticipants prometheus.Gauge
	Turns              *prometheus.CounterVec
	StageErrors        *prometheus.CounterVec
	SummaryRuns        *prometheus.CounterVec
	TurnLatency        prometheus.Histogram
	Stages             *StageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveParticipants: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_participants",
			Help:      "Number of participants currently on a call.",
		}),
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed patient turns by outcome.",
		}, []string{"outcome"}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Degraded turn stages by stage name.",
		}, []string{"stage"}),
		SummaryRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_runs_total",
			Help:      "Long-term summary updates by result.",
		}, []string{"result"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{200, 500, 1000, 2000, 3000, 5000, 7000, 10000},
		}),
		Stages: NewStageWindow(256),
	}
}

func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if m.Turns != nil {
		m.Turns.WithLabelValues(outcome).Inc()
	}
	if m.TurnLatency != nil {
		m.TurnLatency.Observe(float64(d.Milliseconds()))
	}
}

func (m *Metrics) StageError(stage string) {
	if m == nil || m.StageErrors == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SummaryRun(ok bool) {
	if m == nil || m.SummaryRuns == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.SummaryRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) SetActiveParticipants(n int) {
	if m == nil || m.ActiveParticipants == nil {
		return
	}
	m.ActiveParticipants.Set(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil || m.Stages == nil {
		return
	}
	m.Stages.Observe(stage, float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
