// Package metrics provides Prometheus metrics for the mail triage service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SyncRunsTotal      *prometheus.CounterVec
	SyncDuration       prometheus.Histogram
	MessagesAnalyzed   prometheus.Counter
	TasksCreated       *prometheus.CounterVec
	TasksAutoCompleted prometheus.Counter
	TasksArchived      prometheus.Counter
	LLMCallDuration    *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_sync_runs_total",
				Help: "Total sync runs by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triage_sync_duration_seconds",
				Help:    "Wall-clock duration of a sync run.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		MessagesAnalyzed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_messages_analyzed_total",
				Help: "Inbox messages put through the analysis pipeline.",
			},
		),
		TasksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_tasks_created_total",
				Help: "Tasks written to the ledger by priority.",
			},
			[]string{"priority"},
		),
		TasksAutoCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_tasks_auto_completed_total",
				Help: "Tasks closed by the sent-reply completion scanner.",
			},
		),
		TasksArchived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_tasks_archived_total",
				Help: "Closed tasks swept into the archive.",
			},
		),
		LLMCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_llm_call_duration_seconds",
				Help:    "Model call duration by operation (classify, extract).",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"op"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SyncRunsTotal)
	reg.MustRegister(m.SyncDuration)
	reg.MustRegister(m.MessagesAnalyzed)
	reg.MustRegister(m.TasksCreated)
	reg.MustRegister(m.TasksAutoCompleted)
	reg.MustRegister(m.TasksArchived)
	reg.MustRegister(m.LLMCallDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSyncRun increments the sync counter and observes its duration.
func (m *Metrics) RecordSyncRun(trigger, outcome string, seconds float64) {
	m.SyncRunsTotal.WithLabelValues(trigger, outcome).Inc()
	m.SyncDuration.Observe(seconds)
}

// RecordAnalyzed counts messages put through analysis.
func (m *Metrics) RecordAnalyzed(n int) {
	m.MessagesAnalyzed.Add(float64(n))
}

// RecordTaskCreated increments the created-task counter.
func (m *Metrics) RecordTaskCreated(priority string) {
	m.TasksCreated.WithLabelValues(priority).Inc()
}

// RecordAutoCompleted counts scanner-closed tasks.
func (m *Metrics) RecordAutoCompleted(n int) {
	m.TasksAutoCompleted.Add(float64(n))
}

// RecordArchived counts archived tasks.
func (m *Metrics) RecordArchived(n int) {
	m.TasksArchived.Add(float64(n))
}

// ObserveLLMCall records a model call duration.
func (m *Metrics) ObserveLLMCall(op string, seconds float64) {
	m.LLMCallDuration.WithLabelValues(op).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
