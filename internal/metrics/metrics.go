// Package metrics provides Prometheus metrics for the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all pipeline metrics.
	MetricsNamespace = "crawlpipe"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "pipeline"
)

// Metrics holds all Prometheus metrics for the pipeline service.
type Metrics struct {
	// Stage metrics
	StageRunsTotal       *prometheus.CounterVec
	StageDurationSeconds *prometheus.HistogramVec

	// Webhook metrics
	WebhooksReceivedTotal *prometheus.CounterVec
	WebhooksIgnoredTotal  *prometheus.CounterVec

	// Extraction metrics
	PagesExtractedTotal     prometheus.Counter
	ExtractionFailuresTotal prometheus.Counter

	// Pipeline outcome metrics
	PipelinesFinishedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		StageRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "stage_runs_total",
				Help:      "Total number of stage executions",
			},
			[]string{"stage", "outcome"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Duration of stage executions in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"stage"},
		),
		WebhooksReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "webhooks_received_total",
				Help:      "Total number of crawl webhooks received",
			},
			[]string{"event_type"},
		),
		WebhooksIgnoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "webhooks_ignored_total",
				Help:      "Total number of webhooks acknowledged without effect",
			},
			[]string{"reason"}, // unknown_run, duplicate
		),
		PagesExtractedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "pages_extracted_total",
				Help:      "Total number of pages with content layers extracted",
			},
		),
		ExtractionFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "extraction_failures_total",
				Help:      "Total number of pages whose extraction failed",
			},
		),
		PipelinesFinishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "pipelines_finished_total",
				Help:      "Total number of pipelines reaching a terminal state",
			},
			[]string{"outcome"}, // complete, error
		),
	}
}

// RecordStageRun records one stage execution.
func (m *Metrics) RecordStageRun(stage, outcome string, durationSeconds float64) {
	m.StageRunsTotal.WithLabelValues(stage, outcome).Inc()
	m.StageDurationSeconds.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordWebhookReceived records an incoming crawl webhook.
func (m *Metrics) RecordWebhookReceived(eventType string) {
	m.WebhooksReceivedTotal.WithLabelValues(eventType).Inc()
}

// RecordWebhookIgnored records a webhook acknowledged without effect.
func (m *Metrics) RecordWebhookIgnored(reason string) {
	m.WebhooksIgnoredTotal.WithLabelValues(reason).Inc()
}

// RecordExtraction records one page extraction attempt.
func (m *Metrics) RecordExtraction(success bool) {
	if success {
		m.PagesExtractedTotal.Inc()
	} else {
		m.ExtractionFailuresTotal.Inc()
	}
}

// RecordPipelineFinished records a pipeline reaching a terminal state.
func (m *Metrics) RecordPipelineFinished(outcome string) {
	m.PipelinesFinishedTotal.WithLabelValues(outcome).Inc()
}
