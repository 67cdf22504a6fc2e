package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rankforge/crawlpipe/internal/metrics"
)

func TestRecordStageRun(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.RecordStageRun("discover_sitemap", "success", 1.5)
	m.RecordStageRun("discover_sitemap", "success", 0.5)
	m.RecordStageRun("discover_sitemap", "error", 0.1)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("discover_sitemap", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("discover_sitemap", "error")))
}

func TestRecordWebhookCounters(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.RecordWebhookReceived("ACTOR.RUN.SUCCEEDED")
	m.RecordWebhookIgnored("unknown_run")
	m.RecordWebhookIgnored("duplicate")
	m.RecordWebhookIgnored("duplicate")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.WebhooksReceivedTotal.WithLabelValues("ACTOR.RUN.SUCCEEDED")))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.WebhooksIgnoredTotal.WithLabelValues("duplicate")))
}

func TestRecordExtraction(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.RecordExtraction(true)
	m.RecordExtraction(true)
	m.RecordExtraction(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PagesExtractedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExtractionFailuresTotal))
}
