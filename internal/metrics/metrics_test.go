package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewNop()

	m.CountRequest(OutcomeSuccess)
	m.CountRequest(OutcomeSuccess)
	m.CountRequest(OutcomeUnauthorized)
	m.CountDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapeRequests.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapeRequests.WithLabelValues(OutcomeUnauthorized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageLogsDropped))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.CountRequest(OutcomeError)
	m.CountDropped()
	m.ObserveStage(StageFetch, time.Now())
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveStage(StageEmbed, time.Now().Add(-time.Second))
	m.CountRequest(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `supavec_scrape_requests_total{outcome="success"} 1`)
	assert.Contains(t, string(body), `supavec_pipeline_stage_seconds_count{stage="embed"} 1`)
}
