package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderation-service/internal/telemetry"
)

func scrape(t *testing.T, provider *telemetry.Provider) string {
	t.Helper()
	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestProvider_RecordsMetrics(t *testing.T) {
	provider := telemetry.NewProvider(prometheus.NewRegistry())
	require.NotNil(t, provider.Tracer)

	provider.RecordStep("decision", "", 10*time.Millisecond)
	provider.RecordStep("decision", "panic", time.Millisecond)
	provider.RecordRun("approved", false, time.Second)
	provider.RecordRun("", true, time.Second)
	provider.RecordStage("queued")
	provider.RecordReplacement("accepted")

	body := scrape(t, provider)
	assert.Contains(t, body, `moderation_step_failures_total{kind="panic",step="decision"} 1`)
	assert.Contains(t, body, `moderation_decisions_total{status="approved"} 1`)
	assert.Contains(t, body, "moderation_runs_failed_total 1")
	assert.Contains(t, body, `moderation_stage_transitions_total{stage="queued"} 1`)
	assert.Contains(t, body, `moderation_image_replacements_total{outcome="accepted"} 1`)
	assert.NotContains(t, body, `kind=""`)
}

func TestProvider_Handler(t *testing.T) {
	provider := telemetry.NewProvider(prometheus.NewRegistry())
	provider.RecordStage("completed")

	assert.Contains(t, scrape(t, provider), "moderation_stage_transitions_total")
}

func TestNilProvider(t *testing.T) {
	var provider *telemetry.Provider

	// Should not panic
	provider.RecordStep("decision", "error", time.Millisecond)
	provider.RecordRun("flagged", false, time.Millisecond)
	_, span := provider.StartSpan(context.Background(), "moderation.step.decision")
	span.End()
}
