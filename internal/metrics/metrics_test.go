package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-classifier/internal/core"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveAttempt("openai", core.CompletionAttempt{Index: 1, Outcome: core.OutcomeTruncated})
	m.ObserveAttempt("openai", core.CompletionAttempt{Index: 2, Outcome: core.OutcomeSuccess})
	m.ObserveClassification("ok", 1500*time.Millisecond)
	m.RateLimited(SurfaceHTTP)
	m.RateLimited(SurfaceHTTP)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "email_classifier_classification_duration_seconds_bucket")
	assert.Contains(t, body, `email_classifier_completion_attempts_total{outcome="truncated",provider="openai"} 1`)
	assert.Contains(t, body, `email_classifier_completion_attempts_total{outcome="success",provider="openai"} 1`)
	assert.Contains(t, body, `email_classifier_classifications_total{outcome="ok"} 1`)
	assert.Contains(t, body, `email_classifier_rate_limited_total{surface="http"} 2`)
}
