package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.StageDuration.WithLabelValues("upload").Observe(0.42)
	m.ConfidenceAction.WithLabelValues("proceed").Inc()
	m.ActiveSessions.Set(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "shootcoach_offline_stage_duration_seconds")
	assert.Contains(t, body, "shootcoach_offline_confidence_action_total")
	assert.Contains(t, body, "shootcoach_realtime_active_sessions 3")
}

func TestNew_UsesPrivateRegistryAcrossInstances(t *testing.T) {
	// Two instances must not panic on duplicate registration, since each
	// owns its own registry rather than the global default one.
	a := New()
	b := New()
	assert.NotNil(t, a)
	assert.NotNil(t, b)
}

func TestDegradedMode_TracksPerSessionLabel(t *testing.T) {
	m := New()
	m.DegradedMode.WithLabelValues("sess-1").Set(1)
	m.DegradedMode.WithLabelValues("sess-2").Set(0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `session_id="sess-1"`))
	assert.True(t, strings.Contains(body, `session_id="sess-2"`))
}
