package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateRegistries(t *testing.T) {
	// Two instances must register without a duplicate-collector panic.
	first := New()
	second := New()

	first.RecordRequest("/api", 200, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.RequestsTotal.WithLabelValues("/api", "200")))
	assert.Equal(t, float64(0), testutil.ToFloat64(second.RequestsTotal.WithLabelValues("/api", "200")))
}

func TestRecordError(t *testing.T) {
	m := New()
	m.RecordError("hello", "config")
	m.RecordError("hello", "config")
	m.RecordError("hello", "exec")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ModuleErrors.WithLabelValues("hello", "config")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModuleErrors.WithLabelValues("hello", "exec")))
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.RecordRequest("/api/...", 200, 5*time.Millisecond)
	m.RecordExecution("hello", 3*time.Millisecond)
	m.ModulesLoaded.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	for _, metric := range []string{
		"wagi_requests_total",
		"wagi_request_duration_seconds",
		"wagi_module_execution_seconds",
		"wagi_modules_loaded 2",
	} {
		assert.True(t, strings.Contains(text, metric), "missing %s in exposition", metric)
	}
}
