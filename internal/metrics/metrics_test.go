package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptsCounter(t *testing.T) {
	before := testutil.ToFloat64(Attempts.WithLabelValues("addition", Result(true)))
	Attempts.WithLabelValues("addition", Result(true)).Inc()
	after := testutil.ToFloat64(Attempts.WithLabelValues("addition", Result(true)))
	assert.Equal(t, before+1, after)
}

func TestResult(t *testing.T) {
	assert.Equal(t, "correct", Result(true))
	assert.Equal(t, "incorrect", Result(false))
}

func TestHandlerExposesInstruments(t *testing.T) {
	SessionsCompleted.Inc()
	ObserveRequest(http.MethodGet, http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"mathdrill_sessions_completed_total",
		"mathdrill_http_request_duration_seconds",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
