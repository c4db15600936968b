package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()
	m.AuthAttempt("login", "success")
	m.AuthAttempt("login", "success")
	m.TokenRefresh("failure")
	m.ForcedLogout()

	require.Equal(t, 2.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ForcedLogouts))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.AuthAttempt("login", "failure")
		m.PushAttempt("skipped")
		m.RealtimeEvent("notification", "dropped")
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.PushAttempt("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "jobportal_client_push_registration_attempts_total"))
}
