// Package metrics holds the client's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobportal_client"

// Metrics is the set of collectors shared by the session, push and realtime
// components. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AuthAttempts   *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
	ForcedLogouts  prometheus.Counter
	PushAttempts   *prometheus.CounterVec
	RealtimeEvents *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login and register attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
		ForcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because the stored credentials could not be recovered.",
		}),
		PushAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_registration_attempts_total",
			Help:      "Push token registration attempts by outcome.",
		}, []string{"outcome"}),
		RealtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime events received by event name and outcome.",
		}, []string{"event", "outcome"}),
	}
	m.registry.MustRegister(m.AuthAttempts, m.TokenRefreshes, m.ForcedLogouts, m.PushAttempts, m.RealtimeEvents)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AuthAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) TokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}

func (m *Metrics) PushAttempt(outcome string) {
	if m == nil {
		return
	}
	m.PushAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RealtimeEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.RealtimeEvents.WithLabelValues(event, outcome).Inc()
}
