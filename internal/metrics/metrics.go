// Package metrics owns the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kindfund"

// Manager groups the collectors and the registry they are registered with.
type Manager struct {
	registry *prometheus.Registry

	CounterRequests     *prometheus.CounterVec
	CounterLogins       *prometheus.CounterVec
	CounterRejections   *prometheus.CounterVec
	CounterDonations    *prometheus.CounterVec
	GaugeRequests       prometheus.Gauge
	HistRequestDuration *prometheus.HistogramVec
}

// NewManager creates a Manager on a fresh registry. Process and Go runtime
// collectors are included when withRuntime is set.
func NewManager(withRuntime bool) *Manager {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Manager{
		registry: reg,
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "The total number of handled requests",
		}, []string{"method", "route", "status"}),
		CounterLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Admin login attempts by outcome",
		}, []string{"outcome"}),
		CounterRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "gate_rejections_total",
			Help:      "Requests rejected by the request gate, by reason",
		}, []string{"reason"}),
		CounterDonations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "donations",
			Name:      "created_total",
			Help:      "Donations recorded, by status",
		}, []string{"status"}),
		GaugeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of requests being served",
		}),
		HistRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

// NewTestManager returns a Manager without runtime collectors.
func NewTestManager() *Manager {
	return NewManager(false)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLogin records a login attempt. outcome is "success", "invalid",
// "missing" or "error".
func (m *Manager) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.CounterLogins.WithLabelValues(outcome).Inc()
}

// ObserveRejection records a gate rejection.
func (m *Manager) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.CounterRejections.WithLabelValues(reason).Inc()
}

// ObserveDonation records a newly created donation.
func (m *Manager) ObserveDonation(status string) {
	if m == nil {
		return
	}
	m.CounterDonations.WithLabelValues(status).Inc()
}
