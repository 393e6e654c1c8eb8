package backend

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records backend request outcomes and the pending feed size.
type Metrics struct {
	RequestsTotal           *prometheus.CounterVec   // Requests by endpoint and outcome
	RequestDurationSeconds  *prometheus.HistogramVec // Request latency by endpoint
	PendingPreRegistrations prometheus.Gauge         // Pending pre-registrations seen by the last poll
}

// NewMetrics creates the backend metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visitorconsole_backend_requests_total",
			Help: "Total number of visitor backend requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		RequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitorconsole_backend_request_duration_seconds",
			Help:    "Duration of visitor backend requests by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		PendingPreRegistrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "visitorconsole_pending_preregistrations",
			Help: "Pending pre-registrations reported by the most recent poll",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RequestDurationSeconds, m.PendingPreRegistrations)
	}
	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(endpoint string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	var e *Error
	if err != nil {
		outcome = "error"
		if errors.As(err, &e) {
			outcome = string(e.Code)
		}
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDurationSeconds.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// SetPending records the pending feed size.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingPreRegistrations.Set(float64(n))
}
