package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeAuthExpired = "auth_expired"
	outcomeTransport   = "transport_error"
)

// Metrics counts gateway round-trips per operation and outcome.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Unauthenticated prometheus.Counter
}

// NewMetrics registers the gateway metrics on reg. Pass a fresh
// prometheus.NewRegistry() per gateway to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_api_requests_total",
				Help: "Total number of API requests issued by the console",
			},
			[]string{"op", "outcome"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_api_request_duration_seconds",
				Help:    "Latency of API requests issued by the console",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		Unauthenticated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_session_invalidations_total",
				Help: "Number of times the backend rejected the session credential",
			},
		),
	}
}

func (m *Metrics) observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if outcome == outcomeAuthExpired {
		m.Unauthenticated.Inc()
	}
}
