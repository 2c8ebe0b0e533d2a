package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetch layer.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	RotationsTotal  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetcher_request_duration_seconds",
			Help:    "HTTP request latency, transport retries included.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetcher_transport_retries_total",
			Help: "Total transport-level retry attempts.",
		},
	)
	rotations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetcher_identity_rotations_total",
			Help: "Total network identity rotations triggered by blocking.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_errors_total",
			Help: "Total fetch failures by classification.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, requestDuration, retries, rotations, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		RotationsTotal:  rotations,
		ErrorsTotal:     errorsTotal,
	}
}

func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncRotations() {
	if m == nil {
		return
	}
	m.RotationsTotal.Inc()
}

func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
