// Package observability holds the Prometheus instrumentation for the
// artifact store.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors recorded by the instrumented
// artifact store.
type Metrics struct {
	StoreOps        *prometheus.CounterVec   // labels: op, outcome={success,error}
	StoreOpDuration *prometheus.HistogramVec // labels: op
}

// NewMetrics creates and registers store metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.StoreOps, m.StoreOpDuration)
	return m
}

// NewMetricsForTesting creates Metrics left unregistered so parallel tests do
// not trip duplicate-registration panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmse_projects",
			Name:      "store_operations_total",
			Help:      "Artifact store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		StoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hmse_projects",
			Name:      "store_operation_duration_seconds",
			Help:      "Artifact store operation latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
	}
}
