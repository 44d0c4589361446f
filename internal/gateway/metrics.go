package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records outbound call behaviour per collaborator.
type Metrics struct {
	CallDuration *prometheus.HistogramVec
	CallOutcomes *prometheus.CounterVec
	Retries      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartlib_gateway_call_duration_seconds",
			Help:    "Duration of a collaborator call including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"service", "operation"}),
		CallOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_gateway_calls_total",
			Help: "Collaborator calls by final outcome",
		}, []string{"service", "operation", "outcome"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_gateway_retries_total",
			Help: "Retry attempts issued to collaborators",
		}, []string{"service", "operation"}),
	}
}

func (m *Metrics) ObserveCall(service, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CallDuration.WithLabelValues(service, operation).Observe(d.Seconds())
	m.CallOutcomes.WithLabelValues(service, operation, outcome).Inc()
}

func (m *Metrics) IncrementRetry(service, operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(service, operation).Inc()
}
