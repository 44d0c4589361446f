package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds loan saga metrics. All methods are safe on a nil receiver.
type Metrics struct {
	SagaOutcomes        *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	Compensations       *prometheus.CounterVec
	InconsistentWindows *prometheus.CounterVec
	EnrichmentFallbacks *prometheus.CounterVec
	EventPublishFailure *prometheus.CounterVec
	OverdueLoans        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SagaOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_loan_saga_total",
			Help: "Loan sagas by kind and outcome",
		}, []string{"saga", "outcome"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartlib_loan_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"saga", "step", "outcome"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_loan_compensations_total",
			Help: "Compensating inventory adjustments by result",
		}, []string{"saga", "result"}),
		InconsistentWindows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_loan_inconsistent_windows_total",
			Help: "Sagas that left inventory and ledger out of step",
		}, []string{"saga"}),
		EnrichmentFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_loan_enrichment_fallbacks_total",
			Help: "Enrichment lookups that fell back to placeholders",
		}, []string{"kind"}),
		EventPublishFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlib_loan_event_publish_failures_total",
			Help: "Loan events that could not be published",
		}, []string{"type"}),
		OverdueLoans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "smartlib_loan_overdue_loans",
			Help: "Overdue loans seen by the last sweep",
		}),
	}
}

func (m *Metrics) IncrementSaga(saga, outcome string) {
	if m == nil {
		return
	}
	m.SagaOutcomes.WithLabelValues(saga, outcome).Inc()
}

func (m *Metrics) ObserveStep(saga, step, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(saga, step, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncrementCompensation(saga, result string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(saga, result).Inc()
}

func (m *Metrics) IncrementInconsistentWindow(saga string) {
	if m == nil {
		return
	}
	m.InconsistentWindows.WithLabelValues(saga).Inc()
}

func (m *Metrics) IncrementEnrichmentFallback(kind string) {
	if m == nil {
		return
	}
	m.EnrichmentFallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementPublishFailure(eventType string) {
	if m == nil {
		return
	}
	m.EventPublishFailure.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SetOverdueLoans(n int) {
	if m == nil {
		return
	}
	m.OverdueLoans.Set(float64(n))
}
