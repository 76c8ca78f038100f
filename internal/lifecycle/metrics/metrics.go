package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the lifecycle engine.
// Tracks state transitions, allocation outcomes and expiry sweeps.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	UnitsRegistered    prometheus.Counter
	QuarantinesOpened  *prometheus.CounterVec
	AllocationOutcomes *prometheus.CounterVec
	AllocationRetries  prometheus.Counter
	AllocationDuration prometheus.Histogram
	ComponentsExpired  prometheus.Counter
	SweepDuration      prometheus.Histogram
	SweepConflicts     prometheus.Counter
}

// New registers lifecycle metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers lifecycle metrics with reg. Tests pass a fresh
// registry so metrics can be built more than once per process.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_state_transitions_total",
			Help: "State transitions applied to units and components",
		}, []string{"target_kind", "from", "to"}),
		UnitsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_units_registered_total",
			Help: "Blood units registered from completed donations",
		}),
		QuarantinesOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_quarantines_opened_total",
			Help: "Quarantines opened, by reason",
		}, []string{"reason"}),
		AllocationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_allocations_total",
			Help: "Allocation attempts by outcome (allocated, insufficient, error)",
		}, []string{"outcome"}),
		AllocationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_allocation_retries_total",
			Help: "Allocation attempts retried after a reservation conflict",
		}),
		AllocationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodbank_allocation_duration_seconds",
			Help:    "Duration of Allocate including retries",
			Buckets: durationBuckets,
		}),
		ComponentsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_components_expired_total",
			Help: "Components moved to expired by the sweep",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodbank_expiry_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep across all orgs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		SweepConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_expiry_sweep_conflicts_total",
			Help: "Components skipped by the sweep because they changed concurrently",
		}),
	}
}

// ObserveTransition records one state move.
func (m *Metrics) ObserveTransition(kind, from, to string) {
	m.Transitions.WithLabelValues(kind, from, to).Inc()
}

func (m *Metrics) IncrementUnitsRegistered() {
	m.UnitsRegistered.Inc()
}

func (m *Metrics) IncrementQuarantine(reason string) {
	m.QuarantinesOpened.WithLabelValues(reason).Inc()
}

// ObserveAllocation records an allocation outcome and its duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAllocation(outcome string, start time.Time) {
	m.AllocationOutcomes.WithLabelValues(outcome).Inc()
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAllocationRetry() {
	m.AllocationRetries.Inc()
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(expired, skipped int, start time.Time) {
	m.ComponentsExpired.Add(float64(expired))
	m.SweepConflicts.Add(float64(skipped))
	m.SweepDuration.Observe(time.Since(start).Seconds())
}
