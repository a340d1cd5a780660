package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enrollment engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RegistrationsAccepted prometheus.Counter
	RegistrationsRejected *prometheus.CounterVec
	PersistenceFailures   prometheus.Counter
	CommitDuration        prometheus.Histogram
	LoadedRecords         *prometheus.GaugeVec
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistrationsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "earlyreg_registrations_accepted_total",
			Help: "Total number of accepted registrations",
		}),
		RegistrationsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "earlyreg_registrations_rejected_total",
			Help: "Total number of rejected registrations by reason",
		}, []string{"reason"}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "earlyreg_persistence_failures_total",
			Help: "Registrations whose durable write failed after retries",
		}),
		CommitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earlyreg_commit_duration_seconds",
			Help:    "Duration of Register calls including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LoadedRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "earlyreg_loaded_records",
			Help: "Records loaded at startup per collection",
		}, []string{"collection"}),
	}
}

// IncAccepted records an accepted registration.
func (m *Metrics) IncAccepted() {
	if m == nil {
		return
	}
	m.RegistrationsAccepted.Inc()
}

// IncRejected records a rejected registration.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.RegistrationsRejected.WithLabelValues(reason).Inc()
}

// IncPersistenceFailure records a durable write that did not complete.
func (m *Metrics) IncPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// ObserveCommit records the duration of a Register call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCommit(start time.Time) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

// SetLoaded records how many records of a collection were loaded.
func (m *Metrics) SetLoaded(collection string, n int) {
	if m == nil {
		return
	}
	m.LoadedRecords.WithLabelValues(collection).Set(float64(n))
}
