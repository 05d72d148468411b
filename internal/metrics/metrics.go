// Package metrics exposes controller activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	confirmations *prometheus.HistogramVec
	resets        *prometheus.CounterVec
	participants  prometheus.Gauge
}

// New registers the collectors on reg. A nil reg yields collectors that are
// tracked but never exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensesplitter",
			Name:      "operations_total",
			Help:      "Controller operations by name and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expensesplitter",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of controller operations, including confirmation waits.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op"}),
		confirmations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expensesplitter",
			Name:      "confirmation_wait_seconds",
			Help:      "Time between submitting a transaction and its receipt.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensesplitter",
			Name:      "session_resets_total",
			Help:      "Wallet session resets by cause.",
		}, []string{"cause"}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "expensesplitter",
			Name:      "participants",
			Help:      "Participant count read by the last successful refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.confirmations, m.resets, m.participants)
	}
	return m
}

func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveConfirmation(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) SessionReset(cause string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(cause).Inc()
}

func (m *Metrics) SetParticipants(n int) {
	if m == nil {
		return
	}
	m.participants.Set(float64(n))
}
