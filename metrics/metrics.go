package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "facematch"

// Metrics groups the collectors the service records. A nil *Metrics is valid and records nothing.
type Metrics struct {
	MatchTransitions    *prometheus.CounterVec
	ScoringAttempts     *prometheus.CounterVec
	BroadcastDeliveries *prometheus.CounterVec
	Observers           prometheus.Gauge
	FeedbackPending     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transitions_total",
			Help:      "Match state transitions committed, by target status.",
		}, []string{"status"}),
		ScoringAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_attempts_total",
			Help:      "Score provider calls, by outcome.",
		}, []string{"outcome"}),
		BroadcastDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Broadcast sends to observers, by result.",
		}, []string{"result"}),
		Observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_observers",
			Help:      "Currently registered broadcast observers.",
		}),
		FeedbackPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feedback_pending",
			Help:      "Feedback entries waiting for the database.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.MatchTransitions, m.ScoringAttempts, m.BroadcastDeliveries, m.Observers, m.FeedbackPending)
	}
	return m
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.MatchTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ScoringAttempt(outcome string) {
	if m == nil {
		return
	}
	m.ScoringAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.BroadcastDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) SetObservers(n int) {
	if m == nil {
		return
	}
	m.Observers.Set(float64(n))
}

func (m *Metrics) SetFeedbackPending(n int) {
	if m == nil {
		return
	}
	m.FeedbackPending.Set(float64(n))
}
