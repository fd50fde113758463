package libemit

import (
	"github.com/prometheus/client_golang/prometheus"
)

type outcome string

const (
	outcomeEmpty     outcome = "empty"
	outcomeOK        outcome = "ok"
	outcomeCancelled outcome = "cancelled"
	outcomeFailed    outcome = "failed"
)

// Metrics holds the prometheus collectors an Emitter reports into. Several
// emitters may share one Metrics value.
type Metrics struct {
	emissions *prometheus.CounterVec
	funneled  *prometheus.CounterVec
	listeners *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		emissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libemit_emissions_total",
				Help: "Emissions by event name and outcome",
			},
			[]string{"event", "outcome"},
		),
		funneled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libemit_funneled_errors_total",
				Help: "Listener errors forwarded to the error channel, by originating event",
			},
			[]string{"event"},
		),
		listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "libemit_listeners",
				Help: "Registered listeners by event name",
			},
			[]string{"event"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.emissions, m.funneled, m.listeners)
	}

	return m
}

func (m *Metrics) observeEmission(event string, o outcome) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(event, string(o)).Inc()
}

func (m *Metrics) observeFunneled(event string) {
	if m == nil {
		return
	}
	m.funneled.WithLabelValues(event).Inc()
}

func (m *Metrics) addListeners(event string, delta int) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(event).Add(float64(delta))
}
