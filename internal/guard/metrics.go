package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts guard decisions. A nil *Metrics records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
	rateLimit *prometheus.CounterVec
}

// NewMetrics registers the counters on reg (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authguard",
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by guard and outcome",
		}, []string{"guard", "outcome"}),
		rateLimit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authguard",
			Name:      "ratelimit_checks_total",
			Help:      "Rate limit checks by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) allow(guard string) { m.observe(guard, "allow") }
func (m *Metrics) deny(guard string)  { m.observe(guard, "deny") }

func (m *Metrics) observe(guard, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(guard, outcome).Inc()
	if guard == stepRateLimit {
		m.rateLimit.WithLabelValues(outcome).Inc()
	}
}
