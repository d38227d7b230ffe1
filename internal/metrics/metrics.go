// Package metrics exposes prometheus collectors for the decision engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics holds the exit-engine collectors.
type EngineMetrics struct {
	PositionsMonitored prometheus.Gauge
	TicksEvaluated     prometheus.Counter
	ExitsTriggered     *prometheus.CounterVec
	ExitFailures       prometheus.Counter
	PriceRefreshErrors prometheus.Counter
}

// NewEngineMetrics creates and registers the engine collectors on the given
// registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		PositionsMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exitengine_positions_monitored",
			Help: "Number of positions currently monitored.",
		}),
		TicksEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exitengine_ticks_evaluated_total",
			Help: "Total position-tick evaluations performed.",
		}),
		ExitsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exitengine_exits_triggered_total",
			Help: "Total exits triggered, by reason.",
		}, []string{"reason"}),
		ExitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exitengine_exit_failures_total",
			Help: "Total exit executions that failed and were rolled back.",
		}),
		PriceRefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exitengine_price_refresh_errors_total",
			Help: "Total price refresh failures.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PositionsMonitored,
			m.TicksEvaluated,
			m.ExitsTriggered,
			m.ExitFailures,
			m.PriceRefreshErrors,
		)
	}
	return m
}
