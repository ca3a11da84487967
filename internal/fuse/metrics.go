package fuse

import "github.com/prometheus/client_golang/prometheus"

// Metrics — Prometheus-метрики механики пороха.
type Metrics struct {
	placements     *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
	activeNodes    prometheus.Gauge
	activeRuns     prometheus.Gauge
	ignitions      prometheus.Counter
	consumed       prometheus.Counter
	chainReactions prometheus.Counter
	staleFirings   prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil
// метрики работают, но нигде не экспортируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "placements_total",
			Help:      "Попытки укладки пороха по результату.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "invalidations_total",
			Help:      "Снятые узлы по причине.",
		}, []string{"trigger"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "sink_failures_total",
			Help:      "Проглоченные ошибки приёмника эффектов.",
		}, []string{"effect"}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fuse",
			Name:      "active_nodes",
			Help:      "Узлы в реестре.",
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fuse",
			Name:      "active_ignitions",
			Help:      "Горящие в данный момент фитили.",
		}),
		ignitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "ignitions_total",
			Help:      "Запущенные поджиги.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "consumed_nodes_total",
			Help:      "Узлы, сгоревшие при поджиге.",
		}),
		chainReactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "chain_reactions_total",
			Help:      "Взрывчатка, подожжённая фитилём.",
		}),
		staleFirings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fuse",
			Name:      "stale_ambient_firings_total",
			Help:      "Срабатывания фонового таймера после снятия узла.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.placements, m.invalidations, m.sinkFailures,
			m.activeNodes, m.activeRuns, m.ignitions, m.consumed,
			m.chainReactions, m.staleFirings)
	}
	return m
}
