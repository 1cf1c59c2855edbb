// shared/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all bridge metrics.
type Metrics struct {
	// Event metrics
	TeamEventsTotal *prometheus.CounterVec

	// Scoreboard metrics
	NameplateRecomputes prometheus.Counter
	Flushes             *prometheus.CounterVec
	UpdatesDropped      prometheus.Counter
	ActiveSessions      prometheus.Gauge

	// Store metrics
	StoreErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "scoreboard_bridge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TeamEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "team_total",
				Help:      "Team events received, by action and outcome",
			},
			[]string{"action", "outcome"}, // outcome: applied, skipped, team_not_found, unknown_action, session_closed
		),
		NameplateRecomputes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scoreboard",
				Name:      "nameplate_recomputes_total",
				Help:      "Nameplate recompute passes",
			},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scoreboard",
				Name:      "flushes_total",
				Help:      "Scoreboard flushes, by path",
			},
			[]string{"path"}, // path: immediate, periodic
		),
		UpdatesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scoreboard",
				Name:      "updates_dropped_total",
				Help:      "Flushed updates rejected by a full outbox",
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Sessions currently registered on this instance",
			},
		),
		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "errors_total",
				Help:      "Failed store operations, by store and operation",
			},
			[]string{"store", "operation"},
		),
	}
}
