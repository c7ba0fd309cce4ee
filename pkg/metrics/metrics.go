// Package metrics exposes the bot's prometheus collectors:
//
//	poseidon_decisions_total{outcome}       pipeline outcomes (candidate|skipped|rejected)
//	poseidon_orders_total{mode,side}        orders placed by the trade service
//	poseidon_tp_steps_total{policy}         ladder / partial steps fired
//	poseidon_exits_total{reason,side}       full exits by reason (trail|reversal|drawdown)
//	poseidon_executor_failures_total{op}    failed or timed-out executor calls
//	poseidon_feed_events_total{kind}        feed events emitted
//	poseidon_tracked_positions              positions currently tracked
//	poseidon_job_runs_total{job,status}     scheduled job runs by outcome
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Decisions        *prometheus.CounterVec
	Orders           *prometheus.CounterVec
	TPSteps          *prometheus.CounterVec
	Exits            *prometheus.CounterVec
	ExecutorFailures *prometheus.CounterVec
	FeedEvents       *prometheus.CounterVec
	TrackedPositions prometheus.Gauge
	JobRuns          *prometheus.CounterVec
}

// New builds the collectors on a private registry so several instances can coexist (tests, per-account bots).
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_decisions_total",
			Help: "Signal pipeline outcomes",
		}, []string{"outcome"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_orders_total",
			Help: "Orders placed",
		}, []string{"mode", "side"}),
		TPSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_tp_steps_total",
			Help: "Take-profit steps fired",
		}, []string{"policy"}),
		Exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_exits_total",
			Help: "Full exits split by reason and side",
		}, []string{"reason", "side"}),
		ExecutorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_executor_failures_total",
			Help: "Executor calls that failed or timed out",
		}, []string{"op"}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_feed_events_total",
			Help: "Feed events emitted",
		}, []string{"kind"}),
		TrackedPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poseidon_tracked_positions",
			Help: "Positions currently tracked by the take-profit engine",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poseidon_job_runs_total",
			Help: "Scheduled job runs by outcome",
		}, []string{"job", "status"}),
	}

	m.registry.MustRegister(
		m.Decisions,
		m.Orders,
		m.TPSteps,
		m.Exits,
		m.ExecutorFailures,
		m.FeedEvents,
		m.TrackedPositions,
		m.JobRuns,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
