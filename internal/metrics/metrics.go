// Package metrics builds the Prometheus collectors the processor and
// broadcaster update. Exposing them over HTTP is a transport concern
// (out of scope per spec.md §1); this package only owns the registry
// and the collectors, grounded on VictorVVedtion-perp-dex's use of
// prometheus/client_golang for its matching engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every collector the core updates.
type Metrics struct {
	Registry *prometheus.Registry

	QueueDepth        prometheus.Gauge
	CommandsProcessed *prometheus.CounterVec
	CommandsRejected  *prometheus.CounterVec
	WALAppendSeconds  prometheus.Histogram
	SubscriberDrops   prometheus.Counter
	Subscribers       prometheus.Gauge
}

// New builds a fresh registry and registers every collector on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchbook",
			Name:      "command_queue_depth",
			Help:      "Number of commands currently buffered ahead of the actor.",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "commands_processed_total",
			Help:      "Accepted commands processed by the actor, by command kind.",
		}, []string{"kind"}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "commands_rejected_total",
			Help:      "Commands rejected before sequencing, by reason.",
		}, []string{"reason"}),
		WALAppendSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matchbook",
			Name:      "wal_append_seconds",
			Help:      "Latency of a single WAL append, including fsync when enabled.",
			Buckets:   prometheus.DefBuckets,
		}),
		SubscriberDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "subscriber_drops_total",
			Help:      "Events dropped across all subscribers due to buffer overflow.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchbook",
			Name:      "subscribers",
			Help:      "Current number of live market-data subscriptions.",
		}),
	}

	reg.MustRegister(
		m.QueueDepth,
		m.CommandsProcessed,
		m.CommandsRejected,
		m.WALAppendSeconds,
		m.SubscriberDrops,
		m.Subscribers,
	)
	return m
}
