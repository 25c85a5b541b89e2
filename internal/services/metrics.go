// Package services – Prometheus instrumentation
//
// This file exposes the relay's domain-level Prometheus collectors. Label
// cardinality is kept bounded: sources, event types, and outcomes are all
// closed sets.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookEvents counts ingested webhooks by source and outcome.
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_events_total",
			Help: "Total webhook payloads processed, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// dispatches counts outbound automation deliveries by event type and result.
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dispatches_total",
			Help: "Total outbound event deliveries, by event type and status.",
		},
		[]string{"event_type", "status"},
	)

	// timeouts counts pending-order timer outcomes.
	timeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_order_timeouts_total",
			Help: "Pending-order timer outcomes (fired or canceled).",
		},
		[]string{"outcome"},
	)

	// sweepRemovals counts records removed by the retention sweeper, by store.
	sweepRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sweep_removals_total",
			Help: "Records removed by the retention sweeper, by store.",
		},
		[]string{"store"},
	)
)

func init() {
	prometheus.MustRegister(webhookEvents, dispatches, timeouts, sweepRemovals)
}

// StoreSizer reports the current size of an in-memory store.
type StoreSizer func() int

// RegisterStoreGauges registers gauge functions exposing live store sizes.
// Call it once from main; GaugeFuncs cannot be registered twice, so it is
// kept out of init() to keep tests independent of wiring.
func RegisterStoreGauges(conversations, assignments, pending, dedup StoreSizer) {
	for name, fn := range map[string]StoreSizer{
		"conversations": conversations,
		"assignments":   assignments,
		"pending":       pending,
		"dedup":         dedup,
	} {
		fn := fn
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "relay_store_entries",
				Help:        "Current number of entries held by an in-memory store.",
				ConstLabels: prometheus.Labels{"store": name},
			},
			func() float64 { return float64(fn()) },
		))
	}
}
