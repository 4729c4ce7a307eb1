/*
Package metrics provides Prometheus metrics collection and exposition for Clawster.

The metrics package defines and registers all Clawster metrics using the
Prometheus client library, providing observability into cluster membership,
leadership, gossip propagation, memory retention, and failover activity.
Metrics are exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

Clawster's metrics system registers all collectors against the default
registry at package init:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry               │           │
	│  │  - Global DefaultRegistry                  │           │
	│  │  - MustRegister at package init            │           │
	│  │  - Automatic Go runtime metrics            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Metric Categories                │           │
	│  │                                            │           │
	│  │  Cluster: node counts by state, sessions   │           │
	│  │  Election: lease acquisitions, renewals,   │           │
	│  │            leadership losses               │           │
	│  │  Gossip: messages, dispatches, round       │           │
	│  │          latency, known peers              │           │
	│  │  Memory: entries by retention class        │           │
	│  │  Failover: failovers, migrated sessions    │           │
	│  │  API: request count, duration              │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Metrics Endpoint             │           │
	│  │  - Path: /metrics                          │           │
	│  │  - Format: Prometheus text exposition      │           │
	│  │  - Handler: promhttp.Handler()             │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Health Checking

Beyond Prometheus metrics, the package tracks per-component health for the
/healthz and /readyz endpoints. Components register themselves at startup and
update their status as conditions change:

	metrics.RegisterComponent("store", true, "")
	metrics.UpdateComponent("gossip", false, "no reachable peers")

Readiness requires the store, gossip, and api components to all be registered
and healthy; liveness only requires the process to be running.

# Timing Operations

The Timer helper measures operation latency for histogram observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GossipRoundDuration)

or with labels:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.APIRequestDuration, route)

# Usage

Expose metrics over HTTP:

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())

Update metrics from application code:

	metrics.IsLeader.Set(1)
	metrics.LeaseRenewalsTotal.WithLabelValues("renewed").Inc()
	metrics.GossipKnownPeers.Set(float64(len(peers)))
*/
package metrics
