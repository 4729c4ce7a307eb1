package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clawster_nodes_total",
			Help: "Total number of registered nodes by state",
		},
		[]string{"state"},
	)

	SessionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clawster_sessions_total",
			Help: "Total number of sessions by owner state",
		},
		[]string{"owner"},
	)

	// Election metrics
	IsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clawster_is_leader",
			Help: "Whether this node currently holds the leader lease (1 = leader)",
		},
	)

	LeaseAcquisitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clawster_lease_acquisitions_total",
			Help: "Total number of successful lease acquisitions",
		},
	)

	LeaseRenewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawster_lease_renewals_total",
			Help: "Total number of lease renewal attempts by outcome",
		},
		[]string{"outcome"},
	)

	LeadershipLossesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clawster_leadership_losses_total",
			Help: "Total number of times this node lost the leader lease",
		},
	)

	// Gossip metrics
	GossipMessagesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clawster_gossip_messages_created_total",
			Help: "Total number of gossip messages created",
		},
	)

	GossipMessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawster_gossip_messages_received_total",
			Help: "Total number of received gossip messages by outcome",
		},
		[]string{"outcome"},
	)

	GossipDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawster_gossip_dispatches_total",
			Help: "Total number of per-peer gossip dispatches by outcome",
		},
		[]string{"outcome"},
	)

	GossipRoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clawster_gossip_round_duration_seconds",
			Help:    "Gossip round duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GossipKnownPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clawster_gossip_known_peers",
			Help: "Number of peers in the gossip mesh",
		},
	)

	// Memory metrics
	MemoryEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clawster_memory_entries_total",
			Help: "Tracked memory entries by relevance classification",
		},
		[]string{"class"},
	)

	// Failover metrics
	FailoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clawster_failovers_total",
			Help: "Total number of node failovers triggered",
		},
	)

	SessionsMigratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clawster_sessions_migrated_total",
			Help: "Total number of sessions migrated away from failed nodes",
		},
	)

	// Heartbeat metrics
	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawster_heartbeats_total",
			Help: "Total number of heartbeat cycles by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawster_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clawster_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// init registers all metrics with the default registry
func init() {
	prometheus.MustRegister(
		NodesTotal,
		SessionsTotal,
		IsLeader,
		LeaseAcquisitionsTotal,
		LeaseRenewalsTotal,
		LeadershipLossesTotal,
		GossipMessagesCreatedTotal,
		GossipMessagesReceivedTotal,
		GossipDispatchesTotal,
		GossipRoundDuration,
		GossipKnownPeers,
		MemoryEntriesTotal,
		FailoversTotal,
		SessionsMigratedTotal,
		HeartbeatsTotal,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
