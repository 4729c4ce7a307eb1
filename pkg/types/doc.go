/*
Package types defines the core data structures used throughout Clawster.

This package contains all fundamental types that represent Clawster's domain
model: registry nodes and their lifecycle states, sessions, heartbeats,
gossip messages and payloads, memory checkpoints, provenance attestations,
and the bounded event-trail records written to the shared store. These types
are used by all other packages for coordination logic, persistence, and the
HTTP surface.

# Architecture

The types package is the foundation of Clawster's data model. It defines:

  - Registry topology (nodes, lifecycle states, failure history)
  - Session ownership and migration bookkeeping
  - Gossip wire format (messages, payloads, message types)
  - Memory checkpoints exported by the decay filter
  - Isnad provenance entries and attestations
  - Event-trail records (leader changes, failures, recoveries)
  - Health summaries for status and heartbeat surfaces

All types are designed to be:
  - Serializable (JSON, matching the boundary schemas in pkg/schema)
  - Immutable after construction where possible (gossip messages in
    particular are never mutated once created)
  - Self-documenting (clear field names and comments)

# Core Types

Registry:
  - Node: One member of the mesh as recorded in the shared registry
  - NodeState: follower, candidate, leader, suspected, failed
  - FailureHistory: Prior failure preserved across recovery
  - Heartbeat: TTL-bounded liveness record

Sessions:
  - Session: Unit of work attributed to one node
  - SessionMigrating: Transient owner during failover migration

Gossip:
  - GossipMessage: One push, with sender, vector clock, and payload
  - MessageType: heartbeat, state, capability, alert
  - GossipPayload: Relevance-ranked memories plus the sender's peer view

Memory:
  - MemoryCheckpoint: Serialized entry with its score at export time

Provenance:
  - ProvenanceEntry: One attestation in an isnad chain
  - Attestation: Capability plus its full chain

Event Trails:
  - LeaderRecord: Bounded leader-change history entry
  - ClusterEvent: Bounded failure/recovery/migration entry
  - FailoverNotice: Fire-and-forget broadcast after migration

# Node Lifecycle

	follower ──► candidate ──► leader
	    ▲                        │
	    └────────────────────────┘ (lease lost)

	any ──► suspected ──► failed ──► suspected (recovery)

Failed nodes keep their failure timestamp and reason; recovery moves them to
suspected pending fresh heartbeats, with the prior failure retained in
PreviousFailure rather than discarded.

# Usage

	node := &types.Node{
		ID:           "node-a1b2c3d4",
		State:        types.NodeStateFollower,
		Capabilities: []string{"inference"},
		RegisteredAt: time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}

	msg := &types.GossipMessage{
		NodeID:     "node-a1b2c3d4",
		OutputType: "gossip",
		Type:       types.MessageState,
		Payload:    types.GossipPayload{KnownPeers: []string{"node-b"}},
	}

# Integration Points

This package is imported by:

  - pkg/registry: Node CRUD and heartbeat records
  - pkg/gossip: Message construction and ingestion
  - pkg/memory: Checkpoint export/restore
  - pkg/provenance: Chain entries and attestations
  - pkg/election: Leader history records
  - pkg/failover: Sessions, cluster events, failover notices
  - pkg/api, pkg/agent: Status and health snapshots
*/
package types
