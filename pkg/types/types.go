package types

import (
	"time"
)

// Node represents a member of the Clawster coordination mesh as recorded
// in the shared registry.
type Node struct {
	ID           string            `json:"node_id"`
	State        NodeState         `json:"state"`
	Term         uint64            `json:"term"`
	Address      string            `json:"address,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	LastSeen     time.Time         `json:"last_seen"`

	// Failure bookkeeping, populated by the failover manager.
	FailedAt        *time.Time      `json:"failed_at,omitempty"`
	FailReason      string          `json:"fail_reason,omitempty"`
	RecoveredAt     *time.Time      `json:"recovered_at,omitempty"`
	PreviousFailure *FailureHistory `json:"previous_failure,omitempty"`
}

// NodeState represents the lifecycle state of a node
type NodeState string

const (
	NodeStateFollower  NodeState = "follower"
	NodeStateCandidate NodeState = "candidate"
	NodeStateLeader    NodeState = "leader"
	NodeStateSuspected NodeState = "suspected"
	NodeStateFailed    NodeState = "failed"
)

// FailureHistory preserves a prior failure across recovery rather than
// discarding it.
type FailureHistory struct {
	FailedAt *time.Time `json:"failed_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Session represents a unit of work attributed to a single node. Sessions
// live in the shared store and are migrated on failover.
type Session struct {
	ID           string     `json:"session_id"`
	NodeID       string     `json:"node_id"`
	CreatedAt    time.Time  `json:"created_at"`
	MigratedFrom string     `json:"migrated_from,omitempty"`
	MigratedAt   *time.Time `json:"migrated_at,omitempty"`
}

// SessionMigrating is the transient owner recorded on a session while it
// waits for reassignment after its node failed.
const SessionMigrating = "migrating"

// Heartbeat is the TTL-bounded liveness record a node writes each cycle.
type Heartbeat struct {
	Timestamp     time.Time `json:"timestamp"`
	State         NodeState `json:"state"`
	Term          uint64    `json:"term"`
	IsLeader      bool      `json:"is_leader"`
	CurrentLeader string    `json:"current_leader,omitempty"`
}

// MemoryCheckpoint is a serialized memory entry with its score at export
// time, used for persistence and as gossip payload.
type MemoryCheckpoint struct {
	Content        string     `json:"content"`
	Timestamp      time.Time  `json:"timestamp"`
	AccessCount    int        `json:"access_count"`
	LastAccess     *time.Time `json:"last_access,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
}

// GossipMessage is the wire format for one gossip push. Messages are
// constructed fresh per round and never mutated after creation.
type GossipMessage struct {
	NodeID      string            `json:"node_id"`
	OutputType  string            `json:"output_type"`
	Type        MessageType       `json:"type"`
	Payload     GossipPayload     `json:"payload"`
	VectorClock map[string]uint64 `json:"vector_clock"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
}

// MessageType classifies a gossip message
type MessageType string

const (
	MessageHeartbeat  MessageType = "heartbeat"
	MessageState      MessageType = "state"
	MessageCapability MessageType = "capability"
	MessageAlert      MessageType = "alert"
)

// GossipPayload carries the relevance-ranked memories and the sender's
// peer view.
type GossipPayload struct {
	Memories   []*MemoryCheckpoint `json:"memories,omitempty"`
	KnownPeers []string            `json:"known_peers,omitempty"`
}

// ProvenanceEntry is a single attestation in an isnad chain.
type ProvenanceEntry struct {
	NodeID     string    `json:"node_id"`
	Capability string    `json:"capability"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Signature  string    `json:"signature,omitempty"`
}

// Attestation pairs a capability with its full chain, as returned to a
// peer that asked this node to vouch.
type Attestation struct {
	Capability string             `json:"capability"`
	Chain      []*ProvenanceEntry `json:"chain"`
}

// LeaderRecord is one entry in the bounded leader-change history trail.
type LeaderRecord struct {
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	Event     string    `json:"event"`
	IsLeader  bool      `json:"is_leader"`
}

// ClusterEvent is one entry in the bounded cluster event trail (failures,
// recoveries, migrations).
type ClusterEvent struct {
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	Event     string    `json:"event"`
	Reason    string    `json:"reason,omitempty"`
}

// FailoverNotice is the fire-and-forget broadcast published after a
// node's sessions have been migrated.
type FailoverNotice struct {
	Type       string    `json:"type"`
	FailedNode string    `json:"failed_node"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
}

// ClusterHealth summarizes registry state for status surfaces.
type ClusterHealth struct {
	Total     int                        `json:"total"`
	Healthy   int                        `json:"healthy"`
	Failed    int                        `json:"failed"`
	Suspected int                        `json:"suspected"`
	Unknown   int                        `json:"unknown"`
	Nodes     map[string]NodeHealthEntry `json:"nodes"`
}

// NodeHealthEntry is the per-node slice of a ClusterHealth summary.
type NodeHealthEntry struct {
	State        NodeState `json:"state"`
	LastSeen     time.Time `json:"last_seen"`
	Capabilities []string  `json:"capabilities,omitempty"`
}
