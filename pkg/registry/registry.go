package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clawster/clawster/pkg/events"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

// Registry is the shared node membership table, stored as one hash in the
// external store so every node reads the same view. Writes here are
// last-write-wins; the registry is bookkeeping, not a consensus surface.
type Registry struct {
	store  store.Store
	broker *events.Broker
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithBroker attaches an event broker for membership events.
func WithBroker(b *events.Broker) Option {
	return func(r *Registry) { r.broker = b }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry over the given store.
func New(st store.Store, opts ...Option) *Registry {
	r := &Registry{
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or refreshes a node in the shared registry. Re-registering
// an existing node preserves its original registration time.
func (r *Registry) Register(ctx context.Context, node *types.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node id is required")
	}

	existing, err := r.Get(ctx, node.ID)
	if err != nil {
		return err
	}

	now := r.now()
	if existing != nil {
		node.RegisteredAt = existing.RegisteredAt
	} else if node.RegisteredAt.IsZero() {
		node.RegisteredAt = now
	}
	node.LastSeen = now
	if node.State == "" {
		node.State = types.NodeStateFollower
	}

	if err := r.put(ctx, node); err != nil {
		return err
	}

	if existing == nil {
		r.emit(events.EventNodeJoined, node.ID, "node registered")
		log.WithComponent("registry").Info().
			Str("node_id", node.ID).
			Strs("capabilities", node.Capabilities).
			Msg("Node registered")
	}
	return nil
}

// Get returns a node by id, or nil if it is not registered.
func (r *Registry) Get(ctx context.Context, nodeID string) (*types.Node, error) {
	raw, ok, err := r.store.HGet(ctx, store.NodesHash, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", nodeID, err)
	}
	if !ok {
		return nil, nil
	}
	var node types.Node
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("malformed registry entry for %s: %w", nodeID, err)
	}
	return &node, nil
}

// List returns every registered node, ordered by id.
func (r *Registry) List(ctx context.Context) ([]*types.Node, error) {
	raw, err := r.store.HGetAll(ctx, store.NodesHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]*types.Node, 0, len(raw))
	for id, entry := range raw {
		var node types.Node
		if err := json.Unmarshal([]byte(entry), &node); err != nil {
			log.WithComponent("registry").Warn().
				Str("node_id", id).
				Err(err).
				Msg("Skipping malformed registry entry")
			continue
		}
		nodes = append(nodes, &node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// SetState transitions a node to the given state.
func (r *Registry) SetState(ctx context.Context, nodeID string, state types.NodeState) error {
	node, err := r.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("node %s is not registered", nodeID)
	}
	node.State = state
	return r.put(ctx, node)
}

// Update rewrites a node's full registry entry.
func (r *Registry) Update(ctx context.Context, node *types.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node id is required")
	}
	return r.put(ctx, node)
}

// Touch refreshes a node's last-seen timestamp.
func (r *Registry) Touch(ctx context.Context, nodeID string) error {
	node, err := r.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("node %s is not registered", nodeID)
	}
	node.LastSeen = r.now()
	return r.put(ctx, node)
}

// Deregister removes a node from the registry.
func (r *Registry) Deregister(ctx context.Context, nodeID string) error {
	if err := r.store.HDel(ctx, store.NodesHash, nodeID); err != nil {
		return fmt.Errorf("failed to deregister node %s: %w", nodeID, err)
	}
	r.emit(events.EventNodeLeft, nodeID, "node deregistered")
	log.WithComponent("registry").Info().Str("node_id", nodeID).Msg("Node deregistered")
	return nil
}

// AlivePeers returns the ids of registered nodes, other than self, whose
// heartbeat key is still live.
func (r *Registry) AlivePeers(ctx context.Context, selfID string) ([]string, error) {
	nodes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	beats, err := r.store.Scan(ctx, store.HeartbeatPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan heartbeats: %w", err)
	}

	peers := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node.ID == selfID {
			continue
		}
		if _, alive := beats[store.HeartbeatPrefix+node.ID]; alive {
			peers = append(peers, node.ID)
		}
	}
	return peers, nil
}

// ExpiredPeers returns registered nodes whose heartbeat key has lapsed and
// that are not already marked failed. These are failover candidates.
func (r *Registry) ExpiredPeers(ctx context.Context) ([]*types.Node, error) {
	nodes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	beats, err := r.store.Scan(ctx, store.HeartbeatPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan heartbeats: %w", err)
	}

	var expired []*types.Node
	for _, node := range nodes {
		if node.State == types.NodeStateFailed {
			continue
		}
		if _, alive := beats[store.HeartbeatPrefix+node.ID]; !alive {
			expired = append(expired, node)
		}
	}
	return expired, nil
}

// Health summarizes registry state for status surfaces and heartbeat
// payloads.
func (r *Registry) Health(ctx context.Context) (*types.ClusterHealth, error) {
	nodes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	health := &types.ClusterHealth{
		Nodes: make(map[string]types.NodeHealthEntry, len(nodes)),
	}
	for _, node := range nodes {
		health.Total++
		switch node.State {
		case types.NodeStateFollower, types.NodeStateCandidate, types.NodeStateLeader:
			health.Healthy++
		case types.NodeStateFailed:
			health.Failed++
		case types.NodeStateSuspected:
			health.Suspected++
		default:
			health.Unknown++
		}
		health.Nodes[node.ID] = types.NodeHealthEntry{
			State:        node.State,
			LastSeen:     node.LastSeen,
			Capabilities: node.Capabilities,
		}
	}
	return health, nil
}

func (r *Registry) put(ctx context.Context, node *types.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node %s: %w", node.ID, err)
	}
	if err := r.store.HSet(ctx, store.NodesHash, node.ID, string(data)); err != nil {
		return fmt.Errorf("failed to write node %s: %w", node.ID, err)
	}
	return nil
}

func (r *Registry) emit(eventType events.EventType, nodeID, msg string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		NodeID:    nodeID,
		Timestamp: r.now(),
		Message:   msg,
	})
}
