package failover

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clawster/clawster/pkg/events"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/registry"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

const (
	// eventsMaxLen bounds the shared failure/recovery event trail.
	eventsMaxLen = 100

	// migratingSessionTTL bounds how long an orphaned session waits for
	// reassignment before the store reaps it.
	migratingSessionTTL = time.Hour
)

// Manager handles node failure: it flips registry state, orphans the
// failed node's sessions for reassignment, records the event, and
// broadcasts a failover notice. Recovery is deliberately conservative: a
// recovered node re-enters as suspected, not healthy, until fresh
// heartbeats vouch for it.
type Manager struct {
	store    store.Store
	registry *registry.Registry
	broker   *events.Broker
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithBroker attaches an event broker for failure events.
func WithBroker(b *events.Broker) Option {
	return func(m *Manager) { m.broker = b }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a failover manager.
func NewManager(st store.Store, reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		registry: reg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MarkFailed records a node failure. The node's registry state flips to
// failed, every session it owned moves to the transient migrating state
// with provenance of the prior owner, and a failover notice is broadcast.
func (m *Manager) MarkFailed(ctx context.Context, nodeID, reason string) error {
	node, err := m.registry.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("node %s is not registered", nodeID)
	}
	if node.State == types.NodeStateFailed {
		return nil
	}

	now := m.now()
	node.State = types.NodeStateFailed
	node.FailedAt = &now
	node.FailReason = reason
	if err := m.registry.Update(ctx, node); err != nil {
		return err
	}

	m.recordEvent(ctx, nodeID, "node_failed", reason)

	migrated, err := m.migrateSessions(ctx, nodeID)
	if err != nil {
		log.WithComponent("failover").Error().
			Str("node_id", nodeID).
			Err(err).
			Msg("Session migration incomplete")
	}

	m.broadcast(ctx, nodeID)

	metrics.FailoversTotal.Inc()
	m.emit(events.EventNodeFailed, nodeID, reason)
	log.WithComponent("failover").Warn().
		Str("node_id", nodeID).
		Str("reason", reason).
		Int("sessions_migrated", migrated).
		Msg("Node marked failed")
	return nil
}

// RecoverNode moves a failed node back to suspected, pending re-validation
// via fresh heartbeats. The prior failure is preserved as history rather
// than discarded.
func (m *Manager) RecoverNode(ctx context.Context, nodeID string) error {
	node, err := m.registry.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("node %s is not registered", nodeID)
	}
	if node.State != types.NodeStateFailed {
		return fmt.Errorf("node %s is %s, not failed", nodeID, node.State)
	}

	now := m.now()
	node.PreviousFailure = &types.FailureHistory{
		FailedAt: node.FailedAt,
		Reason:   node.FailReason,
	}
	node.State = types.NodeStateSuspected
	node.RecoveredAt = &now
	node.FailedAt = nil
	node.FailReason = ""
	if err := m.registry.Update(ctx, node); err != nil {
		return err
	}

	m.recordEvent(ctx, nodeID, "node_recovered", "")
	m.emit(events.EventNodeRecovered, nodeID, "node recovered, pending re-validation")
	log.WithComponent("failover").Info().Str("node_id", nodeID).Msg("Node recovered as suspected")
	return nil
}

// FailedNodes returns every node currently marked failed.
func (m *Manager) FailedNodes(ctx context.Context) ([]*types.Node, error) {
	nodes, err := m.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	var failed []*types.Node
	for _, node := range nodes {
		if node.State == types.NodeStateFailed {
			failed = append(failed, node)
		}
	}
	return failed, nil
}

// HealthCheck summarizes cluster health from the registry's view: node
// counts by state plus a per-node entry.
func (m *Manager) HealthCheck(ctx context.Context) (*types.ClusterHealth, error) {
	return m.registry.Health(ctx)
}

// Events returns up to limit entries from the failure/recovery trail,
// newest first.
func (m *Manager) Events(ctx context.Context, limit int) ([]types.ClusterEvent, error) {
	raw, err := m.store.ListEvents(ctx, store.EventsTrail, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.ClusterEvent, 0, len(raw))
	for _, entry := range raw {
		var ev types.ClusterEvent
		if err := json.Unmarshal([]byte(entry), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// migrateSessions moves every session owned by nodeID into the transient
// migrating state, keeping the prior owner as provenance. Returns how many
// sessions moved.
func (m *Manager) migrateSessions(ctx context.Context, nodeID string) (int, error) {
	entries, err := m.store.Scan(ctx, store.SessionPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	now := m.now()
	migrated := 0
	for key, raw := range entries {
		var session types.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			log.WithComponent("failover").Warn().Str("key", key).Err(err).Msg("Skipping malformed session")
			continue
		}
		if session.NodeID != nodeID {
			continue
		}

		session.MigratedFrom = session.NodeID
		session.MigratedAt = &now
		session.NodeID = types.SessionMigrating

		data, err := json.Marshal(&session)
		if err != nil {
			continue
		}
		if err := m.store.SetWithTTL(ctx, key, string(data), migratingSessionTTL); err != nil {
			return migrated, fmt.Errorf("failed to migrate session %s: %w", session.ID, err)
		}
		migrated++
		metrics.SessionsMigratedTotal.Inc()
		m.emit(events.EventSessionMigrated, nodeID, "session "+session.ID)
	}
	return migrated, nil
}

func (m *Manager) broadcast(ctx context.Context, nodeID string) {
	notice := types.FailoverNotice{
		Type:       "failover",
		FailedNode: nodeID,
		Timestamp:  m.now(),
		Action:     "sessions_migrated",
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	if err := m.store.Publish(ctx, store.FailoverChannel, string(data)); err != nil {
		log.WithComponent("failover").Warn().Err(err).Msg("Failed to broadcast failover notice")
	}
}

func (m *Manager) recordEvent(ctx context.Context, nodeID, event, reason string) {
	ev := types.ClusterEvent{
		Timestamp: m.now(),
		NodeID:    nodeID,
		Event:     event,
		Reason:    reason,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := m.store.AppendEvent(ctx, store.EventsTrail, string(data), eventsMaxLen); err != nil {
		log.WithComponent("failover").Warn().Err(err).Msg("Failed to record cluster event")
	}
}

func (m *Manager) emit(eventType events.EventType, nodeID, msg string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		NodeID:    nodeID,
		Timestamp: m.now(),
		Message:   msg,
	})
}
