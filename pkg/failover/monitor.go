package failover

import (
	"context"
	"time"

	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/registry"
)

// DefaultCheckInterval is how often the leader sweeps for lapsed
// heartbeats.
const DefaultCheckInterval = 10 * time.Second

// LeaderFunc reports whether this node currently believes it leads.
type LeaderFunc func() bool

// Monitor is the leader-gated failure detector. Every interval the leader
// sweeps the registry for nodes whose heartbeat record has lapsed and
// marks them failed. Followers run the loop too but do nothing, so the
// sweep follows leadership without re-wiring.
type Monitor struct {
	manager  *Manager
	registry *registry.Registry
	isLeader LeaderFunc
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithCheckInterval overrides the sweep interval.
func WithCheckInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = interval }
}

// NewMonitor creates a failure detector gated on isLeader.
func NewMonitor(mgr *Manager, reg *registry.Registry, isLeader LeaderFunc, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		manager:  mgr,
		registry: reg,
		isLeader: isLeader,
		interval: DefaultCheckInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the sweep loop.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop stops the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs one failure-detection pass. Exposed for callers that
// manage their own scheduling.
func (m *Monitor) Sweep(ctx context.Context) {
	if !m.isLeader() {
		return
	}

	expired, err := m.registry.ExpiredPeers(ctx)
	if err != nil {
		log.WithComponent("failover").Error().Err(err).Msg("Heartbeat sweep failed")
		return
	}

	for _, node := range expired {
		if err := m.manager.MarkFailed(ctx, node.ID, "missed heartbeats"); err != nil {
			log.WithComponent("failover").Error().
				Str("node_id", node.ID).
				Err(err).
				Msg("Failed to mark node failed")
		}
	}
}
