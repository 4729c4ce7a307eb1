package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clawster/clawster/pkg/api"
	"github.com/clawster/clawster/pkg/config"
	"github.com/clawster/clawster/pkg/election"
	"github.com/clawster/clawster/pkg/events"
	"github.com/clawster/clawster/pkg/failover"
	"github.com/clawster/clawster/pkg/gossip"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/memory"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/provenance"
	"github.com/clawster/clawster/pkg/registry"
	"github.com/clawster/clawster/pkg/schema"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

// Agent composes a full Clawster node: shared store, registry, leader
// election, gossip, failover, memory persistence, and the HTTP surface.
type Agent struct {
	cfg    *config.Config
	store  store.Store
	broker *events.Broker

	registry    *registry.Registry
	heartbeater *registry.Heartbeater
	election    *election.Election
	watcher     *election.Watcher
	filter      *memory.Filter
	tracker     *provenance.Tracker
	protocol    *gossip.Protocol
	runner      *gossip.Runner
	failover    *failover.Manager
	monitor     *failover.Monitor
	checkpoints *memory.CheckpointStore
	server      *api.Server

	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an agent from configuration. Nothing starts until Start.
func New(cfg *config.Config) (*Agent, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schemas: %w", err)
	}

	broker := events.NewBroker()
	reg := registry.New(st, registry.WithBroker(broker))

	filter := memory.NewFilter(
		memory.WithHalfLife(cfg.Memory.HalfLifeDays),
		memory.WithThreshold(cfg.Memory.Threshold),
	)
	tracker := provenance.NewTracker(cfg.Node.ID)

	checkpoints, err := memory.NewCheckpointStore(cfg.Memory.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	a := &Agent{
		cfg:         cfg,
		store:       st,
		broker:      broker,
		registry:    reg,
		filter:      filter,
		tracker:     tracker,
		checkpoints: checkpoints,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	transport := gossip.NewHTTPTransport(a.resolvePeer)
	a.protocol = gossip.New(cfg.Node.ID, filter, tracker, validator, transport,
		gossip.WithInterval(cfg.Gossip.Interval),
		gossip.WithFanout(cfg.Gossip.Fanout),
		gossip.WithDispatchTimeout(cfg.Gossip.DispatchTimeout),
		gossip.WithBroker(broker),
	)
	a.runner = gossip.NewRunner(a.protocol)

	a.election = election.New(cfg.Node.ID, st,
		election.WithLockTTL(cfg.Election.LockTTL),
		election.WithBroker(broker),
	)
	a.watcher = election.NewWatcher(a.election)

	a.failover = failover.NewManager(st, reg, failover.WithBroker(broker))
	a.monitor = failover.NewMonitor(a.failover, reg, a.election.IsLeader,
		failover.WithCheckInterval(cfg.Failover.CheckInterval),
	)

	a.heartbeater = registry.NewHeartbeater(cfg.Node.ID, st, reg, a.heartbeatStatus,
		registry.WithInterval(cfg.Heartbeat.Interval),
		registry.WithTTL(cfg.Heartbeat.TTL),
	)

	a.server = api.NewServer(a.protocol, reg, a.election, a.failover, a.statusSnapshot)
	return a, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemStore(), nil
	case "etcd":
		st, err := store.NewEtcdStore(store.EtcdConfig{
			Endpoints:   cfg.Store.Endpoints,
			Username:    cfg.Store.Username,
			Password:    cfg.Store.Password,
			DialTimeout: cfg.Store.DialTimeout,
		})
		if err != nil {
			metrics.UpdateComponent("store", false, err.Error())
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Start registers the node, restores persisted memories, and launches
// every loop. It returns once the node is running; the API server serves
// on its own goroutine.
func (a *Agent) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.registry.Register(ctx, &types.Node{
		ID:           a.cfg.Node.ID,
		Address:      a.cfg.Node.Address,
		Capabilities: a.cfg.Node.Capabilities,
		Labels:       a.cfg.Node.Labels,
		State:        types.NodeStateFollower,
	}); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}
	metrics.UpdateComponent("store", true, "")

	a.restoreMemories()
	a.seedPeers(ctx)

	for _, capability := range a.cfg.Node.Capabilities {
		entry := a.tracker.Attest(capability, a.cfg.Node.ID, 0)
		a.tracker.AddToChain(capability, entry)
	}

	a.broker.Start()
	a.watcher.Start(ctx)
	a.runner.Start(ctx)
	a.heartbeater.Start(ctx)
	a.monitor.Start(ctx)
	metrics.UpdateComponent("gossip", true, "")

	go func() {
		if err := a.server.Start(a.cfg.API.ListenAddr); err != nil {
			log.WithComponent("agent").Error().Err(err).Msg("API server exited")
		}
	}()

	go a.housekeeping(ctx)

	metrics.SetVersion(Version)
	log.WithNodeID(a.cfg.Node.ID).Info().
		Str("address", a.cfg.Node.Address).
		Str("store", a.cfg.Store.Backend).
		Msg("Agent started")
	return nil
}

// Stop shuts every loop down in reverse order, persists high-value
// memories, releases the lease if held, and closes the store.
func (a *Agent) Stop(ctx context.Context) error {
	close(a.stopCh)
	<-a.doneCh

	a.monitor.Stop()
	a.heartbeater.Stop()
	a.runner.Stop()
	a.watcher.Stop()

	if err := a.election.Release(ctx); err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Failed to release lease")
	}

	a.persistMemories()

	if err := a.server.Shutdown(ctx); err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("API shutdown failed")
	}
	a.broker.Stop()

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.checkpoints.Close(); err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Failed to close checkpoint store")
	}
	if err := a.store.Close(); err != nil {
		return err
	}

	log.WithNodeID(a.cfg.Node.ID).Info().Msg("Agent stopped")
	return nil
}

// Memory exposes the decay filter for callers feeding local observations
// into the mesh.
func (a *Agent) Memory() *memory.Filter {
	return a.filter
}

// Gossip exposes the dissemination engine.
func (a *Agent) Gossip() *gossip.Protocol {
	return a.protocol
}

// Events exposes the broker carrying leadership, membership, failover,
// and gossip notifications, for callers that want to subscribe.
func (a *Agent) Events() *events.Broker {
	return a.broker
}

// AddSeedPeer introduces a statically configured peer: it lands in the
// shared registry so the transport can resolve its address, and in the
// gossip peer set so rounds can target it before its first heartbeat.
func (a *Agent) AddSeedPeer(ctx context.Context, id, address string) error {
	if id == a.cfg.Node.ID {
		return nil
	}
	existing, err := a.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := a.registry.Register(ctx, &types.Node{ID: id, Address: address}); err != nil {
			return err
		}
	}
	a.protocol.RegisterPeer(id)
	return nil
}

// housekeeping periodically re-seeds gossip peers from the registry,
// refreshes memory metrics, and persists checkpoints.
func (a *Agent) housekeeping(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.cfg.Gossip.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.seedPeers(ctx)
			a.persistMemories()
			a.refreshClusterGauges(ctx)

			total, active := a.filter.Stats()
			metrics.MemoryEntriesTotal.WithLabelValues("keep").Set(float64(active))
			metrics.MemoryEntriesTotal.WithLabelValues("shed").Set(float64(total - active))
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// seedPeers registers every live registry peer with the gossip protocol.
func (a *Agent) seedPeers(ctx context.Context) {
	peers, err := a.registry.AlivePeers(ctx, a.cfg.Node.ID)
	if err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Peer seeding failed")
		return
	}
	for _, peer := range peers {
		a.protocol.RegisterPeer(peer)
	}
}

// refreshClusterGauges publishes node counts by state and session counts
// by ownership from the shared store's current view.
func (a *Agent) refreshClusterGauges(ctx context.Context) {
	nodes, err := a.registry.List(ctx)
	if err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Node gauge refresh failed")
		return
	}
	byState := map[types.NodeState]int{
		types.NodeStateFollower:  0,
		types.NodeStateCandidate: 0,
		types.NodeStateLeader:    0,
		types.NodeStateSuspected: 0,
		types.NodeStateFailed:    0,
	}
	for _, node := range nodes {
		byState[node.State]++
	}
	for state, count := range byState {
		metrics.NodesTotal.WithLabelValues(string(state)).Set(float64(count))
	}

	sessions, err := a.store.Scan(ctx, store.SessionPrefix)
	if err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Session gauge refresh failed")
		return
	}
	var owned, migrating int
	for _, raw := range sessions {
		var session types.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue
		}
		if session.NodeID == types.SessionMigrating {
			migrating++
		} else {
			owned++
		}
	}
	metrics.SessionsTotal.WithLabelValues("owned").Set(float64(owned))
	metrics.SessionsTotal.WithLabelValues("migrating").Set(float64(migrating))
}

// resolvePeer maps a peer id to its registered address.
func (a *Agent) resolvePeer(peerID string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	node, err := a.registry.Get(ctx, peerID)
	if err != nil || node == nil || node.Address == "" {
		return "", false
	}
	return node.Address, true
}

func (a *Agent) restoreMemories() {
	checkpoints, err := a.checkpoints.Load()
	if err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Checkpoint restore failed")
		return
	}
	if len(checkpoints) == 0 {
		return
	}
	a.filter.Restore(checkpoints)
	log.WithComponent("agent").Info().
		Int("restored", len(checkpoints)).
		Msg("Memories restored from checkpoint")
}

func (a *Agent) persistMemories() {
	keep := a.filter.ExportHighValue()
	if err := a.checkpoints.Save(keep); err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Checkpoint save failed")
		return
	}
	if err := a.checkpoints.Prune(keep); err != nil {
		log.WithComponent("agent").Warn().Err(err).Msg("Checkpoint prune failed")
	}
}

func (a *Agent) heartbeatStatus() types.Heartbeat {
	state := types.NodeStateFollower
	if a.election.IsLeader() {
		state = types.NodeStateLeader
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	holder, err := a.election.CurrentHolder(ctx)
	if err != nil {
		holder = ""
	}

	return types.Heartbeat{
		Timestamp:     time.Now().UTC(),
		State:         state,
		IsLeader:      a.election.IsLeader(),
		CurrentLeader: holder,
	}
}

// Status is the node-level snapshot served at /v1/status.
type Status struct {
	NodeID       string               `json:"node_id"`
	Address      string               `json:"address"`
	IsLeader     bool                 `json:"is_leader"`
	Leader       string               `json:"leader,omitempty"`
	Capabilities []string             `json:"capabilities,omitempty"`
	Gossip       gossip.Status        `json:"gossip"`
	MemoryTotal  int                  `json:"memory_total"`
	MemoryActive int                  `json:"memory_active"`
	Cluster      *types.ClusterHealth `json:"cluster,omitempty"`
}

func (a *Agent) statusSnapshot() any {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	holder, _ := a.election.CurrentHolder(ctx)
	health, err := a.registry.Health(ctx)
	if err != nil {
		health = nil
	}
	total, active := a.filter.Stats()

	return Status{
		NodeID:       a.cfg.Node.ID,
		Address:      a.cfg.Node.Address,
		IsLeader:     a.election.IsLeader(),
		Leader:       holder,
		Capabilities: a.cfg.Node.Capabilities,
		Gossip:       a.protocol.Snapshot(),
		MemoryTotal:  total,
		MemoryActive: active,
		Cluster:      health,
	}
}
