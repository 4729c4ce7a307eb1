package gossip

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawster/clawster/pkg/clock"
	"github.com/clawster/clawster/pkg/events"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/memory"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/provenance"
	"github.com/clawster/clawster/pkg/schema"
	"github.com/clawster/clawster/pkg/types"
)

const (
	// ProtocolVersion is carried on every message and checked by schema
	// validation.
	ProtocolVersion = "1.0.0"

	// DefaultInterval is the gossip round period.
	DefaultInterval = 30 * time.Second

	// DefaultFanout is the number of peers targeted per round.
	DefaultFanout = 3

	// DefaultDispatchTimeout bounds each peer send within a round.
	DefaultDispatchTimeout = 5 * time.Second

	// maxPayloadMemories caps the relevance-ranked entries per message.
	maxPayloadMemories = 5

	// ingestScoreFloor is the minimum relevance score at which a received
	// memory is worth keeping.
	ingestScoreFloor = 0.5

	// seenWindowRounds sizes the dedup window. Fingerprints older than
	// this many intervals are evicted, bounding the seen set.
	seenWindowRounds = 10
)

// Outcome values returned by ReceiveGossip.
const (
	OutcomeAccepted  = "accepted"
	OutcomeInvalid   = "invalid"
	OutcomeStale     = "stale"
	OutcomeDuplicate = "duplicate"
)

// Protocol is the epidemic dissemination engine. Each round it pushes the
// node's highest-value memories and peer view to a random fan-out of
// peers; received messages are schema-validated, causally ordered against
// the local vector clock, deduplicated by content fingerprint, and
// ingested.
//
// The mutex guards the clock, the known-peer set, and the seen set, which
// are mutated both by the round loop and by inbound ingestion.
type Protocol struct {
	nodeID          string
	filter          *memory.Filter
	tracker         *provenance.Tracker
	validator       *schema.Validator
	transport       Transport
	broker          *events.Broker
	interval        time.Duration
	fanout          int
	dispatchTimeout time.Duration
	now             func() time.Time
	rng             *rand.Rand

	mu    sync.Mutex
	clock *clock.Clock
	peers map[string]struct{}
	seen  map[string]time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithInterval overrides the round period.
func WithInterval(interval time.Duration) Option {
	return func(p *Protocol) { p.interval = interval }
}

// WithFanout overrides the per-round peer count.
func WithFanout(fanout int) Option {
	return func(p *Protocol) { p.fanout = fanout }
}

// WithDispatchTimeout overrides the per-peer send timeout.
func WithDispatchTimeout(timeout time.Duration) Option {
	return func(p *Protocol) { p.dispatchTimeout = timeout }
}

// WithBroker attaches an event broker for gossip events.
func WithBroker(b *events.Broker) Option {
	return func(p *Protocol) { p.broker = b }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// WithRandSeed makes peer selection deterministic for tests.
func WithRandSeed(seed int64) Option {
	return func(p *Protocol) { p.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a gossip protocol instance for the given node. The validator
// is injected rather than shared process-wide so each protocol instance is
// independently testable.
func New(nodeID string, filter *memory.Filter, tracker *provenance.Tracker, validator *schema.Validator, transport Transport, opts ...Option) *Protocol {
	p := &Protocol{
		nodeID:          nodeID,
		filter:          filter,
		tracker:         tracker,
		validator:       validator,
		transport:       transport,
		interval:        DefaultInterval,
		fanout:          DefaultFanout,
		dispatchTimeout: DefaultDispatchTimeout,
		now:             time.Now,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:           clock.New(nodeID),
		peers:           make(map[string]struct{}),
		seen:            make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured round period.
func (p *Protocol) Interval() time.Duration {
	return p.interval
}

// RegisterPeer adds a peer to the known-peer set. Registering self is a
// no-op.
func (p *Protocol) RegisterPeer(peerID string) {
	if peerID == "" || peerID == p.nodeID {
		return
	}
	p.mu.Lock()
	p.peers[peerID] = struct{}{}
	count := len(p.peers)
	p.mu.Unlock()
	metrics.GossipKnownPeers.Set(float64(count))
}

// RemovePeer drops a peer from the known-peer set.
func (p *Protocol) RemovePeer(peerID string) {
	p.mu.Lock()
	delete(p.peers, peerID)
	count := len(p.peers)
	p.mu.Unlock()
	metrics.GossipKnownPeers.Set(float64(count))
}

// Peers returns the known peers, sorted.
func (p *Protocol) Peers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peersLocked()
}

func (p *Protocol) peersLocked() []string {
	out := make([]string, 0, len(p.peers))
	for peer := range p.peers {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

// ClockSnapshot returns a copy of the local vector clock counters.
func (p *Protocol) ClockSnapshot() map[string]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Snapshot()
}

// CreateGossip builds, validates, and stamps one outbound message. The
// local clock counter advances exactly once per successfully created
// message; a message that fails validation leaves the clock untouched.
func (p *Protocol) CreateGossip(msgType types.MessageType, payload types.GossipPayload) (*types.GossipMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := &types.GossipMessage{
		NodeID:      p.nodeID,
		OutputType:  "gossip",
		Type:        msgType,
		Payload:     payload,
		VectorClock: p.clock.Snapshot(),
		Timestamp:   p.now().UTC(),
		Version:     ProtocolVersion,
	}

	if ok, detail := p.validator.ValidateNodeOutput(msg); !ok {
		return nil, fmt.Errorf("message failed validation: %s", detail)
	}

	p.clock.Increment()
	msg.VectorClock = p.clock.Snapshot()

	metrics.GossipMessagesCreatedTotal.Inc()
	return msg, nil
}

// Round executes one gossip cycle: pick a random fan-out of peers, build a
// message carrying the highest-value memories and the local peer view, and
// dispatch concurrently. Returns the number of successful dispatches. A
// round with fewer known peers than the fan-out is skipped entirely.
func (p *Protocol) Round(ctx context.Context) (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GossipRoundDuration)

	p.mu.Lock()
	if len(p.peers) < p.fanout {
		known := len(p.peers)
		p.mu.Unlock()
		log.WithComponent("gossip").Debug().
			Int("known_peers", known).
			Int("fanout", p.fanout).
			Msg("Skipping round, not enough peers")
		return 0, nil
	}
	targets := p.selectPeersLocked(p.fanout)
	knownPeers := p.peersLocked()
	p.mu.Unlock()

	payload := types.GossipPayload{
		Memories:   p.highValueMemories(),
		KnownPeers: knownPeers,
	}

	msg, err := p.CreateGossip(types.MessageState, payload)
	if err != nil {
		// A message this node built that fails its own schema is a bug
		// guard, not a retry path.
		log.WithComponent("gossip").Error().Err(err).Msg("Dropping round, outbound message invalid")
		return 0, err
	}

	return p.dispatch(ctx, targets, msg), nil
}

// selectPeersLocked picks n peers uniformly at random without replacement.
func (p *Protocol) selectPeersLocked(n int) []string {
	all := p.peersLocked()
	p.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all[:n]
}

// highValueMemories returns the top keep-set entries by score, capped.
func (p *Protocol) highValueMemories() []*types.MemoryCheckpoint {
	memories := p.filter.ExportHighValue()
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].RelevanceScore > memories[j].RelevanceScore
	})
	if len(memories) > maxPayloadMemories {
		memories = memories[:maxPayloadMemories]
	}
	return memories
}

// dispatch pushes msg to every target concurrently. Each send gets its own
// bounded timeout; one peer's failure never cancels the others. Partial
// success is the expected common case.
func (p *Protocol) dispatch(ctx context.Context, targets []string, msg *types.GossipMessage) int {
	var wg sync.WaitGroup
	results := make([]bool, len(targets))

	for i, peer := range targets {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
			defer cancel()

			if err := p.transport.Send(sendCtx, peer, msg); err != nil {
				metrics.GossipDispatchesTotal.WithLabelValues("failed").Inc()
				log.WithPeer(peer).Warn().Err(err).Msg("Gossip dispatch failed")
				return
			}
			metrics.GossipDispatchesTotal.WithLabelValues("ok").Inc()
			results[i] = true
		}(i, peer)
	}
	wg.Wait()

	delivered := 0
	for _, ok := range results {
		if ok {
			delivered++
		}
	}
	log.WithComponent("gossip").Debug().
		Int("targets", len(targets)).
		Int("delivered", delivered).
		Msg("Round complete")
	return delivered
}

// ReceiveGossip ingests one inbound message. The boolean reports
// acceptance; the reason is one of accepted, invalid, stale, or duplicate.
// Rejections are structured outcomes, never errors.
func (p *Protocol) ReceiveGossip(msg *types.GossipMessage) (bool, string) {
	if ok, detail := p.validator.ValidateNodeOutput(msg); !ok {
		metrics.GossipMessagesReceivedTotal.WithLabelValues(OutcomeInvalid).Inc()
		p.emitRejected(msg, OutcomeInvalid, detail)
		return false, OutcomeInvalid
	}

	fingerprint, err := Fingerprint(msg)
	if err != nil {
		metrics.GossipMessagesReceivedTotal.WithLabelValues(OutcomeInvalid).Inc()
		return false, OutcomeInvalid
	}

	p.mu.Lock()
	incoming := clock.FromSnapshot(msg.NodeID, msg.VectorClock)
	switch incoming.Compare(p.clock) {
	case clock.OrderBefore:
		// Strictly causally older state has already been superseded.
		p.mu.Unlock()
		metrics.GossipMessagesReceivedTotal.WithLabelValues(OutcomeStale).Inc()
		p.emitRejected(msg, OutcomeStale, "")
		return false, OutcomeStale
	case clock.OrderConcurrent:
		p.clock = p.clock.Merge(incoming)
	}

	now := p.now()
	p.evictSeenLocked(now)
	if _, dup := p.seen[fingerprint]; dup {
		p.mu.Unlock()
		metrics.GossipMessagesReceivedTotal.WithLabelValues(OutcomeDuplicate).Inc()
		p.emitRejected(msg, OutcomeDuplicate, "")
		return false, OutcomeDuplicate
	}
	p.seen[fingerprint] = now

	if msg.NodeID != p.nodeID {
		p.peers[msg.NodeID] = struct{}{}
	}
	for _, peer := range msg.Payload.KnownPeers {
		if peer != "" && peer != p.nodeID {
			p.peers[peer] = struct{}{}
		}
	}
	peerCount := len(p.peers)
	p.mu.Unlock()

	metrics.GossipKnownPeers.Set(float64(peerCount))

	ingested := 0
	for _, cp := range msg.Payload.Memories {
		if cp == nil || cp.RelevanceScore <= ingestScoreFloor {
			continue
		}
		p.filter.Add("gossip-"+memory.ContentID(cp.Content), cp.Content, cp.Timestamp)
		ingested++
	}

	metrics.GossipMessagesReceivedTotal.WithLabelValues(OutcomeAccepted).Inc()
	if p.broker != nil {
		p.broker.Publish(&events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventGossipAccepted,
			NodeID:    msg.NodeID,
			Timestamp: p.now(),
			Message:   "gossip accepted",
			Metadata: map[string]string{
				"type":     string(msg.Type),
				"ingested": fmt.Sprintf("%d", ingested),
			},
		})
	}
	log.WithPeer(msg.NodeID).Debug().
		Int("memories_ingested", ingested).
		Int("known_peers", peerCount).
		Msg("Gossip accepted")
	return true, OutcomeAccepted
}

// evictSeenLocked drops fingerprints older than the dedup window so the
// seen set stays bounded on long-running nodes.
func (p *Protocol) evictSeenLocked(now time.Time) {
	cutoff := now.Add(-time.Duration(seenWindowRounds) * p.interval)
	for fp, seenAt := range p.seen {
		if seenAt.Before(cutoff) {
			delete(p.seen, fp)
		}
	}
}

// AttestCapability records a self-attestation for capability with the
// given stake and returns the capability's full chain.
func (p *Protocol) AttestCapability(capability string, stake float64) *types.Attestation {
	entry := p.tracker.Attest(capability, p.nodeID, stake)
	p.tracker.AddToChain(capability, entry)

	log.WithCapability(capability).Info().
		Str("node_id", p.nodeID).
		Float64("stake", stake).
		Float64("confidence", entry.Confidence).
		Msg("Capability attested")

	return &types.Attestation{
		Capability: capability,
		Chain:      p.tracker.Chain(capability),
	}
}

// VerifyPeerCapability ingests a peer-supplied chain and verifies it.
// Appending the peer's entries locally propagates trust across the mesh;
// it also means a peer can deliberately weaken a chain with a low-stake
// vouch. Costly vouching treats that as a property, not a defect.
func (p *Protocol) VerifyPeerCapability(capability string, chain []*types.ProvenanceEntry, minConfidence float64) (bool, string) {
	for _, entry := range chain {
		if entry == nil {
			continue
		}
		p.tracker.AddToChain(capability, entry)
	}
	return p.tracker.VerifyChain(capability, minConfidence)
}

// Status is a read-only snapshot for logging and heartbeat payloads.
type Status struct {
	NodeID      string            `json:"node_id"`
	KnownPeers  []string          `json:"known_peers"`
	SeenCount   int               `json:"seen_count"`
	VectorClock map[string]uint64 `json:"vector_clock"`
}

// Snapshot returns the protocol's current status.
func (p *Protocol) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		NodeID:      p.nodeID,
		KnownPeers:  p.peersLocked(),
		SeenCount:   len(p.seen),
		VectorClock: p.clock.Snapshot(),
	}
}

// Fingerprint computes the dedup identity of a whole message: the SHA-256
// of its canonical JSON encoding. Map keys serialize in sorted order, so
// the encoding is deterministic.
func Fingerprint(msg *types.GossipMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (p *Protocol) emitRejected(msg *types.GossipMessage, reason, detail string) {
	if p.broker == nil {
		return
	}
	md := map[string]string{"reason": reason}
	if detail != "" {
		md["detail"] = detail
	}
	p.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventGossipRejected,
		NodeID:    msg.NodeID,
		Timestamp: p.now(),
		Message:   "gossip rejected",
		Metadata:  md,
	})
}
