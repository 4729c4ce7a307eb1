package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

const (
	// DefaultHeartbeatInterval is how often a node writes its liveness
	// record.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultHeartbeatTTL is how long a heartbeat record outlives its
	// writer. Three missed beats mark a node as a failover candidate.
	DefaultHeartbeatTTL = 15 * time.Second

	// heartbeatRetries bounds retries on transient store errors within a
	// single beat.
	heartbeatRetries = 3
)

// StatusFunc supplies the current heartbeat payload. It is called once per
// beat so the payload reflects the node's role at write time.
type StatusFunc func() types.Heartbeat

// Heartbeater periodically writes a TTL-bounded liveness record for this
// node and refreshes its registry entry. If the node dies, the record
// expires on its own and peers notice the lapse.
type Heartbeater struct {
	nodeID   string
	store    store.Store
	registry *Registry
	status   StatusFunc
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// HeartbeaterOption configures a Heartbeater.
type HeartbeaterOption func(*Heartbeater)

// WithInterval overrides the beat interval.
func WithInterval(interval time.Duration) HeartbeaterOption {
	return func(h *Heartbeater) { h.interval = interval }
}

// WithTTL overrides the heartbeat record expiry.
func WithTTL(ttl time.Duration) HeartbeaterOption {
	return func(h *Heartbeater) { h.ttl = ttl }
}

// NewHeartbeater creates a heartbeater for the given node.
func NewHeartbeater(nodeID string, st store.Store, reg *Registry, status StatusFunc, opts ...HeartbeaterOption) *Heartbeater {
	h := &Heartbeater{
		nodeID:   nodeID,
		store:    st,
		registry: reg,
		status:   status,
		interval: DefaultHeartbeatInterval,
		ttl:      DefaultHeartbeatTTL,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins the heartbeat loop.
func (h *Heartbeater) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop stops the heartbeat loop and waits for it to exit.
func (h *Heartbeater) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

func (h *Heartbeater) run(ctx context.Context) {
	defer close(h.doneCh)

	// Write the first beat immediately so peers see the node without
	// waiting out an interval.
	h.beatWithRetry(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.beatWithRetry(ctx)
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Beat writes a single heartbeat record. Exposed for callers that manage
// their own scheduling.
func (h *Heartbeater) Beat(ctx context.Context) error {
	hb := h.status()
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now()
	}

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	if err := h.store.SetWithTTL(ctx, store.HeartbeatPrefix+h.nodeID, string(data), h.ttl); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	if err := h.registry.Touch(ctx, h.nodeID); err != nil {
		// A missing registry entry means this node was deregistered; the
		// heartbeat itself still landed.
		log.WithComponent("heartbeat").Warn().Err(err).Msg("Failed to refresh registry entry")
	}
	return nil
}

// beatWithRetry retries transient store failures with linear backoff, then
// gives up until the next tick.
func (h *Heartbeater) beatWithRetry(ctx context.Context) {
	var err error
	for attempt := 1; attempt <= heartbeatRetries; attempt++ {
		if err = h.Beat(ctx); err == nil {
			metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
			return
		}
		log.WithComponent("heartbeat").Warn().
			Str("node_id", h.nodeID).
			Int("attempt", attempt).
			Err(err).
			Msg("Heartbeat attempt failed")

		select {
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		}
	}

	metrics.HeartbeatsTotal.WithLabelValues("failed").Inc()
	log.WithComponent("heartbeat").Error().
		Str("node_id", h.nodeID).
		Err(err).
		Msg("Heartbeat failed after retries")
}
