package election

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawster/clawster/pkg/events"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

const (
	// DefaultLockTTL bounds how long a crashed leader's lease lingers.
	DefaultLockTTL = 10 * time.Second

	// historyMaxLen bounds the shared leader-change trail.
	historyMaxLen = 100
)

// ChangeCallback is invoked whenever this node gains or loses leadership.
// Callbacks run synchronously on the election goroutine and must not block.
type ChangeCallback func(isLeader bool)

// Election implements lease-based leader election over the shared store.
// Mutual exclusion rests entirely on the store's conditional operations;
// the in-process mutex only guards this node's local view of its own role.
//
// The lease value is "<node id>:<acquisition nonce>". The nonce lets a
// restarted node distinguish a lease it still holds from a lease a previous
// incarnation of the same node id held.
type Election struct {
	nodeID  string
	store   store.Store
	lockTTL time.Duration
	broker  *events.Broker
	now     func() time.Time

	mu         sync.Mutex
	lockValue  string
	isLeader   bool
	extendedAt time.Time
	callbacks  []ChangeCallback
}

// Option configures an Election.
type Option func(*Election)

// WithLockTTL overrides the lease duration.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Election) { e.lockTTL = ttl }
}

// WithBroker attaches an event broker for leadership change events.
func WithBroker(b *events.Broker) Option {
	return func(e *Election) { e.broker = b }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Election) { e.now = now }
}

// New creates an Election for the given node over the given store.
func New(nodeID string, st store.Store, opts ...Option) *Election {
	e := &Election{
		nodeID:  nodeID,
		store:   st,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnChange registers a callback for leadership transitions.
func (e *Election) OnChange(cb ChangeCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// IsLeader reports this node's local view of its role. It can be stale for
// up to one renewal interval after the lease is actually lost.
func (e *Election) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLeader
}

// LockTTL returns the configured lease duration.
func (e *Election) LockTTL() time.Duration {
	return e.lockTTL
}

// TryAcquire attempts to take the lease. Failure to acquire is a normal
// outcome, not an error: it simply means another node leads.
func (e *Election) TryAcquire(ctx context.Context) (bool, error) {
	value := e.nodeID + ":" + uuid.New().String()

	acquired, err := e.store.SetIfAbsent(ctx, store.LeaderLockKey, value, e.lockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	e.mu.Lock()
	e.lockValue = value
	e.isLeader = true
	e.extendedAt = e.now()
	cbs := append([]ChangeCallback(nil), e.callbacks...)
	e.mu.Unlock()

	metrics.LeaseAcquisitionsTotal.Inc()
	metrics.IsLeader.Set(1)

	e.recordHistory(ctx, "elected", true)
	e.emit(events.EventLeaderElected, "acquired leader lease")
	log.WithComponent("election").Info().
		Str("node_id", e.nodeID).
		Dur("lock_ttl", e.lockTTL).
		Msg("Became leader")

	for _, cb := range cbs {
		cb(true)
	}
	return true, nil
}

// Renew extends the lease if this node still holds it. Returning false
// means leadership was lost; the node has already stepped down locally
// by the time Renew returns. A store error inside the lease window leaves
// leadership intact so the next tick can retry; once the full window has
// elapsed without a successful extension the error is treated as loss,
// since another node may now hold the lease.
func (e *Election) Renew(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if !e.isLeader {
		e.mu.Unlock()
		return false, nil
	}
	value := e.lockValue
	e.mu.Unlock()

	extended, err := e.store.ExtendIfEquals(ctx, store.LeaderLockKey, value, e.lockTTL)
	if err != nil {
		if e.sinceExtended() >= e.lockTTL {
			metrics.LeaseRenewalsTotal.WithLabelValues("lost").Inc()
			e.stepDown(ctx, "lost")
		}
		return false, err
	}
	if extended {
		e.mu.Lock()
		e.extendedAt = e.now()
		e.mu.Unlock()
		metrics.LeaseRenewalsTotal.WithLabelValues("renewed").Inc()
		return true, nil
	}

	metrics.LeaseRenewalsTotal.WithLabelValues("lost").Inc()
	e.stepDown(ctx, "lost")
	return false, nil
}

// Release voluntarily gives up the lease. Only the rightful holder's
// conditional delete succeeds; a node that already lost the lease cannot
// remove a subsequent holder's claim.
func (e *Election) Release(ctx context.Context) error {
	e.mu.Lock()
	if !e.isLeader {
		e.mu.Unlock()
		return nil
	}
	value := e.lockValue
	e.mu.Unlock()

	if _, err := e.store.DeleteIfEquals(ctx, store.LeaderLockKey, value); err != nil {
		return err
	}
	e.stepDown(ctx, "released")
	return nil
}

// CurrentHolder reads the lease's holder id. The answer is non-authoritative
// and may be stale between read and use; callers must not treat it as a
// guarantee of exclusivity.
func (e *Election) CurrentHolder(ctx context.Context) (string, error) {
	value, ok, err := e.store.Get(ctx, store.LeaderLockKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	holder, _, _ := strings.Cut(value, ":")
	return holder, nil
}

// History returns up to limit leader-change records, newest first.
func (e *Election) History(ctx context.Context, limit int) ([]types.LeaderRecord, error) {
	raw, err := e.store.ListEvents(ctx, store.LeaderHistoryTrail, limit)
	if err != nil {
		return nil, err
	}
	records := make([]types.LeaderRecord, 0, len(raw))
	for _, entry := range raw {
		var rec types.LeaderRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			log.WithComponent("election").Warn().Err(err).Msg("Skipping malformed leader history entry")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// sinceExtended reports how long ago the lease was last acquired or renewed.
func (e *Election) sinceExtended() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Sub(e.extendedAt)
}

func (e *Election) stepDown(ctx context.Context, event string) {
	e.mu.Lock()
	e.isLeader = false
	e.lockValue = ""
	cbs := append([]ChangeCallback(nil), e.callbacks...)
	e.mu.Unlock()

	metrics.IsLeader.Set(0)
	if event == "lost" {
		metrics.LeadershipLossesTotal.Inc()
	}

	e.recordHistory(ctx, event, false)
	e.emit(events.EventLeaderLost, "leadership "+event)
	log.WithComponent("election").Warn().
		Str("node_id", e.nodeID).
		Str("event", event).
		Msg("Stepped down")

	for _, cb := range cbs {
		cb(false)
	}
}

func (e *Election) recordHistory(ctx context.Context, event string, isLeader bool) {
	rec := types.LeaderRecord{
		Timestamp: e.now(),
		NodeID:    e.nodeID,
		Event:     event,
		IsLeader:  isLeader,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := e.store.AppendEvent(ctx, store.LeaderHistoryTrail, string(data), historyMaxLen); err != nil {
		log.WithComponent("election").Warn().Err(err).Msg("Failed to record leader history")
	}
}

func (e *Election) emit(eventType events.EventType, msg string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		NodeID:    e.nodeID,
		Timestamp: e.now(),
		Message:   msg,
	})
}
