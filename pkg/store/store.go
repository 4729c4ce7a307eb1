package store

import (
	"context"
	"time"
)

// Store is the narrow interface the coordination core requires from the
// shared external key-value store. The three conditional operations are
// the mutual-exclusion primitives leader election rests on; everything
// else is bookkeeping. Implementations must make each conditional
// operation a single indivisible step against the shared store; an
// ordinary get-then-set is insufficient and reopens the split-brain
// window.
type Store interface {
	// SetIfAbsent sets key to value with an expiry, only if the key does
	// not exist. Returns true if the set happened (lease acquisition).
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// ExtendIfEquals extends the expiry of key, only if its current value
	// still equals value (lease renewal). Returns false if the holder has
	// lost the key.
	ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// DeleteIfEquals deletes key, only if its current value still equals
	// value (lease release). A node that already lost the lease cannot
	// delete a subsequent holder's key.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)

	// Get returns the value at key; the bool reports presence.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key unconditionally.
	Set(ctx context.Context, key, value string) error

	// SetWithTTL writes key with an expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key unconditionally.
	Delete(ctx context.Context, key string) error

	// Scan returns every live key-value pair under prefix.
	Scan(ctx context.Context, prefix string) (map[string]string, error)

	// HSet writes one field of a hash.
	HSet(ctx context.Context, hash, field, value string) error

	// HGet reads one field of a hash; the bool reports presence.
	HGet(ctx context.Context, hash, field string) (string, bool, error)

	// HGetAll returns every field of a hash.
	HGetAll(ctx context.Context, hash string) (map[string]string, error)

	// HDel removes one field of a hash.
	HDel(ctx context.Context, hash, field string) error

	// AppendEvent appends value to an event trail, trimming the trail to
	// at most maxLen retained entries (oldest dropped first).
	AppendEvent(ctx context.Context, trail, value string, maxLen int) error

	// ListEvents returns up to limit entries from a trail, newest first.
	ListEvents(ctx context.Context, trail string, limit int) ([]string, error)

	// Publish sends a fire-and-forget message to every subscriber of
	// channel. Delivery is best-effort.
	Publish(ctx context.Context, channel, message string) error

	// Subscribe returns a channel of messages published to channel. The
	// subscription ends when ctx is canceled.
	Subscribe(ctx context.Context, channel string) (<-chan string, error)

	// Close releases the underlying connection.
	Close() error
}

// Shared key layout. A single flat namespace keeps the etcd and in-memory
// implementations interchangeable.
const (
	// LeaderLockKey is the single global lease key.
	LeaderLockKey = "clawster/cluster/leader_lock"

	// LeaderHistoryTrail records leader changes, bounded.
	LeaderHistoryTrail = "clawster/cluster/leader_history"

	// EventsTrail records failures, recoveries, and migrations, bounded.
	EventsTrail = "clawster/cluster/events"

	// NodesHash is the shared node registry.
	NodesHash = "clawster/cluster/nodes"

	// FailoverChannel carries fire-and-forget failover notices.
	FailoverChannel = "clawster/cluster/failover"

	// SessionPrefix scopes session ownership records.
	SessionPrefix = "clawster/cluster/sessions/"

	// HeartbeatPrefix scopes TTL-bounded per-node heartbeat records.
	HeartbeatPrefix = "clawster/cluster/hb/"
)
