package clock

// Ordering is the result of comparing two vector clocks
type Ordering string

const (
	// OrderEqual means both clocks are identical
	OrderEqual Ordering = "equal"

	// OrderBefore means the receiver causally precedes the argument
	OrderBefore Ordering = "before"

	// OrderAfter means the receiver causally follows the argument
	OrderAfter Ordering = "after"

	// OrderConcurrent means neither clock dominates the other
	OrderConcurrent Ordering = "concurrent"
)

// Clock is a vector clock: a per-node counter map used to derive partial
// causal ordering between distributed events. A node only ever advances its
// own entry via Increment; Merge produces a new clock and never decreases
// any entry.
//
// Clock is not safe for concurrent use. The gossip protocol serializes all
// access to its clock under its own mutex.
type Clock struct {
	nodeID   string
	counters map[string]uint64
}

// New creates a clock owned by nodeID with its own counter at zero.
func New(nodeID string) *Clock {
	return &Clock{
		nodeID:   nodeID,
		counters: map[string]uint64{nodeID: 0},
	}
}

// FromSnapshot reconstructs a clock owned by nodeID from a wire snapshot.
// The snapshot is copied, not retained.
func FromSnapshot(nodeID string, counters map[string]uint64) *Clock {
	c := &Clock{
		nodeID:   nodeID,
		counters: make(map[string]uint64, len(counters)+1),
	}
	for node, count := range counters {
		c.counters[node] = count
	}
	if _, ok := c.counters[nodeID]; !ok {
		c.counters[nodeID] = 0
	}
	return c
}

// NodeID returns the owning node's identifier.
func (c *Clock) NodeID() string {
	return c.nodeID
}

// Increment advances this node's own counter. Counters only ever increase.
func (c *Clock) Increment() {
	c.counters[c.nodeID]++
}

// Counter returns the counter recorded for node, zero if absent.
func (c *Clock) Counter(node string) uint64 {
	return c.counters[node]
}

// Snapshot returns a copy of the counter map for serialization.
func (c *Clock) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(c.counters))
	for node, count := range c.counters {
		out[node] = count
	}
	return out
}

// Merge returns a new clock holding the element-wise max over the union of
// both counter maps. Merge is pure: neither operand is modified. It is
// commutative, associative, and idempotent.
func (c *Clock) Merge(other *Clock) *Clock {
	merged := &Clock{
		nodeID:   c.nodeID,
		counters: make(map[string]uint64, len(c.counters)+len(other.counters)),
	}
	for node, count := range c.counters {
		merged.counters[node] = count
	}
	for node, count := range other.counters {
		if count > merged.counters[node] {
			merged.counters[node] = count
		}
	}
	return merged
}

// Compare classifies the causal relationship between c and other. Exactly
// one of equal, before, after, or concurrent holds for any pair.
func (c *Clock) Compare(other *Clock) Ordering {
	union := make(map[string]struct{}, len(c.counters)+len(other.counters))
	for node := range c.counters {
		union[node] = struct{}{}
	}
	for node := range other.counters {
		union[node] = struct{}{}
	}

	var less, greater bool
	for node := range union {
		a, b := c.counters[node], other.counters[node]
		switch {
		case a < b:
			less = true
		case a > b:
			greater = true
		}
	}

	switch {
	case !less && !greater:
		return OrderEqual
	case less && !greater:
		return OrderBefore
	case greater && !less:
		return OrderAfter
	default:
		return OrderConcurrent
	}
}

// ResolveConflict deterministically reconciles two concurrent clocks by
// merging them. Callers needing a winner among the owners should break
// ties on lexicographic node ID ordering.
func ResolveConflict(a, b *Clock) *Clock {
	return a.Merge(b)
}

// TiebreakOwner picks the winning owner between two concurrent clocks using
// lexicographic node ID ordering, the deterministic tiebreak applied by
// conflict resolution utilities.
func TiebreakOwner(a, b *Clock) string {
	if a.nodeID <= b.nodeID {
		return a.nodeID
	}
	return b.nodeID
}
