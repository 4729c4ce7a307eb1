package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/clawster/clawster/pkg/types"
)

const (
	// DefaultHalfLifeDays is the decay half-life applied when none is
	// configured.
	DefaultHalfLifeDays = 30.0

	// DefaultThreshold is the relevance score below which entries are shed.
	DefaultThreshold = 0.3
)

// entry is one tracked memory with decay bookkeeping.
type entry struct {
	content     string
	timestamp   time.Time
	accessCount int
	lastAccess  *time.Time
}

// relevance computes the ACT-R inspired score at now: exponential decay by
// age, boosted by access frequency, clamped to [0, 1].
func (e *entry) relevance(now time.Time, halfLifeDays float64) float64 {
	ageDays := now.Sub(e.timestamp).Seconds() / 86400

	decayRate := math.Ln2 / halfLifeDays
	base := math.Exp(-decayRate * ageDays)

	score := base
	if e.accessCount > 0 {
		boost := math.Log(float64(e.accessCount)+1) / 5.0
		score = base * (1 + boost)
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// Filter tracks ephemeral memories and scores them by recency and access
// frequency. Entries are never explicitly deleted; they simply stop being
// selected once their score drops below the threshold.
//
// Filter is safe for concurrent use: gossip ingestion and gossip rounds
// touch it from different goroutines.
type Filter struct {
	halfLifeDays float64
	threshold    float64

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, for deterministic filtering

	now func() time.Time
}

// Option configures a Filter.
type Option func(*Filter)

// WithHalfLife overrides the decay half-life in days.
func WithHalfLife(days float64) Option {
	return func(f *Filter) { f.halfLifeDays = days }
}

// WithThreshold overrides the relevance threshold.
func WithThreshold(threshold float64) Option {
	return func(f *Filter) { f.threshold = threshold }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// NewFilter creates a decay filter with the given options.
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		halfLifeDays: DefaultHalfLifeDays,
		threshold:    DefaultThreshold,
		entries:      make(map[string]*entry),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add inserts a fresh entry with zero access count, overwriting any
// existing entry with the same id. A zero timestamp means now.
func (f *Filter) Add(id, content string, timestamp time.Time) {
	if timestamp.IsZero() {
		timestamp = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[id]; !exists {
		f.order = append(f.order, id)
	}
	f.entries[id] = &entry{content: content, timestamp: timestamp}
}

// Access returns the content of id, bumping its access count and refreshing
// its last-access timestamp. The second return is false if id is unknown.
func (f *Filter) Access(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return "", false
	}
	e.accessCount++
	at := f.now()
	e.lastAccess = &at
	return e.content, true
}

// Score returns the current relevance score of id, false if unknown.
func (f *Filter) Score(id string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return 0, false
	}
	return e.relevance(f.now(), f.halfLifeDays), true
}

// FilterByRelevance classifies every tracked entry into keep (score at or
// above the threshold) and shed. Both lists are stable by insertion order
// for a given snapshot.
func (f *Filter) FilterByRelevance(now time.Time) (keep, shed []string) {
	if now.IsZero() {
		now = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.order {
		e := f.entries[id]
		if e.relevance(now, f.halfLifeDays) >= f.threshold {
			keep = append(keep, id)
		} else {
			shed = append(shed, id)
		}
	}
	return keep, shed
}

// Checkpoint serializes the entry for id with its current score. The second
// return is false if id is unknown.
func (f *Filter) Checkpoint(id string) (*types.MemoryCheckpoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkpointLocked(id)
}

func (f *Filter) checkpointLocked(id string) (*types.MemoryCheckpoint, bool) {
	e, ok := f.entries[id]
	if !ok {
		return nil, false
	}
	return &types.MemoryCheckpoint{
		Content:        e.content,
		Timestamp:      e.timestamp,
		AccessCount:    e.accessCount,
		LastAccess:     e.lastAccess,
		RelevanceScore: e.relevance(f.now(), f.halfLifeDays),
	}, true
}

// Restore re-inserts entries from checkpoints under content-derived
// identifiers. The identifier is the full content hash, so distinct content
// never collides.
func (f *Filter) Restore(checkpoints []*types.MemoryCheckpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cp := range checkpoints {
		if cp == nil {
			continue
		}
		id := "checkpoint-" + ContentID(cp.Content)
		if _, exists := f.entries[id]; !exists {
			f.order = append(f.order, id)
		}
		f.entries[id] = &entry{
			content:     cp.Content,
			timestamp:   cp.Timestamp,
			accessCount: cp.AccessCount,
			lastAccess:  cp.LastAccess,
		}
	}
}

// ExportHighValue returns checkpoints for every entry currently in the
// keep set, in insertion order.
func (f *Filter) ExportHighValue() []*types.MemoryCheckpoint {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*types.MemoryCheckpoint
	for _, id := range f.order {
		e := f.entries[id]
		if e.relevance(now, f.halfLifeDays) >= f.threshold {
			cp, _ := f.checkpointLocked(id)
			out = append(out, cp)
		}
	}
	return out
}

// Len returns the number of tracked entries.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Stats reports totals for heartbeat payloads: all tracked entries and the
// size of the current keep set.
func (f *Filter) Stats() (total, active int) {
	keep, shed := f.FilterByRelevance(time.Time{})
	return len(keep) + len(shed), len(keep)
}

// ContentID derives a stable identifier from memory content using the full
// SHA-256 hash. No modulus: truncating the hash space invites collisions
// across distinct content.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
