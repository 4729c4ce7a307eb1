package provenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/clawster/clawster/pkg/types"
)

// DefaultMinConfidence is the verification floor applied when callers do
// not supply one.
const DefaultMinConfidence = 0.5

// unstakedConfidence is the confidence assigned to a vouch with nothing at
// risk.
const unstakedConfidence = 0.5

// Tracker accumulates isnad-style attestation chains per capability.
// Chains are append-only: no entry is ever removed or reordered, and a
// chain's trust equals its weakest attester.
type Tracker struct {
	nodeID string

	mu     sync.RWMutex
	chains map[string][]*types.ProvenanceEntry

	now func() time.Time
}

// NewTracker creates a tracker owned by nodeID.
func NewTracker(nodeID string) *Tracker {
	return &Tracker{
		nodeID: nodeID,
		chains: make(map[string][]*types.ProvenanceEntry),
		now:    time.Now,
	}
}

// Attest produces a new attestation entry. Confidence is proportional to
// stake (costly vouching): min(stake/100, 1.0) when staked, 0.5 for an
// unstaked vouch. Attest has no side effects; pair it with AddToChain.
func (t *Tracker) Attest(capability, vouchingNode string, stake float64) *types.ProvenanceEntry {
	confidence := unstakedConfidence
	if stake > 0 {
		confidence = stake / 100.0
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return &types.ProvenanceEntry{
		NodeID:     vouchingNode,
		Capability: capability,
		Timestamp:  t.now().UTC(),
		Confidence: confidence,
	}
}

// AddToChain appends entry to the capability's chain, creating the chain if
// absent.
func (t *Tracker) AddToChain(capability string, entry *types.ProvenanceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chains[capability] = append(t.chains[capability], entry)
}

// VerifyChain checks the capability's chain against minConfidence. The
// chain fails if it does not exist, if any single entry falls below the
// floor (a chain is only as strong as its weakest link), or if entries are
// out of timestamp order. The reason string is human-readable either way.
func (t *Tracker) VerifyChain(capability string, minConfidence float64) (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain := t.chains[capability]
	if len(chain) == 0 {
		return false, "no provenance chain"
	}

	minFound := chain[0].Confidence
	for _, e := range chain[1:] {
		if e.Confidence < minFound {
			minFound = e.Confidence
		}
	}
	if minFound < minConfidence {
		return false, fmt.Sprintf("weak link: confidence %g < %g", minFound, minConfidence)
	}

	for i := 1; i < len(chain); i++ {
		if chain[i].Timestamp.Before(chain[i-1].Timestamp) {
			return false, fmt.Sprintf("timestamp anomaly at position %d", i)
		}
	}

	return true, fmt.Sprintf("valid chain with %d attestations", len(chain))
}

// Chain returns a copy of the capability's chain, empty if never attested.
func (t *Tracker) Chain(capability string) []*types.ProvenanceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain := t.chains[capability]
	out := make([]*types.ProvenanceEntry, len(chain))
	copy(out, chain)
	return out
}

// Capabilities lists every capability with at least one attestation.
func (t *Tracker) Capabilities() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.chains))
	for cap := range t.chains {
		out = append(out, cap)
	}
	return out
}

// Export returns all chains, fully copied, for transmission or persistence.
func (t *Tracker) Export() map[string][]*types.ProvenanceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]*types.ProvenanceEntry, len(t.chains))
	for cap, chain := range t.chains {
		cp := make([]*types.ProvenanceEntry, len(chain))
		copy(cp, chain)
		out[cap] = cp
	}
	return out
}
