/*
Package memory implements relevance-decay scoring for ephemeral memories and
their durable checkpoint store.

The Filter scores every tracked memory with an ACT-R inspired model:
exponential decay by age, boosted by access frequency. Gossip rounds use the
keep set to decide which memories are worth propagating; entries whose score
drops below the threshold are shed (they simply stop being selected; nothing
is explicitly deleted). The CheckpointStore persists the keep set in BoltDB
so a node restores its high-value memories across restarts.

# Scoring Model

	base  = exp(-ln(2)/half_life_days * age_days)
	boost = ln(access_count + 1) / 5        (only when access_count > 0)
	score = min(base * (1 + boost), 1.0)

Defaults: 30-day half-life, 0.3 relevance threshold. The score is
monotonically decreasing in age for fixed access count, monotonically
non-decreasing in access count for fixed age, and always within [0, 1].

	score
	1.0 ┤\
	    │ \___
	0.5 ┤     \____
	0.3 ┤──────────\─────── threshold
	    │           \______
	0.0 └┬────┬────┬────┬── age (days)
	     0   30   60   90

# Lifecycle

  - Add: fresh entry, zero access count; same id overwrites
  - Access: bumps access count, refreshes last-access, returns content
  - FilterByRelevance: classifies into keep/shed, stable by insertion order
  - Checkpoint / ExportHighValue: serialize entries with current scores
  - Restore: re-insert from checkpoints under content-derived identifiers
    (full SHA-256 of the content, no modulus, no cross-content collisions)

# Checkpoint Persistence

CheckpointStore keeps one BoltDB bucket keyed by content hash:

	store, _ := memory.NewCheckpointStore(dataDir)
	defer store.Close()

	store.Save(filter.ExportHighValue())   // on shutdown
	cps, _ := store.Load()                 // on startup
	filter.Restore(cps)

Prune drops persisted checkpoints that have decayed out of the keep set, so
the database tracks the live working set rather than growing forever.

# Concurrency

Filter is safe for concurrent use: gossip ingestion adds entries from
inbound payloads while the round loop exports the keep set. All scoring is
pure computation; only the entry map is guarded.

# Integration Points

  - pkg/gossip: ranks round payloads, ingests high-relevance inbound items
  - pkg/agent: persists/restores checkpoints around restarts, reports
    memory stats in heartbeats
*/
package memory
