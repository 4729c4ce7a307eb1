/*
Package gossip implements Clawster's epidemic dissemination engine.

Each node periodically pushes its highest-value memories and peer view to
a random fan-out of peers. There is no coordinator: state spreads
epidemically, and vector clocks give receivers enough causal context to
discard superseded state.

# Round

A round fires on a fixed interval, independent of the election loop:

	1. Skip the round if fewer known peers than the fan-out exist.
	2. Pick fan-out peers uniformly at random, without replacement.
	3. Take up to 5 highest-scoring keep-set memories as payload.
	4. Build the message, schema-validate it, then advance the local
	   vector-clock counter exactly once.
	5. Dispatch to all targets concurrently with a bounded per-peer
	   timeout. One peer's failure never cancels the others; partial
	   delivery is the normal case and is not retried within the round.

An outbound message that fails its own schema is dropped with the round.
That path is a bug guard, not a retry path.

# Ingestion

ReceiveGossip gates every inbound message through four checks, each a
structured rejection rather than an error:

	validate ──▶ causal order ──▶ fingerprint ──▶ ingest
	 "invalid"     "stale"         "duplicate"     "accepted"

A message whose vector clock is strictly older than the local clock is
stale. A concurrent clock is merged element-wise before proceeding. The
fingerprint is the SHA-256 of the whole message's canonical JSON; seen
fingerprints are held in a time-windowed set and evicted after ten round
intervals, so the dedup memory stays bounded on long-running nodes.

Accepted payload memories above the 0.5 relevance floor enter the local
decay filter under content-derived identifiers, and the sender plus its
advertised peers join the known-peer set.

# Capability Trust

AttestCapability and VerifyPeerCapability bridge gossip to the isnad
provenance chains: a node can vouch for its own capability with a stake,
ship the chain to a peer, and the peer verifies it weakest-link. Ingesting
a peer's chain entries locally is what propagates trust across the mesh;
it also lets a peer weaken a chain with a cheap vouch, which is the point
of costly vouching rather than a defect.
*/
package gossip
