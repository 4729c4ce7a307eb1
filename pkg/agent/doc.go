/*
Package agent composes a full Clawster node.

An Agent owns one of everything and wires the loops together:

	┌────────────────────────── AGENT ──────────────────────────┐
	│                                                           │
	│  election.Watcher ──── lease renew/acquire ────┐          │
	│  gossip.Runner ─────── epidemic rounds ────────┤          │
	│  registry.Heartbeater ─ TTL liveness record ───┼──▶ store │
	│  failover.Monitor ──── leader-gated sweep ─────┘          │
	│                                                           │
	│  api.Server ◀── inbound gossip + introspection            │
	│  memory.CheckpointStore ◀── periodic persist/restore      │
	│  events.Broker ◀── in-process event fan-out               │
	└───────────────────────────────────────────────────────────┘

The four periodic loops are independent goroutines: a slow gossip round
never delays lease renewal, and a stalled store call in one loop leaves
the others running. Startup registers the node, restores checkpointed
memories, self-attests configured capabilities, and seeds gossip peers
from the registry; shutdown releases the lease and persists the keep-set
before closing the store.
*/
package agent
