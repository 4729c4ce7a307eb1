/*
Package registry maintains Clawster's shared node membership table.

Every node reads and writes the same hash in the external store, so
membership is a shared view rather than a per-node guess. Entries are
JSON-encoded Node records keyed by node id; writes are last-write-wins.

Liveness is tracked separately from membership. Each node's Heartbeater
writes a TTL-bounded record per beat; if the node dies, the record expires
without any cleanup action, and the lapse is what peers observe:

	registry hash     clawster/cluster/nodes        (durable membership)
	heartbeat keys    clawster/cluster/hb/<node>    (TTL liveness)

AlivePeers joins the two: registered nodes with a live heartbeat key.
ExpiredPeers is its complement and feeds the failover monitor.

Heartbeat writes retry transient store errors a small fixed number of times
with backoff, then give up until the next tick. A node that cannot reach
the store long enough for its record to lapse is, from the cluster's point
of view, failed.
*/
package registry
