/*
Package api exposes a node's HTTP surface.

Peers push gossip to POST /v1/gossip; the response is always a structured
outcome (accepted plus a reason), with non-200 statuses reserved for
transport-level problems. The remaining /v1 routes are operator-facing
introspection and the capability attestation surface:

	POST /v1/gossip                  ingest one gossip message
	GET  /v1/status                  node status snapshot
	GET  /v1/nodes                   registry listing
	GET  /v1/nodes/{id}              single node
	GET  /v1/leader                  current lease holder
	GET  /v1/events                  failure/recovery trail
	POST /v1/capabilities/attest     self-attest a capability
	POST /v1/capabilities/verify     verify a peer-supplied chain

Operational endpoints (/metrics, /healthz, /readyz, /livez) are served
from the same listener. All routes pass through a metrics middleware that
labels by route template to keep label cardinality bounded.
*/
package api
