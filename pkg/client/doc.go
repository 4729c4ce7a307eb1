/*
Package client provides a Go client library for a node's HTTP API.

It wraps the /v1 surface with type-safe methods so CLI commands and
external tooling do not hand-roll HTTP calls:

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                            │
	│  c := client.New("http://127.0.0.1:7946")                  │
	│  nodes, err := c.Nodes(ctx)                                │
	│  leader, err := c.Leader(ctx)                              │
	│                                                            │
	└──────────────────────────┬─────────────────────────────────┘
	                           │ JSON over HTTP
	                           ▼
	               ┌───────────────────────┐
	               │   node API (/v1/...)  │
	               └───────────────────────┘

Every method takes a context and respects the client timeout
(DefaultTimeout unless overridden with WithTimeout). Non-200 responses
are surfaced as errors carrying the server's error message.

Status is decoded into StatusResponse, a wire-shape mirror of the
agent's snapshot, so importing this package does not drag in the agent
and everything it composes.
*/
package client
