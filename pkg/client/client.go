package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clawster/clawster/pkg/api"
	"github.com/clawster/clawster/pkg/gossip"
	"github.com/clawster/clawster/pkg/types"
)

// DefaultTimeout bounds every request issued by the client.
const DefaultTimeout = 10 * time.Second

// Client is a Go client for a node's HTTP API.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient substitutes the underlying HTTP client, for tests or
// custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the node API at base, e.g.
// "http://127.0.0.1:7946".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusResponse mirrors the node's status snapshot on the wire. It is
// declared here rather than reusing the agent's type so importing the
// client does not pull in the full agent dependency graph.
type StatusResponse struct {
	NodeID       string               `json:"node_id"`
	Address      string               `json:"address"`
	IsLeader     bool                 `json:"is_leader"`
	Leader       string               `json:"leader,omitempty"`
	Capabilities []string             `json:"capabilities,omitempty"`
	Gossip       gossip.Status        `json:"gossip"`
	MemoryTotal  int                  `json:"memory_total"`
	MemoryActive int                  `json:"memory_active"`
	Cluster      *types.ClusterHealth `json:"cluster,omitempty"`
}

// Status returns the node's status snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.get(ctx, "/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Nodes lists all registered nodes.
func (c *Client) Nodes(ctx context.Context) ([]*types.Node, error) {
	var nodes []*types.Node
	if err := c.get(ctx, "/v1/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Node returns a single node by ID, or an error if it is not registered.
func (c *Client) Node(ctx context.Context, id string) (*types.Node, error) {
	var node types.Node
	if err := c.get(ctx, "/v1/nodes/"+id, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Leader returns the current lease holder.
func (c *Client) Leader(ctx context.Context) (api.LeaderResponse, error) {
	var resp api.LeaderResponse
	if err := c.get(ctx, "/v1/leader", &resp); err != nil {
		return api.LeaderResponse{}, err
	}
	return resp, nil
}

// Events returns the cluster event trail, newest first.
func (c *Client) Events(ctx context.Context) ([]types.ClusterEvent, error) {
	var events []types.ClusterEvent
	if err := c.get(ctx, "/v1/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Attest asks the node to attest one of its capabilities.
func (c *Client) Attest(ctx context.Context, capability string, stake float64) (*types.Attestation, error) {
	var att types.Attestation
	req := api.AttestRequest{Capability: capability, Stake: stake}
	if err := c.post(ctx, "/v1/capabilities/attest", req, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Verify asks the node to verify a provenance chain. A zero minConfidence
// uses the node's default.
func (c *Client) Verify(ctx context.Context, capability string, chain []*types.ProvenanceEntry, minConfidence float64) (api.VerifyResponse, error) {
	var resp api.VerifyResponse
	req := api.VerifyRequest{
		Capability:    capability,
		Chain:         chain,
		MinConfidence: minConfidence,
	}
	if err := c.post(ctx, "/v1/capabilities/verify", req, &resp); err != nil {
		return api.VerifyResponse{}, err
	}
	return resp, nil
}

// SendGossip delivers a message to the node's receive pipeline and
// reports whether it was accepted.
func (c *Client) SendGossip(ctx context.Context, msg *types.GossipMessage) (api.GossipResponse, error) {
	var resp api.GossipResponse
	if err := c.post(ctx, "/v1/gossip", msg, &resp); err != nil {
		return api.GossipResponse{}, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
