package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clawster/clawster/pkg/types"
)

// Transport delivers one gossip message to one peer. Implementations must
// honor ctx cancellation; the round applies a bounded per-peer timeout.
type Transport interface {
	Send(ctx context.Context, peerID string, msg *types.GossipMessage) error
}

// AddressResolver maps a peer id to a dialable address. The registry
// provides this in production.
type AddressResolver func(peerID string) (string, bool)

// HTTPTransport pushes gossip messages as JSON over HTTP.
type HTTPTransport struct {
	client  *http.Client
	resolve AddressResolver
}

// NewHTTPTransport creates a transport that resolves peer addresses via
// the given resolver.
func NewHTTPTransport(resolve AddressResolver) *HTTPTransport {
	return &HTTPTransport{
		client:  &http.Client{Timeout: 10 * time.Second},
		resolve: resolve,
	}
}

// Send posts the message to the peer's gossip endpoint.
func (t *HTTPTransport) Send(ctx context.Context, peerID string, msg *types.GossipMessage) error {
	addr, ok := t.resolve(peerID)
	if !ok {
		return fmt.Errorf("no address for peer %s", peerID)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal gossip message: %w", err)
	}

	url := fmt.Sprintf("http://%s/v1/gossip", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach peer %s: %w", peerID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	// Logical rejections (stale, duplicate) come back as 200 with a
	// reason body; only transport-level failures are errors here.
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("peer %s returned status %d", peerID, resp.StatusCode)
	}
	return nil
}
