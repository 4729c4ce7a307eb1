package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawster/clawster/pkg/election"
	"github.com/clawster/clawster/pkg/failover"
	"github.com/clawster/clawster/pkg/gossip"
	"github.com/clawster/clawster/pkg/memory"
	"github.com/clawster/clawster/pkg/provenance"
	"github.com/clawster/clawster/pkg/registry"
	"github.com/clawster/clawster/pkg/schema"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, peerID string, msg *types.GossipMessage) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *registry.Registry, *election.Election, *store.MemStore) {
	t.Helper()

	st := store.NewMemStore()
	reg := registry.New(st)
	e := election.New("node-a", st)
	mgr := failover.NewManager(st, reg)

	validator, err := schema.NewValidator()
	require.NoError(t, err)

	p := gossip.New("node-a", memory.NewFilter(), provenance.NewTracker("node-a"), validator, noopTransport{})

	srv := NewServer(p, reg, e, mgr, func() any {
		return map[string]string{"node_id": "node-a"}
	})
	return srv, reg, e, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleGossip_Accepts(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	msg := types.GossipMessage{
		NodeID:      "node-b",
		OutputType:  "gossip",
		Type:        types.MessageState,
		Payload:     types.GossipPayload{KnownPeers: []string{"node-c"}},
		VectorClock: map[string]uint64{"node-b": 1},
		Timestamp:   time.Now().UTC(),
		Version:     gossip.ProtocolVersion,
	}

	rec := doJSON(t, srv, http.MethodPost, "/v1/gossip", msg)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GossipResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, gossip.OutcomeAccepted, resp.Reason)
}

func TestHandleGossip_RejectionIsStillOK(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	msg := types.GossipMessage{
		NodeID:      "x", // fails schema validation
		OutputType:  "gossip",
		Type:        types.MessageState,
		VectorClock: map[string]uint64{},
		Timestamp:   time.Now().UTC(),
		Version:     gossip.ProtocolVersion,
	}

	rec := doJSON(t, srv, http.MethodPost, "/v1/gossip", msg)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GossipResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, gossip.OutcomeInvalid, resp.Reason)
}

func TestHandleGossip_MalformedBody(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/gossip", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "node-a", status["node_id"])
}

func TestHandleNodes(t *testing.T) {
	srv, reg, _, _ := newTestServer(t)

	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-b"}))

	rec := doJSON(t, srv, http.MethodGet, "/v1/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var nodes []*types.Node
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&nodes))
	assert.Len(t, nodes, 2)
}

func TestHandleNode_NotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/v1/nodes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLeader(t *testing.T) {
	srv, _, e, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/v1/leader", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LeaderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.HasLease)

	acquired, err := e.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	rec = doJSON(t, srv, http.MethodGet, "/v1/leader", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "node-a", resp.Leader)
	assert.True(t, resp.IsSelf)
	assert.True(t, resp.HasLease)
}

func TestHandleAttestAndVerify(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/capabilities/attest", AttestRequest{
		Capability: "code_review",
		Stake:      90,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var att types.Attestation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&att))
	require.Len(t, att.Chain, 1)
	assert.InDelta(t, 0.9, att.Chain[0].Confidence, 1e-9)

	rec = doJSON(t, srv, http.MethodPost, "/v1/capabilities/verify", VerifyRequest{
		Capability:    "code_review",
		MinConfidence: 0.8,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict VerifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verdict))
	assert.True(t, verdict.Valid)
}

func TestHandleAttest_RequiresCapability(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/capabilities/attest", AttestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvents(t *testing.T) {
	srv, reg, _, st := newTestServer(t)
	ctx := context.Background()

	mgr := failover.NewManager(st, reg)
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-b", "missed heartbeats"))

	rec := doJSON(t, srv, http.MethodGet, "/v1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []types.ClusterEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "node_failed", events[0].Event)

	rec = doJSON(t, srv, http.MethodGet, "/v1/events?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
