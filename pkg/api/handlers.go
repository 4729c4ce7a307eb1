package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/clawster/clawster/pkg/provenance"
	"github.com/clawster/clawster/pkg/types"
)

// GossipResponse reports the ingestion outcome for one message.
type GossipResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

func (s *Server) handleGossip(w http.ResponseWriter, r *http.Request) {
	var msg types.GossipMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}

	accepted, reason := s.protocol.ReceiveGossip(&msg)

	// Logical rejections are 200s: the peer did nothing wrong at the
	// transport level, its state was simply not needed.
	writeJSON(w, http.StatusOK, GossipResponse{Accepted: accepted, Reason: reason})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if node == nil {
		writeError(w, http.StatusNotFound, "node "+id+" is not registered")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// LeaderResponse reports the current lease holder.
type LeaderResponse struct {
	Leader   string `json:"leader,omitempty"`
	IsSelf   bool   `json:"is_self"`
	HasLease bool   `json:"has_lease"`
}

func (s *Server) handleLeader(w http.ResponseWriter, r *http.Request) {
	holder, err := s.election.CurrentHolder(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LeaderResponse{
		Leader:   holder,
		IsSelf:   s.election.IsLeader(),
		HasLease: holder != "",
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.failover.Events(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// AttestRequest asks this node to vouch for one of its own capabilities.
type AttestRequest struct {
	Capability string  `json:"capability"`
	Stake      float64 `json:"stake"`
}

func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	var req AttestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if req.Capability == "" {
		writeError(w, http.StatusBadRequest, "capability is required")
		return
	}

	attestation := s.protocol.AttestCapability(req.Capability, req.Stake)
	writeJSON(w, http.StatusOK, attestation)
}

// VerifyRequest carries a peer-supplied chain for verification.
type VerifyRequest struct {
	Capability    string                   `json:"capability"`
	Chain         []*types.ProvenanceEntry `json:"chain"`
	MinConfidence float64                  `json:"min_confidence"`
}

// VerifyResponse reports the weakest-link verdict.
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if req.Capability == "" {
		writeError(w, http.StatusBadRequest, "capability is required")
		return
	}
	if req.MinConfidence == 0 {
		req.MinConfidence = provenance.DefaultMinConfidence
	}

	valid, reason := s.protocol.VerifyPeerCapability(req.Capability, req.Chain, req.MinConfidence)
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: valid, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
