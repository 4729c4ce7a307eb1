package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/clawster/clawster/pkg/election"
	"github.com/clawster/clawster/pkg/failover"
	"github.com/clawster/clawster/pkg/gossip"
	"github.com/clawster/clawster/pkg/log"
	"github.com/clawster/clawster/pkg/metrics"
	"github.com/clawster/clawster/pkg/registry"
)

// StatusFunc supplies the node-level status snapshot served at /v1/status.
type StatusFunc func() any

// Server is the node's HTTP surface: gossip ingestion, cluster
// introspection, capability attestation, and operational endpoints.
type Server struct {
	protocol *gossip.Protocol
	registry *registry.Registry
	election *election.Election
	failover *failover.Manager
	status   StatusFunc
	router   *mux.Router
	http     *http.Server
}

// NewServer wires the HTTP surface over the coordination components.
func NewServer(p *gossip.Protocol, reg *registry.Registry, e *election.Election, f *failover.Manager, status StatusFunc) *Server {
	s := &Server{
		protocol: p,
		registry: reg,
		election: e,
		failover: f,
		status:   status,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(metricsMiddleware)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/gossip", s.handleGossip).Methods(http.MethodPost)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{id}", s.handleNode).Methods(http.MethodGet)
	v1.HandleFunc("/leader", s.handleLeader).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/capabilities/attest", s.handleAttest).Methods(http.MethodPost)
	v1.HandleFunc("/capabilities/verify", s.handleVerify).Methods(http.MethodPost)

	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", metrics.HealthHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", metrics.ReadyHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/livez", metrics.LivenessHandler()).Methods(http.MethodGet)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on addr. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("API listening")

	metrics.UpdateComponent("api", true, "")
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		metrics.UpdateComponent("api", false, err.Error())
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
