package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
	"github.com/hellblazer/steward/pkg/resilience"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

// PoolStatus is the pool surface the status endpoint reports on
type PoolStatus interface {
	IsRunning() bool
}

// ServiceStatus is the vector-store surface the status endpoint
// reports on
type ServiceStatus interface {
	Enabled() bool
	Running() bool
	HeartbeatURL() string
}

// Server is the local status endpoint. It binds a loopback address
// and serves health, readiness, status, and Prometheus metrics; it
// never mutates state.
type Server struct {
	listen   string
	store    storage.Store
	pool     PoolStatus
	service  ServiceStatus
	breakers *resilience.Registry
	logger   zerolog.Logger

	mux  *http.ServeMux
	srv  *http.Server
	addr string
}

// NewServer creates the status server. Nil dependencies are tolerated;
// their sections report empty.
func NewServer(listen string, store storage.Store, pool PoolStatus, service ServiceStatus, breakers *resilience.Registry) *Server {
	s := &Server{
		listen:   listen,
		store:    store,
		pool:     pool,
		service:  service,
		breakers: breakers,
		logger:   log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	mux.HandleFunc("/status", s.statusHandler)
	mux.Handle("/metrics", metrics.Handler())
	s.mux = mux

	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to bind api listener %s: %w", s.listen, err)
	}
	s.addr = lis.Addr().String()

	s.srv = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("api server failed")
		}
	}()

	s.logger.Info().Str("listen", s.addr).Msg("api listening")
	return nil
}

// Stop drains in-flight requests and closes the listener
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address, empty before Start
func (s *Server) Addr() string {
	return s.addr
}

// GetHandler returns the HTTP handler for embedding in other servers
func (s *Server) GetHandler() http.Handler {
	return s.mux
}

// StatusResponse is the /status document
type StatusResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Pid       int               `json:"pid"`
	Health    string            `json:"health"`
	Pool      PoolSummary       `json:"pool"`
	Service   ServiceSummary    `json:"service"`
	Breakers  map[string]string `json:"breakers"`
	Workers   []WorkerSummary   `json:"workers"`
}

// PoolSummary reports live pool state
type PoolSummary struct {
	Maintaining bool `json:"maintaining"`
	Warm        int  `json:"warm"`
	Busy        int  `json:"busy"`
}

// ServiceSummary reports vector-store supervision state
type ServiceSummary struct {
	Supervised bool   `json:"supervised"`
	Running    bool   `json:"running"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// WorkerSummary is one registry row
type WorkerSummary struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Age       string    `json:"age"`
	Tenant    string    `json:"tenant,omitempty"`
	Project   string    `json:"project,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// statusHandler implements the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{
		Timestamp: time.Now(),
		Pid:       os.Getpid(),
		Health:    metrics.GetHealth().Status,
		Breakers:  make(map[string]string),
	}

	if s.breakers != nil {
		for service, state := range s.breakers.States() {
			response.Breakers[service] = string(state)
		}
	}
	if s.pool != nil {
		response.Pool.Maintaining = s.pool.IsRunning()
	}
	if s.service != nil {
		response.Service = ServiceSummary{
			Supervised: s.service.Enabled(),
			Running:    s.service.Running(),
			Endpoint:   s.service.HeartbeatURL(),
		}
	}

	if s.store != nil {
		records, err := s.store.ListWorkers()
		if err != nil {
			http.Error(w, fmt.Sprintf("registry unavailable: %v", err), http.StatusInternalServerError)
			return
		}
		now := time.Now()
		for _, record := range records {
			switch record.Status {
			case types.WorkerStatusWarm:
				response.Pool.Warm++
			case types.WorkerStatusBusy:
				response.Pool.Busy++
			}
			response.Workers = append(response.Workers, WorkerSummary{
				Name:      record.Name,
				Status:    string(record.Status),
				Age:       record.Age(now).Round(time.Second).String(),
				Tenant:    record.TenantHash,
				Project:   record.ProjectPath,
				CreatedAt: record.CreatedAt,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
