package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

// Status is the aggregated process health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// StateSource exposes the supervisor state.
type StateSource interface {
	Snapshot() domain.ScheduleState
}

// ProviderSource exposes RPC endpoint health.
type ProviderSource interface {
	Providers() map[string]provider.HealthStatus
}

// Report is the /health/detailed payload.
type Report struct {
	Status    Status                           `json:"status"`
	Schedule  domain.ScheduleState             `json:"schedule"`
	Providers map[string]provider.HealthStatus `json:"providers,omitempty"`
	CheckedAt time.Time                        `json:"checked_at"`
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	state     StateSource
	providers ProviderSource
	server    *http.Server
}

// NewServer creates a new health server. providers may be nil.
func NewServer(state StateSource, providers ProviderSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		state:     state,
		providers: providers,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Check builds the current report.
func (s *Server) Check() Report {
	report := Report{
		Status:    StatusHealthy,
		Schedule:  s.state.Snapshot(),
		CheckedAt: time.Now(),
	}
	if s.providers != nil {
		report.Providers = s.providers.Providers()
	}

	// Aggregate status (worst case wins)
	if report.Schedule.State == domain.SupervisorStopped {
		report.Status = StatusCritical
		return report
	}
	if report.Schedule.LastError != "" {
		report.Status = StatusDegraded
	}
	if len(report.Providers) > 0 {
		available := 0
		for _, h := range report.Providers {
			if h.Available {
				available++
			}
		}
		switch {
		case available == 0:
			report.Status = StatusCritical
		case available < len(report.Providers):
			report.Status = StatusDegraded
		}
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Check()

	response := map[string]any{
		"status": report.Status,
		"state":  report.Schedule.State,
	}
	if !report.Schedule.NextRunAt.IsZero() {
		response["next_run_at"] = report.Schedule.NextRunAt
	}
	w.Header().Set("Content-Type", "application/json")

	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Check())
}
