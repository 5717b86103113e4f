package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// DetailFunc reports informational component state. It never affects readiness.
type DetailFunc func() map[string]string

// HealthChecker provides health check endpoints
type HealthChecker struct {
	checks  map[string]Pinger
	details map[string]DetailFunc
	timeout time.Duration
	logger  *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`

	Details map[string]map[string]string `json:"details,omitempty"`
}

// NewHealthChecker creates a health checker over the named dependencies
func NewHealthChecker(checks map[string]Pinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		checks:  checks,
		details: make(map[string]DetailFunc),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// AddDetails adds a detail section to readiness responses.
// Must be called before the handlers are served.
func (h *HealthChecker) AddDetails(name string, fn DetailFunc) {
	h.details[name] = fn
}

// PoolDetails reports the queue utilization and active workers of each pool
func PoolDetails(stats func() []workerpool.Stats) DetailFunc {
	return func() map[string]string {
		all := stats()
		out := make(map[string]string, len(all))
		for _, s := range all {
			out[s.Name] = fmt.Sprintf("queue=%.1f%% active=%d/%d rejected=%d",
				s.QueueUtilization(), s.ActiveWorkers, s.MaxWorkers, s.RejectedTasks)
		}
		return out
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

// ReadinessHandler pings every dependency and reports 503 if any fails
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Error("Health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	if len(h.details) > 0 {
		status.Details = make(map[string]map[string]string, len(h.details))
		for name, fn := range h.details {
			status.Details[name] = fn()
		}
	}
	code := http.StatusOK
	if !allHealthy {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	h.write(w, code, status)
}

// Register adds the probe routes to mux
func (h *HealthChecker) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", h.LivenessHandler)
	mux.HandleFunc("/health/ready", h.ReadinessHandler)
}

func (h *HealthChecker) write(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
