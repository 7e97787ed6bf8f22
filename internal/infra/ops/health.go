package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Pinger interface for health check dependencies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithCheck adds a named readiness dependency.
func WithCheck(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		h.checks[name] = p
	}
}

// WithCheckTimeout bounds the whole readiness check.
func WithCheckTimeout(d time.Duration) HealthHandlerOption {
	return func(h *HealthHandler) {
		h.timeout = d
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{
		checks:  make(map[string]Pinger),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the liveness response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents a single dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health always reports healthy while the process serves requests.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Ready pings every dependency concurrently and answers 503 if any fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]CheckResult, len(h.checks))
	allHealthy := true

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, p := range h.checks {
		wg.Go(func() {
			result := checkDependency(ctx, p)
			mu.Lock()
			checks[name] = result
			if result.Status != "ok" {
				allHealthy = false
			}
			mu.Unlock()
		})
	}
	wg.Wait()

	status, code := "ready", http.StatusOK
	if !allHealthy {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func checkDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{Status: "error", Duration: duration.String(), Error: err.Error()}
	}
	return CheckResult{Status: "ok", Duration: duration.String()}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
