package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 5 * time.Second

// CheckFunc reports whether one dependency is reachable
type CheckFunc func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes. Readiness pings
// every dependency concurrently and also echoes the runtime feature flags so
// an operator can see what a replica is running with.
type HealthHandler struct {
	checks map[string]CheckFunc
	flags  func() map[string]bool
	logger *slog.Logger
}

// NewHealthHandler maps a dependency name (postgres, redis, mongo) to its
// probe. flags may be nil.
func NewHealthHandler(checks map[string]CheckFunc, flags func() map[string]bool, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, flags: flags, logger: logger}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Flags  map[string]bool        `json:"flags,omitempty"`
}

// Health handles GET /healthz. It never touches a dependency.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz and answers 503 if any probe fails
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(h.checks))
		g       errgroup.Group
	)
	for name, check := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: results}
	if h.flags != nil {
		resp.Flags = h.flags()
	}
	code := http.StatusOK
	for name, res := range results {
		if res.Status != "ok" {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			h.logger.Warn("dependency not ready",
				slog.String("dependency", name),
				slog.String("error", res.Error),
			)
		}
	}

	writeJSON(w, code, resp)
}
