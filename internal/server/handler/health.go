package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and status.
type HealthHandler struct {
	agent     Agent
	deps      map[string]Pinger
	mode      string
	dryRun    bool
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps are optional named
// dependencies (redis, postgres) reported by /api/health.
func NewHealthHandler(agent Agent, deps map[string]Pinger, mode string, dryRun bool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		agent:     agent,
		deps:      deps,
		mode:      mode,
		dryRun:    dryRun,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthCheck reports liveness and the state of each dependency. A failing
// dependency turns the response into 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus reports the run mode and loop state.
// GET /api/status
func (h *HealthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"dry_run":        h.dryRun,
		"is_scanning":    h.agent.Running(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
