package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: timeout}
}

// Healthz serves GET /healthz: 200 when every check passes, 503 otherwise.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	status := http.StatusOK
	result := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}
