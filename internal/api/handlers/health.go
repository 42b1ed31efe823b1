package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/hearthline/leadflow/internal/buildconfig"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler pings each dependency. Only the database is critical; the
// others degrade the status without failing it.
type HealthHandler struct {
	database HealthCheck
	optional map[string]HealthCheck
}

func NewHealthHandler(database HealthCheck, optional map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{database: database, optional: optional}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
	Version map[string]string `json:"version"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: buildconfig.VersionInfo()}

	if err := h.database(ctx); err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	names := make([]string, 0, len(h.optional))
	for name := range h.optional {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		if err := h.optional[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
