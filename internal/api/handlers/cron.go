package handlers

import (
	"net/http"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
)

// CronHandler lets an external scheduler trigger the background jobs on
// demand. Both jobs are idempotent.
type CronHandler struct {
	sla      *service.SLAService
	facebook *service.FacebookSyncService
}

func NewCronHandler(sla *service.SLAService, facebook *service.FacebookSyncService) *CronHandler {
	return &CronHandler{sla: sla, facebook: facebook}
}

type slaCheckResponse struct {
	CheckedAt time.Time                    `json:"checked_at"`
	Overdue   int                          `json:"overdue"`
	Tenants   []domain.TenantOverdueReport `json:"tenants"`
}

func (h *CronHandler) SLACheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	reports, err := h.sla.Scan(r.Context(), now)
	if err != nil {
		writeServiceError(w, err, "sla scan failed")
		return
	}

	resp := slaCheckResponse{CheckedAt: now, Tenants: reports}
	if resp.Tenants == nil {
		resp.Tenants = []domain.TenantOverdueReport{}
	}
	for _, rep := range reports {
		resp.Overdue += len(rep.Leads)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CronHandler) FacebookSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.facebook.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, err, "facebook sync failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
