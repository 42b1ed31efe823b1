package handlers

import (
	"net/http"
	"time"

	"github.com/hearthline/leadflow/internal/service"
)

type ReportHandler struct {
	leads   *service.LeadService
	sla     *service.SLAService
	tenants TenantLookup
}

func NewReportHandler(leads *service.LeadService, sla *service.SLAService, tenants TenantLookup) *ReportHandler {
	return &ReportHandler{leads: leads, sla: sla, tenants: tenants}
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}

	sum, err := h.leads.Summary(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// SLA runs the overdue scan for the caller's tenant only.
func (h *ReportHandler) SLA(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, "failed to load tenant")
		return
	}

	report, err := h.sla.ScanTenant(r.Context(), tenant, time.Now())
	if err != nil {
		writeServiceError(w, err, "failed to scan leads")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
