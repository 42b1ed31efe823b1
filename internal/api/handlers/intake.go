package handlers

import (
	"net/http"

	"github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/service"
)

// IntakeHandler serves the embeddable website form. Callers authenticate with
// a tenant API key; browser posts must also come from an allowed origin.
type IntakeHandler struct {
	intake  *service.IntakeService
	tenants TenantLookup
}

func NewIntakeHandler(intake *service.IntakeService, tenants TenantLookup) *IntakeHandler {
	return &IntakeHandler{intake: intake, tenants: tenants}
}

type intakeResponse struct {
	LeadID  string `json:"lead_id"`
	Created bool   `json:"created"`
}

func (h *IntakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil || p.APIKey == nil {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	tenant, err := h.tenants.GetByID(r.Context(), p.APIKey.TenantID)
	if err != nil {
		writeServiceError(w, err, "failed to load tenant")
		return
	}
	if !tenant.OriginAllowed(r.Header.Get("Origin")) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}

	sub, err := service.ParseWebForm(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeServiceError(w, err, "invalid request body")
		return
	}

	res, err := h.intake.Ingest(r.Context(), tenant, sub, service.IngestOptions{})
	if err != nil {
		writeServiceError(w, err, "failed to record lead")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, intakeResponse{LeadID: res.Lead.ID.String(), Created: res.Created})
}
