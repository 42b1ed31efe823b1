package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
)

type TenantHandler struct {
	svc *service.TenantService
}

func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{svc: svc}
}

// tenantResponse never carries the raw page access token.
type tenantResponse struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Slug      string              `json:"slug"`
	Config    domain.TenantConfig `json:"config"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func newTenantResponse(t *domain.Tenant) *tenantResponse {
	return &tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Config:    t.Config.Redacted(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type createTenantRequest struct {
	Name   string              `json:"name"`
	Slug   string              `json:"slug"`
	Config domain.TenantConfig `json:"config"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.svc.Create(r.Context(), req.Name, req.Slug, req.Config)
	if err != nil {
		writeServiceError(w, err, "failed to create tenant")
		return
	}

	writeJSON(w, http.StatusCreated, newTenantResponse(t))
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list tenants")
		return
	}

	out := make([]*tenantResponse, 0, len(tenants))
	for i := range tenants {
		out = append(out, newTenantResponse(&tenants[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

// Get serves super admins any tenant and everyone else only their own.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "tenant")
	if !ok {
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !p.IsSuperAdmin() && (p.TenantID == nil || *p.TenantID != id) {
		writeServiceError(w, service.ErrTenantNotFound, "")
		return
	}

	t, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get tenant")
		return
	}
	writeJSON(w, http.StatusOK, newTenantResponse(t))
}

type updateTenantRequest struct {
	Name   *string              `json:"name"`
	Config *domain.TenantConfig `json:"config"`
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "tenant")
	if !ok {
		return
	}
	var req updateTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// A body without config renames only.
	var cfg domain.TenantConfig
	if req.Config != nil {
		cfg = *req.Config
	} else {
		cur, err := h.svc.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "failed to update tenant")
			return
		}
		cfg = cur.Config
	}

	t, err := h.svc.Update(r.Context(), id, req.Name, cfg)
	if err != nil {
		writeServiceError(w, err, "failed to update tenant")
		return
	}
	writeJSON(w, http.StatusOK, newTenantResponse(t))
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "tenant")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete tenant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
