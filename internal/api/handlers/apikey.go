package handlers

import (
	"net/http"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
)

type APIKeyHandler struct {
	svc *service.APIKeyService
}

func NewAPIKeyHandler(svc *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{svc: svc}
}

type createAPIKeyRequest struct {
	TenantID string `json:"tenant_id"`
	Label    string `json:"label"`
}

type createAPIKeyResponse struct {
	*domain.APIKey
	Key string `json:"key"`
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, tenantID, ok := scope(w, r, req.TenantID)
	if !ok {
		return
	}

	key, raw, err := h.svc.Create(r.Context(), tenantID, req.Label, p.ActorID())
	if err != nil {
		writeServiceError(w, err, "failed to create api key")
		return
	}
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{APIKey: key, Key: raw})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}

	keys, err := h.svc.List(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, "failed to list api keys")
		return
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "api key")
	if !ok {
		return
	}

	if err := h.svc.Revoke(r.Context(), tenantID, id); err != nil {
		writeServiceError(w, err, "failed to revoke api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIKeyHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	p, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "api key")
	if !ok {
		return
	}

	raw, err := h.svc.Reveal(r.Context(), tenantID, id, p.User.ID)
	if err != nil {
		writeServiceError(w, err, "failed to reveal api key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": raw})
}
