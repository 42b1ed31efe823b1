package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.NewUser{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	}
	if req.TenantID != "" {
		id, err := uuid.Parse(req.TenantID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tenant_id")
			return
		}
		in.TenantID = &id
	}

	u, err := h.svc.Create(r.Context(), p.User, in)
	if err != nil {
		writeServiceError(w, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// List shows a super admin everyone unless tenant_id narrows it.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var scope *uuid.UUID
	if v := r.URL.Query().Get("tenant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tenant_id")
			return
		}
		scope = &id
	}

	users, err := h.svc.List(r.Context(), p.User, scope)
	if err != nil {
		writeServiceError(w, err, "failed to list users")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := urlID(w, r, "id", "user")
	if !ok {
		return
	}
	var req setActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.svc.SetActive(r.Context(), p.User, id, *req.Active); err != nil {
		writeServiceError(w, err, "failed to update user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
