package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
)

// TenantLookup is the slice of TenantService the handlers need to load the
// caller's tenant.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
}

type AuthHandler struct {
	auth    *service.AuthService
	tenants TenantLookup
}

func NewAuthHandler(auth *service.AuthService, tenants TenantLookup) *AuthHandler {
	return &AuthHandler{auth: auth, tenants: tenants}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *domain.User `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err, "failed to refresh session")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

type meResponse struct {
	User   *domain.User    `json:"user,omitempty"`
	APIKey *domain.APIKey  `json:"api_key,omitempty"`
	Tenant *tenantResponse `json:"tenant,omitempty"`
}

// Me describes the caller and, for tenant-bound callers, their tenant.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := meResponse{User: p.User, APIKey: p.APIKey}
	if p.TenantID != nil {
		t, err := h.tenants.GetByID(r.Context(), *p.TenantID)
		if err != nil {
			writeServiceError(w, err, "failed to load tenant")
			return
		}
		resp.Tenant = newTenantResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}
