package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/service"
)

// maxBodyBytes caps JSON bodies on every route, webhooks included.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service sentinels onto status codes. Anything
// unrecognized is a 500 with the generic message; the cause is never echoed.
func writeServiceError(w http.ResponseWriter, err error, generic string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, generic)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrContactRequired),
		errors.Is(err, service.ErrInvalidStage),
		errors.Is(err, service.ErrInvalidAssignee),
		errors.Is(err, service.ErrInvalidActivityType),
		errors.Is(err, service.ErrActivityContentEmpty),
		errors.Is(err, service.ErrTenantNameEmpty),
		errors.Is(err, service.ErrInvalidSlug),
		errors.Is(err, service.ErrInvalidTenantConfig),
		errors.Is(err, service.ErrAPIKeyLabelEmpty),
		errors.Is(err, service.ErrUserEmailEmpty),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrTenantRequired),
		errors.Is(err, service.ErrSuperAdminTenant),
		errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, middleware.ErrTenantScopeRequired),
		errors.Is(err, middleware.ErrInvalidTenantID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLeadNotFound),
		errors.Is(err, service.ErrTenantNotFound),
		errors.Is(err, service.ErrAPIKeyNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTenantSlugTaken),
		errors.Is(err, service.ErrUserEmailTaken),
		errors.Is(err, service.ErrLeadContactConflict),
		errors.Is(err, service.ErrIntakeConflict),
		errors.Is(err, service.ErrAPIKeyNotRevealable):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func urlID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// scope resolves the tenant for a request; override comes from the
// tenant_id query parameter unless the caller passes a body value.
func scope(w http.ResponseWriter, r *http.Request, override string) (*middleware.Principal, uuid.UUID, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, uuid.Nil, false
	}
	if override == "" {
		override = r.URL.Query().Get("tenant_id")
	}
	tenantID, err := p.Scope(override)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, uuid.Nil, false
	}
	return p, tenantID, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
