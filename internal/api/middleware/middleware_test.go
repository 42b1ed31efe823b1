package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTokens map[string]*domain.User

func (f fakeTokens) Verify(_ context.Context, token string) (*domain.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

type fakeKeys map[string]*domain.APIKey

func (f fakeKeys) Authenticate(_ context.Context, raw string) (*domain.APIKey, error) {
	if k, ok := f[raw]; ok {
		return k, nil
	}
	return nil, errors.New("bad key")
}

func capturePrincipal(got **Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	tenantID := uuid.New()
	user := &domain.User{ID: uuid.New(), TenantID: &tenantID, Role: domain.RoleAgencyUser, Active: true}
	key := &domain.APIKey{ID: uuid.New(), TenantID: tenantID, Active: true}

	tokens := fakeTokens{"good": user}
	keys := fakeKeys{"lf_good": key}

	tests := []struct {
		name     string
		headers  map[string]string
		status   int
		wantUser bool
		wantKey  bool
	}{
		{"no credentials", nil, http.StatusUnauthorized, false, false},
		{"bearer", map[string]string{"Authorization": "Bearer good"}, http.StatusNoContent, true, false},
		{"bad bearer", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, false, false},
		{"malformed header", map[string]string{"Authorization": "good"}, http.StatusUnauthorized, false, false},
		{"api key", map[string]string{APIKeyHeader: "lf_good"}, http.StatusNoContent, false, true},
		{"bad api key", map[string]string{APIKeyHeader: "lf_bad"}, http.StatusUnauthorized, false, false},
		{"bearer wins", map[string]string{"Authorization": "Bearer good", APIKeyHeader: "lf_good"}, http.StatusNoContent, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *Principal
			h := Authenticate(tokens, keys)(capturePrincipal(&got))

			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusNoContent {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantUser, got.User != nil)
			assert.Equal(t, tt.wantKey, got.APIKey != nil)
			assert.Equal(t, tenantID, *got.TenantID)
		})
	}
}

func TestPrincipalScope(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	agency := &Principal{TenantID: &own, User: &domain.User{Role: domain.RoleAgencyAdmin, TenantID: &own}}
	id, err := agency.Scope(other.String())
	require.NoError(t, err)
	assert.Equal(t, own, id, "agency callers are pinned to their tenant")

	super := &Principal{User: &domain.User{Role: domain.RoleSuperAdmin}}
	id, err = super.Scope(other.String())
	require.NoError(t, err)
	assert.Equal(t, other, id)

	_, err = super.Scope("")
	assert.ErrorIs(t, err, ErrTenantScopeRequired)

	_, err = super.Scope("abc")
	assert.ErrorIs(t, err, ErrInvalidTenantID)

	key := &Principal{TenantID: &own, APIKey: &domain.APIKey{TenantID: own}}
	assert.Nil(t, key.ActorID())
	id, err = key.Scope("")
	require.NoError(t, err)
	assert.Equal(t, own, id)
}

func TestRequireRole(t *testing.T) {
	tid := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(domain.RoleAgencyAdmin)(ok)

	cases := []struct {
		name   string
		p      *Principal
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"api key", &Principal{TenantID: &tid, APIKey: &domain.APIKey{}}, http.StatusForbidden},
		{"agency user", &Principal{TenantID: &tid, User: &domain.User{Role: domain.RoleAgencyUser}}, http.StatusForbidden},
		{"agency admin", &Principal{TenantID: &tid, User: &domain.User{Role: domain.RoleAgencyAdmin}}, http.StatusOK},
		{"super admin", &Principal{User: &domain.User{Role: domain.RoleSuperAdmin}}, http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if c.p != nil {
				req = req.WithContext(WithPrincipal(req.Context(), c.p))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, c.status, rec.Code)
		})
	}
}

func TestCronSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	CronSecret("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CronSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	CronSecret("s3cret")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(CronSecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	CronSecret("s3cret")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "has space")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestLoggingCarriesTenant(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tenantID := uuid.New()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &Principal{TenantID: &tenantID, APIKey: &domain.APIKey{TenantID: tenantID}}
		_ = WithPrincipal(r.Context(), p)
		w.WriteHeader(http.StatusCreated)
	})
	h := RequestID(Logging(zap.New(core))(inner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/intake/leads", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per key")

	now := time.Now()
	rl.now = func() time.Time { return now.Add(time.Hour) }
	rl.Allow("c")
	rl.Cleanup(10 * time.Minute)
	assert.Equal(t, 1, rl.size())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
