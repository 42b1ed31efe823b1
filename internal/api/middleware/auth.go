package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"

	// APIKeyHeader carries a tenant ingestion key.
	APIKeyHeader = "X-API-Key"
	// CronSecretHeader guards the scheduler endpoints.
	CronSecretHeader = "X-Cron-Secret"
)

var (
	ErrTenantScopeRequired = errors.New("tenant_id is required")
	ErrInvalidTenantID     = errors.New("invalid tenant_id")
)

// TokenVerifier resolves a session access token to an active operator.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*domain.User, error)
}

// KeyAuthenticator resolves a raw ingestion key to an active API key.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.APIKey, error)
}

// Principal is the authenticated caller. Exactly one of User or APIKey is set.
// TenantID is nil only for a super_admin operator.
type Principal struct {
	TenantID *uuid.UUID
	User     *domain.User
	APIKey   *domain.APIKey
}

func (p *Principal) IsSuperAdmin() bool {
	return p.User != nil && p.User.Role == domain.RoleSuperAdmin
}

// ActorID is the operator behind the request, nil for API keys.
func (p *Principal) ActorID() *uuid.UUID {
	if p.User == nil {
		return nil
	}
	id := p.User.ID
	return &id
}

// Scope picks the tenant a request operates on. A super_admin must name one
// through override; everyone else is pinned to their own tenant and the
// override is ignored.
func (p *Principal) Scope(override string) (uuid.UUID, error) {
	if !p.IsSuperAdmin() {
		if p.TenantID == nil {
			return uuid.Nil, ErrTenantScopeRequired
		}
		return *p.TenantID, nil
	}
	override = strings.TrimSpace(override)
	if override == "" {
		return uuid.Nil, ErrTenantScopeRequired
	}
	id, err := uuid.Parse(override)
	if err != nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// WithPrincipal is used by tests and by the auth middleware.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	if p != nil && p.TenantID != nil {
		noteTenant(ctx, p.TenantID.String())
	}
	return context.WithValue(ctx, principalContextKey, p)
}

// Authenticate accepts a Bearer session token first, then an X-API-Key header.
// Requests carrying neither, or an invalid one, stop here with 401.
func Authenticate(tokens TokenVerifier, keys KeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p *Principal

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					writeError(w, http.StatusUnauthorized, "invalid authorization header format")
					return
				}
				user, err := tokens.Verify(r.Context(), strings.TrimSpace(parts[1]))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				p = &Principal{TenantID: user.TenantID, User: user}
			} else if raw := r.Header.Get(APIKeyHeader); raw != "" {
				key, err := keys.Authenticate(r.Context(), raw)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				tid := key.TenantID
				p = &Principal{TenantID: &tid, APIKey: key}
			} else {
				writeError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole admits operators at or above min. API keys never pass.
func RequireRole(min domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if p.User == nil || !p.User.Role.AtLeast(min) {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey admits only ingestion keys.
func RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil || p.APIKey == nil {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CronSecret guards scheduler callbacks. An empty secret disables the routes.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			got := r.Header.Get(CronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
