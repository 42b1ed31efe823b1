package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// OriginChecker reports whether any tenant lists the origin for its intake forms.
type OriginChecker interface {
	AllowsOrigin(ctx context.Context, origin string) (bool, error)
}

// CORS admits the dashboard origins from configuration plus every origin a
// tenant has registered for its embedded forms. The per-tenant check on the
// intake handler still applies.
func CORS(static []string, tenants OriginChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(static))
	for _, o := range static {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			o := strings.TrimRight(strings.ToLower(origin), "/")
			if _, ok := allowed[o]; ok {
				return true
			}
			if tenants == nil {
				return false
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			ok, err := tenants.AllowsOrigin(ctx, o)
			if err != nil {
				logger.Warn("origin lookup failed", zap.String("origin", origin), zap.Error(err))
				return false
			}
			return ok
		},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", APIKeyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
