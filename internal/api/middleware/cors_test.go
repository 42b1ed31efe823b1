package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type originSet map[string]bool

func (o originSet) AllowsOrigin(_ context.Context, origin string) (bool, error) {
	return o[origin], nil
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dashboard.example.org/"}, originSet{"https://agency.example.org": true}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	cases := map[string]bool{
		"https://dashboard.example.org": true,
		"https://agency.example.org":    true,
		"https://evil.example.com":      false,
	}
	for origin, allowed := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/v1/intake/leads", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if allowed {
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		} else {
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	}
}
