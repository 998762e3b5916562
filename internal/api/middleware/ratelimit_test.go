package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/auth"
)

func TestRateLimitByIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	handler := middleware.RateLimitByIP(cfg)(status(http.StatusOK))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/delivery", http.NoBody)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)

	limited := do("10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", limited.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234").Code)
}

func TestRateLimitBySubject(t *testing.T) {
	tokens, err := auth.NewJWTService(auth.JWTConfig{SigningKey: "test-secret"})
	require.NoError(t, err)

	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RequireRole(tokens, auth.RoleAdmin)(
		middleware.RateLimitBySubject(cfg)(status(http.StatusOK)),
	)

	do := func(subject string) int {
		token, _, err := tokens.GenerateAccessToken(subject, auth.RoleAdmin)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/admin/cache/invalidate", http.NoBody)
		req.RemoteAddr = "10.0.0.9:1234"
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusTooManyRequests, do("alice"))
	assert.Equal(t, http.StatusOK, do("bob"))
}
