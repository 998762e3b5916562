package auth_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/auth"
)

func newService(t *testing.T, key string, clock clockwork.Clock) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     "courierfee-test",
		Audience:   "courierfee-api",
		Clock:      clock,
	})
	require.NoError(t, err)
	return svc
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newService(t, "test-secret-key-for-testing-only", clock)

	token, expiresAt, err := svc.GenerateAccessToken("ops@courierfee", auth.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clock.Now().Add(auth.DefaultTokenExpiry), expiresAt)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@courierfee", claims.Subject)
	assert.Equal(t, "courierfee-test", claims.Issuer)
	assert.True(t, claims.HasRole(auth.RoleAdmin))
	assert.False(t, claims.HasRole("viewer"))
	assert.NotEmpty(t, claims.ID)
}

func TestNewJWTService_RequiresKey(t *testing.T) {
	_, err := auth.NewJWTService(auth.JWTConfig{})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService(t, "test-secret-key-for-testing-only", nil)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newService(t, "key-one", nil).GenerateAccessToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	_, err = newService(t, "key-two", nil).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongAudience(t *testing.T) {
	token, _, err := newService(t, "shared", nil).GenerateAccessToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	other, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "shared",
		Issuer:     "courierfee-test",
		Audience:   "someone-else",
	})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_Expired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newService(t, "test-secret", clock)

	token, _, err := svc.GenerateAccessToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	clock.Advance(auth.DefaultTokenExpiry + time.Minute)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("JWT_ISSUER", "issuer")
	t.Setenv("JWT_AUDIENCE", "")

	cfg := auth.JWTConfigFromEnv()
	assert.Equal(t, "secret", cfg.SigningKey)
	assert.Equal(t, "issuer", cfg.Issuer)
	assert.Empty(t, cfg.Audience)
}
