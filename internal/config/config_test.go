package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/security")
	t.Setenv("SECURITY_CSRF_SECRET", "csrf-secret")
	t.Setenv("SECURITY_CSRF_TOKEN_EXPIRATION", "60000")
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv("SECURITY_CSRF_EXEMPT_PATHS", "/api/v1/public, ,/api/v1/hooks")
	t.Setenv("SECURITY_CORS_ORIGINS", "https://app.example.com")
	t.Setenv("APP_ENV", "PRO")
	t.Setenv("LOGIN_RATE_LIMIT_MAX", "not-a-number")

	cfg, err := Load(false)
	require.NoError(t, err)

	assert.Equal(t, "csrf-secret", cfg.CSRF.Secret)
	assert.Equal(t, time.Minute, cfg.CSRF.Expiration)
	assert.Equal(t, []string{"/api/v1/public", "/api/v1/hooks"}, cfg.CSRF.ExemptPaths)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 10, cfg.LoginRateLimitMax)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestLoadRejectsMissingSecurityConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/security")
	t.Setenv("SECURITY_CSRF_SECRET", "  ")
	t.Setenv("SECURITY_CSRF_TOKEN_EXPIRATION", "-5")

	_, err := Load(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECURITY_CSRF_SECRET is required")
	assert.Contains(t, err.Error(), "SECURITY_CSRF_TOKEN_EXPIRATION must be a positive integer")
}

func TestEnvBoolOrDefault(t *testing.T) {
	t.Setenv("FLAG", "yes")
	assert.True(t, EnvBoolOrDefault("FLAG", false))
	t.Setenv("FLAG", "off")
	assert.False(t, EnvBoolOrDefault("FLAG", true))
	t.Setenv("FLAG", "maybe")
	assert.True(t, EnvBoolOrDefault("FLAG", true))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, name := range []string{"SECURITY_CSRF_EXEMPT_PATHS", "API_PREFIX", "APP_ENV", "REDIS_URL", "AUTH_TOKEN_RETENTION_DAYS"} {
		t.Setenv(name, "")
	}

	cfg, err := Load(false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/security/auth/local/",
		"/api/v1/security/auth/token/",
		"/api/v1/security/admin/",
	}, cfg.CSRF.ExemptPaths)
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 7*24*time.Hour, cfg.AuthTokenRetention)
}
