package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-service/internal/auth"
	"security-service/internal/config"
	"security-service/internal/csrf"
	"security-service/internal/directory"
	"security-service/internal/observability"
)

func newTestRoutes(t *testing.T, cfg config.Config) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	csrfTokens, err := csrf.NewService("csrf-secret", time.Minute)
	require.NoError(t, err)

	tokens := auth.NewRepository(database)
	users := directory.NewRepository(database)
	service := auth.NewService(auth.Dependencies{
		AuthTokens: tokens,
		APITokens:  tokens,
		Users:      users,
		Providers:  users,
		Claims:     users,
		Passwords:  directory.BcryptComparator{},
	})

	return routes(cfg, database, observability.NewNopLogger(), service, tokens, csrfTokens), mock
}

func TestRoutes(t *testing.T) {
	cfg := config.Config{
		APIPrefix:            "/api/v1",
		SwaggerPath:          "/docs",
		CORSOrigins:          []string{"https://app.example.com"},
		LoginRateLimitMax:    10,
		LoginRateLimitWindow: time.Minute,
	}
	handler, mock := newTestRoutes(t, cfg)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
	}{
		{name: "unknown provider", method: http.MethodGet, path: "/api/v1/security/auth/ldap", status: http.StatusBadRequest},
		{name: "csrf token needs api token", method: http.MethodGet, path: "/api/v1/security/csrf/token", status: http.StatusUnauthorized},
		{name: "admin disabled without secret", method: http.MethodGet, path: "/api/v1/security/admin/auth-tokens", status: http.StatusNotFound},
		{name: "maintenance disabled without secret", method: http.MethodPost, path: "/internal/maintenance/cleanup", status: http.StatusNotFound},
		{
			name:    "foreign origin",
			method:  http.MethodGet,
			path:    "/api/v1/security/auth/local",
			headers: map[string]string{"Origin": "https://evil.example.com"},
			status:  http.StatusForbidden,
		},
		{
			name:    "blocked client",
			method:  http.MethodGet,
			path:    "/api/v1/security/auth/local",
			headers: map[string]string{"User-Agent": "curl/8.0"},
			status:  http.StatusForbidden,
		},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(observability.TraceHeader))
		})
	}

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutesStrictModeRequiresXHR(t *testing.T) {
	cfg := config.Config{
		Environment:          config.ProductionEnvironment,
		APIPrefix:            "/api/v1",
		LoginRateLimitMax:    10,
		LoginRateLimitWindow: time.Minute,
	}
	handler, _ := newTestRoutes(t, cfg)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/auth/ldap", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/security/auth/ldap", nil)
	req.Header.Set(csrf.RequestedWithHeader, "XMLHttpRequest")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesStrictModeGuardsRevoke(t *testing.T) {
	cfg := config.Config{
		Environment:          config.ProductionEnvironment,
		APIPrefix:            "/api/v1",
		LoginRateLimitMax:    10,
		LoginRateLimitWindow: time.Minute,
		CSRF:                 config.CSRF{ExemptPaths: config.DefaultExemptPaths("/api/v1")},
	}
	handler, _ := newTestRoutes(t, cfg)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/security/auth/token", nil)
	req.Header.Set(csrf.RequestedWithHeader, "XMLHttpRequest")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSRF")

	// The exchange step has no API token yet and stays exempt.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/security/auth/token/not-a-token", nil)
	req.Header.Set(csrf.RequestedWithHeader, "XMLHttpRequest")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusForbidden, rec.Code)
}
