package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"security-service/internal/app"
	"security-service/internal/observability"
)

func stubBuild(t *testing.T, fn func() (*app.Runtime, error)) {
	t.Helper()
	previous := build
	build = fn
	apiRuntime = nil
	t.Cleanup(func() {
		build = previous
		apiRuntime = nil
	})
}

func TestHandlerRetriesFailedBootstrap(t *testing.T) {
	calls := 0
	stubBuild(t, func() (*app.Runtime, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("ping database: connection refused")
		}
		return &app.Runtime{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})}, nil
	})

	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"application bootstrap failed"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(observability.TraceHeader))

	rec = httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, calls, "a built runtime is reused")
}
