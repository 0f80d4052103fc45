package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"security-service/internal/app"
	"security-service/internal/observability"
)

var (
	mu         sync.Mutex
	apiRuntime *app.Runtime
	build      = func() (*app.Runtime, error) { return app.Build(app.Options{LoadDotEnv: false}) }

	bootstrapLogger = observability.NewLogger(observability.LogConfigFromEnv())
	bootstrapFailed = observability.RequestContextMiddleware(http.HandlerFunc(writeBootstrapFailure))
)

// Handler is the serverless entry point. A failed bootstrap is retried on the
// next request instead of pinning the instance to an error.
func Handler(w http.ResponseWriter, r *http.Request) {
	rt, err := runtime()
	if err != nil {
		bootstrapLogger.Error("bootstrap_failed", map[string]any{"error": err.Error()})
		observability.CaptureError(r.Context(), err)
		bootstrapFailed.ServeHTTP(w, r)
		return
	}

	rt.Handler.ServeHTTP(w, r)
}

func runtime() (*app.Runtime, error) {
	mu.Lock()
	defer mu.Unlock()

	if apiRuntime != nil {
		return apiRuntime, nil
	}
	rt, err := build()
	if err != nil {
		return nil, err
	}
	apiRuntime = rt
	return rt, nil
}

func writeBootstrapFailure(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "application bootstrap failed"})
}
