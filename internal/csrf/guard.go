package csrf

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
)

const (
	TokenHeader         = "X-CSRF-Token"
	RequestedWithHeader = "X-Requested-With"
)

var blockedClients = []string{
	"postman",
	"insomnia",
	"curl",
	"wget",
	"python-requests",
	"apache-httpclient",
}

type GuardConfig struct {
	Strict      bool
	APIPrefix   string
	SwaggerPath string
	Origins     []string
	ExemptPaths []string
}

// OriginGuard screens requests under the API prefix: origin allow-list, client
// user agent, and, when strict, the X-Requested-With header and a CSRF token for
// state-changing methods.
type OriginGuard struct {
	cfg    GuardConfig
	tokens *Service
	userID func(*http.Request) string
}

func NewOriginGuard(cfg GuardConfig, tokens *Service, userID func(*http.Request) string) *OriginGuard {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &OriginGuard{cfg: cfg, tokens: tokens, userID: userID}
}

func (g *OriginGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if g.cfg.SwaggerPath != "" && strings.HasPrefix(path, g.cfg.SwaggerPath) {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(path, g.cfg.APIPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		if origin := r.Header.Get("Origin"); origin != "" && !slices.Contains(g.cfg.Origins, origin) {
			writeError(w, http.StatusForbidden, "invalid origin: "+origin)
			return
		}

		if g.cfg.Strict && r.Header.Get(RequestedWithHeader) != "XMLHttpRequest" {
			writeError(w, http.StatusForbidden, "invalid request type - missing or invalid X-Requested-With header")
			return
		}

		if !validUserAgent(r.UserAgent()) {
			writeError(w, http.StatusForbidden, "invalid client")
			return
		}

		if g.cfg.Strict && isStateChanging(r.Method) && !g.isExempt(path) && !g.validToken(r) {
			writeError(w, http.StatusForbidden, "invalid or missing CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *OriginGuard) isExempt(path string) bool {
	for _, exempt := range g.cfg.ExemptPaths {
		if strings.HasPrefix(path, exempt) {
			return true
		}
	}
	return false
}

func (g *OriginGuard) validToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeader)
	if token == "" || g.userID == nil {
		return false
	}
	userID := g.userID(r)
	if userID == "" {
		return false
	}
	return g.tokens.Validate(token, userID)
}

func validUserAgent(userAgent string) bool {
	lowered := strings.ToLower(userAgent)
	for _, client := range blockedClients {
		if strings.Contains(lowered, client) {
			return false
		}
	}
	return true
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
