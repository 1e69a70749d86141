package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/":              true,
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/index.html":    true,
	"/app.js":        true,
	"/styles.css":    true,
	"/api/v1/help":   true,
	"/api/v1/client": true,
}

// exemptPrefixes are path prefixes that are always public. The page and its
// textures must load before the browser can present a token.
var exemptPrefixes = []string{
	"/assets/",
}

// isExempt returns true if the path is exempt from auth.
func isExempt(path string) bool {
	if exemptPaths[path] {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if !validToken(r, cfg.Token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validToken checks the Authorization header. Browsers cannot set headers on
// EventSource or WebSocket requests, so the stream and control endpoints also
// accept the token as an access_token query parameter.
func validToken(r *http.Request, want string) bool {
	var token string
	if header := r.Header.Get("Authorization"); header != "" {
		t, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return false
		}
		token = t
	} else if streamPath(r.URL.Path) {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

func streamPath(path string) bool {
	return path == "/api/v1/stream/frames" || path == "/api/v1/ws"
}
