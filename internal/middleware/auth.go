package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyFromRequest reads the key from X-API-Key or a Bearer token
func APIKeyFromRequest(h http.Header) string {
	if key := h.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := h.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// KeyMatches compares keys in constant time. An empty expected key matches
// nothing.
func KeyMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// RequireAPIKey rejects requests without the expected key. Paths in exempt
// are served without a key. When key is empty and open is set, all requests
// pass; that mode is meant for local development.
func RequireAPIKey(key string, open bool, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || (open && key == "") {
				next.ServeHTTP(w, r)
				return
			}
			if !KeyMatches(APIKeyFromRequest(r.Header), key) {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
