package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ParseAPIKeys parses a comma-separated list of API keys, trimming whitespace
// and ignoring empty entries.
func ParseAPIKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// APIKeyMiddleware returns a middleware that validates the X-API-Key header,
// falling back to the api_key query parameter. With no keys configured every
// request is allowed through.
func APIKeyMiddleware(validKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(validKeys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}

			if !validKey(validKeys, key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys []string, key string) bool {
	if key == "" {
		return false
	}
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return ok == 1
}
