package router

import (
	"crypto/hmac"
	"net/http"
	"strings"
)

const adminTokenHeader = "X-Admin-Token"

// requireAdminToken gates the operator endpoints behind a shared token.
// When expected is empty the routes are closed entirely rather than open:
// a missing deploy secret must never expose manual enqueue.
func requireAdminToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(adminTokenHeader))
			if expected == "" || token == "" || !hmac.Equal([]byte(token), []byte(expected)) {
				http.Error(w, "invalid admin token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
