package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerAuth returns middleware that validates bearer tokens. If token is
// empty, no authentication is required and all requests pass through.
// Otherwise requests must carry "Authorization: Bearer <token>" or, for
// websocket clients that cannot set headers, a token query parameter.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			} else {
				presented = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
