package middleware

import (
	"net/http"
)

// RequireScope returns middleware that checks API key scopes. Requests
// without an API key in context (auth disabled) pass through; role checks
// still apply via RequireRole. Keys with nil scopes predate scoping and
// keep full access.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKeyFromContext(r.Context())
			if key == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Nil scopes means unrestricted (backward compat for old keys).
			if key.Scopes == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !key.HasScope(scope) {
				http.Error(w, `{"error":"insufficient scope"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
