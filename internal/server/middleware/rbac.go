package middleware

import (
	"net/http"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// RequireCapability returns middleware that checks that the authenticated
// user's role grants c. It must be chained after the Auth middleware.
//
// Returns 401 Unauthorized when no role is found in context and 403
// Forbidden when the role lacks the capability.
func RequireCapability(c domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || role == "" {
				http.Error(w, `{"ok":false,"kind":"unauthorized","message":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if !role.Can(c) {
				http.Error(w, `{"ok":false,"kind":"permission","message":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
