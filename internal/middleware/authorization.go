package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

const msgForbidden = "No tienes permisos para realizar esta acción."

// RequireAdmin middleware ensures the session has the admin client role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := GetSession(r.Context())
			if !ok {
				logger.Warn("Session not found in context")
				RespondWithError(w, http.StatusForbidden, msgForbidden)
				return
			}

			if !session.IsAdmin() {
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("username", session.Username),
					zap.Strings("roles", session.Roles),
				)
				RespondWithError(w, http.StatusForbidden, msgForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
