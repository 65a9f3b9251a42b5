package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"quantum-stock/internal/auth"

	"go.uber.org/zap"
)

type contextKey string

const SessionKey contextKey = "session"

// SessionCookie carries the access token for the HTML pages
const SessionCookie = "qs_session"

const (
	msgTokenRequired  = "Token de autenticación requerido"
	msgSessionExpired = "Tu sesión ha expirado. Por favor, inicia sesión nuevamente."
	msgInvalidToken   = "Token de autenticación inválido"
	msgInvalidHeader  = "Formato de cabecera Authorization inválido"
)

// errInvalidHeader is returned for an Authorization header that is not "Bearer <token>"
var errInvalidHeader = errors.New("invalid authorization header format")

// AuthMiddleware requires a valid session and stores it in the request context
func AuthMiddleware(parser *auth.Parser, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := RequestToken(r)
			if err != nil {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, msgInvalidHeader)
				return
			}
			if token == "" {
				logger.Debug("Missing access token")
				RespondWithError(w, http.StatusUnauthorized, msgTokenRequired)
				return
			}

			session, err := parser.Parse(token)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, auth.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, msgSessionExpired)
				} else {
					RespondWithError(w, http.StatusUnauthorized, msgInvalidToken)
				}
				return
			}

			logger.Debug("User authenticated",
				zap.String("subject", session.Subject),
				zap.Strings("roles", session.Roles),
			)

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// SessionMiddleware stores the session in the context when the request
// carries a usable token and lets every request through. Pages use it to
// decide between rendering and redirecting.
func SessionMiddleware(parser *auth.Parser, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := RequestToken(r)
			if err != nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := parser.Parse(token)
			if err != nil {
				logger.Debug("Ignoring unusable session token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequestToken reads the access token from the Authorization header, or
// from the session cookie when the header is absent
func RequestToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errInvalidHeader
		}
		return parts[1], nil
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value, nil
	}
	return "", nil
}

// WithSession returns ctx carrying session
func WithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession extracts the session from the request context
func GetSession(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(SessionKey).(auth.Session)
	return session, ok
}
