package middleware

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// isLocalOrigin reports whether origin is served from the developer's machine
func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// CORSMiddleware lets the browser client call the JSON API with its session
// cookie. In development any local origin is accepted in addition to the
// configured ones.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if isDevelopment {
		configured := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			configured[o] = true
		}
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return configured[origin] || isLocalOrigin(origin)
		}
	}

	return cors.Handler(opts)
}

// DefaultMiddlewareStack returns the middleware every route goes through
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5, "application/json", "text/html", "text/css"),
	}
}
