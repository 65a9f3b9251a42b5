package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"quantum-stock/internal/validation"

	"go.uber.org/zap"
)

// MaxBodyBytes bounds JSON request bodies
const MaxBodyBytes = 1 << 20

// ErrMalformedBody is returned when a request body is not the expected JSON
var ErrMalformedBody = errors.New("malformed request body")

// JSONBodyMiddleware rejects request bodies that are not JSON and bounds
// their size
func JSONBodyMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					logger.Debug("Unsupported request content type",
						zap.String("content_type", r.Header.Get("Content-Type")),
					)
					RespondWithError(w, http.StatusUnsupportedMediaType, "El cuerpo de la petición debe ser JSON")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Decode decodes the JSON request body into v
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// FormatValidationErrors extracts the field messages from a validation error
func FormatValidationErrors(err error) []validation.FieldError {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
