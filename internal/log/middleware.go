package log

import (
	"net/http"
)

// Middleware stores a request-scoped logger in the request context. The
// logger carries the request id and is tagged as the HTTP component.
func Middleware(logger *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	base := logger.WithComponent(ComponentHTTP)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if requestID != nil {
				if id := requestID(r); id != "" {
					l = base.With(FieldRequestID, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}
