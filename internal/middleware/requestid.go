package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"github.com/taskflow-ai/taskflow-api/internal/services/ai"
)

const maxRequestIDLength = 64

// RequestID assigns every request an id, reusing a well-formed inbound X-Request-ID.
// The id is echoed on the response and attached to the context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(request.RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(request.RequestIDHeader, id)

		ctx := request.WithRequestID(r.Context(), id)
		ctx = ai.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
