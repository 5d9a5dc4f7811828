package middleware

import (
	"net/http"

	logpkg "github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"go.uber.org/zap"
)

// Audit logs security-related responses: failed authentication or
// authorization and rate limit violations
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			var event string
			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				event = "security_event"
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			default:
				return
			}

			fields := []zap.Field{
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeIP(request.ClientIP(r))),
			}
			if user := request.UserFromContext(r); user != nil {
				fields = append(fields, zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())))
			}
			logger.Warn(event, fields...)
		})
	}
}
