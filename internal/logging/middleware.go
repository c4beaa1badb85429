package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware returns a middleware that logs the start and end of each request
// and stores a request-scoped logger in the request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			requestLogger := &CtxLogger{logger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
			})}
			requestLogger.Debug("Request started")

			next.ServeHTTP(ww, r.WithContext(requestLogger.WithContext(r.Context())))

			latency := time.Since(start)
			fields := map[string]interface{}{
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"latency_ms": float64(latency.Microseconds()) / 1000.0,
				"user_agent": r.UserAgent(),
				"protocol":   r.Proto,
			}

			switch {
			case ww.Status() >= 500:
				fields["error"] = http.StatusText(ww.Status())
				requestLogger.Error("Request failed", fields)
			case ww.Status() >= 400:
				fields["error"] = http.StatusText(ww.Status())
				requestLogger.Warn("Request rejected", fields)
			default:
				requestLogger.Info("Request completed", fields)
			}
		})
	}
}
