package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/happy-hops/choperia/internal/logging"
	"github.com/happy-hops/choperia/pkg/logger"
)

// TraceIDHeader carries the request trace id in and out.
const TraceIDHeader = "X-Trace-ID"

// LoggingMiddleware attaches a trace id to each request, echoes it in the
// response and logs the request once served.
func LoggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			w.Header().Set(TraceIDHeader, traceID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logging.LogRequest(ctx, log, r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}
