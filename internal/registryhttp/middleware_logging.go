package registryhttp

import (
	"net/http"
	"time"

	"github.com/quasarhq/quasar/internal/logging"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.statusCode = statusCode
}

// MiddlewareLogging logs one line per request/response pair, attaching
// method/path/status/duration attributes to the process logger.
func MiddlewareLogging(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	start := time.Now()

	logger := logging.FromContext(r.Context()).With(
		"request_method", r.Method,
		"request_path", r.URL.Path,
		"request_remote_addr", r.RemoteAddr,
	)
	ctx := logging.WithContext(r.Context(), logger)

	next(lw, r.WithContext(ctx))

	logger.Info("handled request",
		"status_code", lw.statusCode,
		"duration", time.Since(start).Seconds(),
	)
}
