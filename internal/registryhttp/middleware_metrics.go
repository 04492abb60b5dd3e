package registryhttp

import (
	"net/http"
	"time"
)

// middlewareMetrics records request counts and latency against s.metrics.
// A nil s.metrics (the zero Server, or tests that don't care) makes this
// a no-op, since metrics.HTTPMetrics methods tolerate a nil receiver.
func (s *Server) middlewareMetrics(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	start := time.Now()

	next(lw, r)

	s.metrics.Observe(r.Method, r.URL.Path, lw.statusCode, time.Since(start))
}
