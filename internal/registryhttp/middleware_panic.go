package registryhttp

import (
	"net/http"
	"runtime/debug"

	"github.com/quasarhq/quasar/internal/logging"
)

// MiddlewarePanic recovers any panic raised downstream, logs it with a
// stack trace, and responds 500 rather than letting the connection die.
func MiddlewarePanic(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func() {
		if e := recover(); e != nil {
			logging.FromContext(r.Context()).Error("panic handling request",
				"panic", e,
				"stack", string(debug.Stack()),
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
	}()
	next(w, r)
}
