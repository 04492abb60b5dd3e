package registryhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/providerloader"
	"github.com/quasarhq/quasar/internal/secrets"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeStoreError centralizes translation of persistence/loader sentinel
// errors into HTTP status codes, the way ARM error responses are
// centralized in one place for the whole HTTP surface.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, providerloader.ErrPathConfinement):
		writeError(w, http.StatusBadRequest, "path_confinement", err.Error())
	case errors.Is(err, providerloader.ErrClassCardinality):
		writeError(w, http.StatusUnprocessableEntity, "class_cardinality", err.Error())
	case errors.Is(err, secrets.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "integrity_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
