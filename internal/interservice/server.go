package interservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/providercontract"
)

// ProviderLoader is the subset of providerloader.Loader the Collector's
// inter-service handlers need.
type ProviderLoader interface {
	Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error)
	Unload(ctx context.Context, className string) error
	ValidateConstruct(ctx context.Context, filePath, className string, classType model.ClassType, preferences map[string]any, secretValues map[string]string) error
}

// Server hosts the Collector-side endpoints the Registry calls.
type Server struct {
	loader ProviderLoader
	logger *slog.Logger
}

// NewServer builds a Server.
func NewServer(loader ProviderLoader, logger *slog.Logger) *Server {
	return &Server{loader: loader, logger: logger}
}

// Register mounts the Collector's inter-service routes onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/{class_type}/{class_name}/validate", s.handleValidate)
	mux.HandleFunc("GET /internal/providers/{class_name}/available-symbols", s.handleAvailableSymbols)
	mux.HandleFunc("POST /internal/providers/{class_name}/unload", s.handleUnload)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	className := r.PathValue("class_name")

	var body validateWireBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed request body"})
		return
	}

	if err := s.loader.ValidateConstruct(r.Context(), body.FilePath, className, classType, body.Preferences, body.Secrets); err != nil {
		s.logger.Warn("validate rejected", "class_name", className, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAvailableSymbols(w http.ResponseWriter, r *http.Request) {
	className := r.PathValue("class_name")

	inst, err := s.loader.Load(r.Context(), className, model.ClassTypeProvider)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
		return
	}

	symbols, err := inst.GetAvailableSymbols(r.Context())
	if err != nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, symbols)
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	className := r.PathValue("class_name")
	if err := s.loader.Unload(r.Context(), className); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
