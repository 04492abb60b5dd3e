package registryhttp

import (
	"encoding/json"
	"net/http"

	"github.com/quasarhq/quasar/internal/model"
)

// handleCreateAssetMapping implements POST /internal/asset-mappings.
func (s *Server) handleCreateAssetMapping(w http.ResponseWriter, r *http.Request) {
	var m model.AssetMapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", "could not decode asset mapping")
		return
	}
	if err := s.store.CreateAssetMapping(r.Context(), m); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// handleListAssetMappings implements GET /internal/asset-mappings.
func (s *Server) handleListAssetMappings(w http.ResponseWriter, r *http.Request) {
	commonSymbol := r.URL.Query().Get("common_symbol")
	mappings, err := s.store.ListAssetMappings(r.Context(), commonSymbol)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

// handleUpdateAssetMapping implements PUT
// /internal/asset-mappings/{class_type}/{class_name}/{class_symbol}.
func (s *Server) handleUpdateAssetMapping(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	className := r.PathValue("class_name")
	classSymbol := r.PathValue("class_symbol")

	var body struct {
		CommonSymbol string `json:"common_symbol"`
		IsActive     bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", "could not decode request")
		return
	}

	if err := s.store.UpdateAssetMapping(r.Context(), className, classType, classSymbol, body.CommonSymbol, body.IsActive); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteAssetMapping implements DELETE
// /internal/asset-mappings/{class_type}/{class_name}/{class_symbol}.
func (s *Server) handleDeleteAssetMapping(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	className := r.PathValue("class_name")
	classSymbol := r.PathValue("class_symbol")

	if err := s.store.DeleteAssetMapping(r.Context(), className, classType, classSymbol); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
