package registryhttp

import (
	"crypto/rand"
	"encoding/json"
	"net/http"

	"github.com/quasarhq/quasar/internal/model"
)

// handleConfigSchema implements GET /api/registry/config/schema.
func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	className := r.URL.Query().Get("class_name")
	classType := model.ClassType(r.URL.Query().Get("class_type"))

	reg, err := s.store.GetRegistration(r.Context(), className, classType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	schema := SchemaFor(reg.ClassSubtype)
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":    schema,
		"effective": EffectiveConfig(schema, reg.Preferences),
	})
}

// handleConfigPut implements PUT /api/registry/config.
func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	className := r.URL.Query().Get("class_name")
	classType := model.ClassType(r.URL.Query().Get("class_type"))

	reg, err := s.store.GetRegistration(r.Context(), className, classType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_patch", "body must be a category->field->value JSON object")
		return
	}

	schema := SchemaFor(reg.ClassSubtype)
	if err := ValidatePatch(schema, patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	merged := map[string]any{}
	for k, v := range reg.Preferences {
		merged[k] = v
	}
	for k, v := range FlattenPatch(patch) {
		merged[k] = v
	}

	if err := s.store.UpdatePreferences(r.Context(), className, classType, merged); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EffectiveConfig(schema, merged))
}

// handleSecretKeys implements GET /api/registry/config/secret-keys. It
// decrypts the credential envelope but returns only the top-level key
// names, never values (§4.H).
func (s *Server) handleSecretKeys(w http.ResponseWriter, r *http.Request) {
	className := r.URL.Query().Get("class_name")
	classType := model.ClassType(r.URL.Query().Get("class_type"))

	reg, err := s.store.GetRegistration(r.Context(), className, classType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(reg.Ciphertext) == 0 {
		writeJSON(w, http.StatusOK, []string{})
		return
	}

	plaintext, err := s.master.Decrypt(reg.FileHash, reg.Nonce, reg.Ciphertext)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var secretMap map[string]string
	if err := json.Unmarshal(plaintext, &secretMap); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt_secrets", "stored credential payload is not valid JSON")
		return
	}

	keys := make([]string, 0, len(secretMap))
	for k := range secretMap {
		keys = append(keys, k)
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleSecretsPatch implements PATCH /api/registry/config/secrets.
func (s *Server) handleSecretsPatch(w http.ResponseWriter, r *http.Request) {
	className := r.URL.Query().Get("class_name")
	classType := model.ClassType(r.URL.Query().Get("class_type"))

	var body struct {
		Secrets map[string]string `json:"secrets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_patch", "body must be {\"secrets\": {...}}")
		return
	}
	if len(body.Secrets) == 0 {
		writeError(w, http.StatusBadRequest, "empty_secrets", "secrets must not be empty")
		return
	}

	reg, err := s.store.GetRegistration(r.Context(), className, classType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	plaintext, err := json.Marshal(body.Secrets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}

	var nonce [12]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		writeError(w, http.StatusInternalServerError, "nonce_failed", err.Error())
		return
	}
	aead, err := s.master.Derive(reg.FileHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "derive_failed", err.Error())
		return
	}
	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)

	if err := s.store.UpdateSecrets(r.Context(), className, classType, nonce, ciphertext); err != nil {
		writeStoreError(w, err)
		return
	}

	// Best-effort: the secret update itself has already succeeded even if
	// this fails (§4.H: "Secret update succeeds even if the unload call
	// fails").
	_ = s.collector.Unload(r.Context(), className)

	w.WriteHeader(http.StatusOK)
}
