package registryhttp

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/model"
)

var allowedClassTypes = map[model.ClassType]bool{
	model.ClassTypeProvider: true,
	model.ClassTypeBroker:   true,
}

// handleUpload implements POST /internal/{class_type}/upload (§4.H).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	if !allowedClassTypes[classType] {
		writeError(w, http.StatusBadRequest, "invalid_class_type", "unsupported class_type")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_upload", "could not parse multipart form")
		return
	}

	className := r.FormValue("class_name")
	classSubtype := model.ClassSubtype(r.FormValue("class_subtype"))
	if className == "" {
		writeError(w, http.StatusBadRequest, "missing_class_name", "class_name is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".py") {
		writeError(w, http.StatusBadRequest, "invalid_extension", "uploaded file must have a .py extension")
		return
	}

	secretsRaw := r.FormValue("secrets")
	var secretValues map[string]string
	if secretsRaw != "" {
		if err := json.Unmarshal([]byte(secretsRaw), &secretValues); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_secrets", "secrets must be a flat JSON object")
			return
		}
	} else {
		secretValues = map[string]string{}
	}

	var preferences map[string]any
	if prefsRaw := r.FormValue("preferences"); prefsRaw != "" {
		if err := json.Unmarshal([]byte(prefsRaw), &preferences); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_preferences", "preferences must be a JSON object")
			return
		}
	} else {
		preferences = map[string]any{}
	}

	filename := uuid.NewString() + ".py"
	filePath := filepath.Join(s.allowlistRoot, filename)

	hash, err := streamToFileWithHash(file, filePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "write_failed", "could not persist uploaded file")
		return
	}

	// No secrets: leave nonce/ciphertext at their zero value rather than
	// encrypting an empty payload, so secret-keys/loader reads can tell
	// "no secrets stored" apart from "stored, decrypts to {}" with one
	// check (len(Ciphertext) == 0).
	var nonce [12]byte
	var ciphertext []byte
	if len(secretValues) > 0 {
		secretsJSON, _ := json.Marshal(secretValues)
		nonce, ciphertext, err = s.master.Encrypt(hash, secretsJSON)
		if err != nil {
			os.Remove(filePath) //nolint:errcheck
			writeError(w, http.StatusInternalServerError, "encrypt_failed", "could not encrypt credentials")
			return
		}
	}

	err = s.collector.Validate(r.Context(), interservice.ValidateRequest{
		ClassName:   className,
		ClassType:   classType,
		FilePath:    filePath,
		Preferences: preferences,
		Secrets:     secretValues,
	})
	if err != nil {
		os.Remove(filePath) //nolint:errcheck

		var verr *interservice.ValidateError
		if errors.As(err, &verr) {
			writeError(w, verr.StatusCode, "validate_rejected", verr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, "validate_unreachable", err.Error())
		return
	}

	reg := model.ProviderRegistration{
		ClassName:    className,
		ClassType:    classType,
		ClassSubtype: classSubtype,
		FilePath:     filePath,
		FileHash:     hash,
		Nonce:        nonce,
		Ciphertext:   ciphertext,
		Preferences:  preferences,
	}
	if err := s.store.UpsertRegistration(r.Context(), reg); err != nil {
		writeError(w, http.StatusInternalServerError, "persist_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"class_name": className, "file_path": filePath})
}

func streamToFileWithHash(src io.Reader, destPath string) (hash [32]byte, err error) {
	dest, err := os.Create(destPath)
	if err != nil {
		return hash, err
	}
	defer dest.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dest, h), src); err != nil {
		return hash, err
	}
	copy(hash[:], h.Sum(nil))
	return hash, nil
}
