package registryhttp

import (
	"errors"
	"net/http"
	"os"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/logging"
	"github.com/quasarhq/quasar/internal/model"
)

// handleDelete implements DELETE /internal/delete/{class_type}/{class_name}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	className := r.PathValue("class_name")

	reg, err := s.store.GetRegistration(r.Context(), className, classType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.store.DeleteRegistration(r.Context(), className, classType); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := os.Remove(reg.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(r.Context()).Warn("registration row deleted but file removal failed", "file_path", reg.FilePath, "error", err)
		writeJSON(w, http.StatusMultiStatus, map[string]string{"message": "registration deleted, file removal failed"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateAssets implements POST /internal/{class_type}/{class_name}/update-assets.
func (s *Server) handleUpdateAssets(w http.ResponseWriter, r *http.Request) {
	classType := model.ClassType(r.PathValue("class_type"))
	className := r.PathValue("class_name")

	stats, status, err := s.syncAssetsForClass(r, className, classType)
	if err != nil {
		writeJSON(w, status, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleUpdateAllAssets implements POST /internal/update-all-assets.
func (s *Server) handleUpdateAllAssets(w http.ResponseWriter, r *http.Request) {
	regs, err := s.store.ListRegistrations(r.Context(), model.ClassTypeProvider)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	results := map[string]model.UpsertStats{}
	for _, reg := range regs {
		stats, _, err := s.syncAssetsForClass(r, reg.ClassName, reg.ClassType)
		if err != nil {
			results[reg.ClassName] = model.UpsertStats{Failed: 1, Errors: []string{err.Error()}}
			continue
		}
		results[reg.ClassName] = stats
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) syncAssetsForClass(r *http.Request, className string, classType model.ClassType) (model.UpsertStats, int, error) {
	var stats model.UpsertStats

	symbols, err := s.collector.AvailableSymbols(r.Context(), className)
	if err != nil {
		var verr *interservice.ValidateError
		if errors.As(err, &verr) && (verr.StatusCode == http.StatusNotFound || verr.StatusCode == http.StatusNotImplemented) {
			return stats, verr.StatusCode, err
		}
		return stats, http.StatusBadGateway, err
	}

	for _, sym := range symbols {
		inserted, err := s.store.UpsertAsset(r.Context(), model.Asset{
			ClassName:  className,
			ClassType:  classType,
			Symbol:     sym.Symbol,
			ExternalID: sym.ExternalID,
			Name:       sym.Name,
			Exchange:   sym.Exchange,
		})
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}
		if inserted {
			stats.Added++
		} else {
			stats.Updated++
		}
	}
	return stats, http.StatusOK, nil
}

// handleClassesSummary implements GET /internal/classes/summary.
func (s *Server) handleClassesSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ClassSummary(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classSummaryView(rows))
}

func classSummaryView(rows []database.ClassSummaryRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"class_name":    row.ClassName,
			"class_type":    row.ClassType,
			"class_subtype": row.ClassSubtype,
			"uploaded_at":   row.UploadedAt,
			"asset_count":   row.AssetCount,
		})
	}
	return out
}
