package registryhttp

import (
	"context"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/quasarhq/quasar/internal/model"
)

type identityLogger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// seedIdentities loads YAML manifests from dir and inserts one
// AssetIdentity row per document, but only when asset_identity is
// currently empty. Invalid YAML or a missing directory logs a warning
// and continues; it is never fatal (§4.H).
func seedIdentities(ctx context.Context, store Store, dir string, logger identityLogger) {
	count, err := store.CountAssetIdentities(ctx)
	if err != nil {
		logger.Warn("identity seeding: could not check existing count, skipping", "error", err)
		return
	}
	if count > 0 {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("identity seeding: manifest directory unavailable, skipping", "dir", dir, "error", err)
		return
	}

	seeded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("identity seeding: could not read manifest", "path", path, "error", err)
			continue
		}

		var identity model.AssetIdentity
		if err := yaml.Unmarshal(raw, &identity); err != nil {
			logger.Warn("identity seeding: invalid YAML, skipping file", "path", path, "error", err)
			continue
		}
		if identity.CommonSymbol == "" {
			logger.Warn("identity seeding: manifest missing common_symbol, skipping file", "path", path)
			continue
		}

		if err := store.InsertAssetIdentity(ctx, identity); err != nil {
			logger.Warn("identity seeding: insert failed", "path", path, "error", err)
			continue
		}
		seeded++
	}

	logger.Info("identity seeding complete", "dir", dir, "files_seen", len(entries), "seeded", seeded)
}
