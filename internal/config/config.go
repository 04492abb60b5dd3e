// Package config centralizes the environment-driven configuration shared
// by both Quasar binaries: cobra flags default from os.Getenv rather than
// a config file or viper layer.
package config

import (
	"fmt"
	"os"
)

// Config holds the settings read from the environment at startup (§6).
type Config struct {
	// MasterSecretPath is the filesystem path to the process-global master
	// secret. Required; missing or empty file is fatal.
	MasterSecretPath string

	// SecretMode is one of "auto", "local", "aws" and is checked by
	// Validate. No code path branches on it: every mode uses the local
	// master secret file at MasterSecretPath.
	SecretMode string

	// DSN is the Postgres connection string. Required.
	DSN string

	// CORSOrigins is the comma-separated list of allowed CORS origins for
	// the registry HTTP surface.
	CORSOrigins string

	// LogLevel controls the slog handler level ("debug", "info", "warn",
	// "error").
	LogLevel string

	// AllowlistRoot is the single directory under which every loadable
	// provider file must lie (§4.B invariant).
	AllowlistRoot string

	// IdentityManifestDir is the directory of YAML manifests consulted for
	// one-time AssetIdentity seeding.
	IdentityManifestDir string

	// RegistryPort is the Registry Control Plane's HTTP listen port.
	RegistryPort string

	// CollectorPort is the Collector's inter-service HTTP listen port.
	CollectorPort string

	// CollectorBaseURL is where the Registry reaches the Collector's
	// inter-service endpoints (§4.I).
	CollectorBaseURL string

	// ReconcileInterval, parsed by time.ParseDuration, controls how often
	// the Subscription Scheduler re-fetches the subscriptions view.
	ReconcileInterval string
}

// FromEnv reads Config from the environment, applying defaults for optional
// fields. It does not validate required fields; call Validate for that.
func FromEnv() Config {
	return Config{
		MasterSecretPath:    os.Getenv("MASTER_SECRET_PATH"),
		SecretMode:          envOrDefault("SECRET_MODE", "auto"),
		DSN:                 os.Getenv("DSN"),
		CORSOrigins:         os.Getenv("CORS_ORIGINS"),
		LogLevel:            envOrDefault("LOGLEVEL", "info"),
		AllowlistRoot:       envOrDefault("ALLOWLIST_ROOT", "/app/dynamic_providers"),
		IdentityManifestDir: envOrDefault("IDENTITY_MANIFEST_DIR", "/app/manifests/identities"),
		RegistryPort:        envOrDefault("REGISTRY_PORT", "8080"),
		CollectorPort:       envOrDefault("COLLECTOR_PORT", "8091"),
		CollectorBaseURL:    envOrDefault("COLLECTOR_BASE_URL", "http://localhost:8091"),
		ReconcileInterval:   os.Getenv("RECONCILE_INTERVAL"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate enforces the configuration-fatal invariants from §7.1: the
// master secret path and the DSN must both be set.
func (c Config) Validate() error {
	if c.MasterSecretPath == "" {
		return fmt.Errorf("config: MASTER_SECRET_PATH is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("config: DSN is required")
	}
	switch c.SecretMode {
	case "auto", "local", "aws":
	default:
		return fmt.Errorf("config: invalid SECRET_MODE %q, must be one of auto|local|aws", c.SecretMode)
	}
	return nil
}
