package registryhttp

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/metrics"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/secrets"
)

// Store is the persistence surface the Registry HTTP handlers need.
type Store interface {
	GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error)
	UpsertRegistration(ctx context.Context, reg model.ProviderRegistration) error
	UpdatePreferences(ctx context.Context, className string, classType model.ClassType, prefs map[string]any) error
	UpdateSecrets(ctx context.Context, className string, classType model.ClassType, nonce [12]byte, ciphertext []byte) error
	DeleteRegistration(ctx context.Context, className string, classType model.ClassType) error
	ListRegistrations(ctx context.Context, classType model.ClassType) ([]model.ProviderRegistration, error)
	ClassSummary(ctx context.Context) ([]database.ClassSummaryRow, error)

	UpsertAsset(ctx context.Context, a model.Asset) (bool, error)
	CreateAssetMapping(ctx context.Context, m model.AssetMapping) error
	ListAssetMappings(ctx context.Context, commonSymbol string) ([]model.AssetMapping, error)
	UpdateAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol, newCommonSymbol string, isActive bool) error
	DeleteAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol string) error

	CountAssetIdentities(ctx context.Context) (int64, error)
	InsertAssetIdentity(ctx context.Context, identity model.AssetIdentity) error
}

// CollectorClient is the subset of interservice.Client the Registry
// handlers call.
type CollectorClient interface {
	Validate(ctx context.Context, vr interservice.ValidateRequest) error
	AvailableSymbols(ctx context.Context, className string) ([]model.SymbolInfo, error)
	Unload(ctx context.Context, className string) error
}

// Server is the Registry Control Plane's HTTP surface.
type Server struct {
	store         Store
	master        *secrets.MasterContext
	collector     CollectorClient
	allowlistRoot string
	identityDir   string
	metrics       *metrics.HTTPMetrics

	mux *MiddlewareMux
}

// Config bundles Server's construction dependencies.
type Config struct {
	Store         Store
	Master        *secrets.MasterContext
	Collector     CollectorClient
	AllowlistRoot string
	IdentityDir   string

	// Metrics is optional; a nil value disables request instrumentation.
	Metrics *metrics.HTTPMetrics
}

// NewServer builds a Server and wires its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:         cfg.Store,
		master:        cfg.Master,
		collector:     cfg.Collector,
		allowlistRoot: cfg.AllowlistRoot,
		identityDir:   cfg.IdentityDir,
		metrics:       cfg.Metrics,
	}
	s.mux = NewMiddlewareMux(MiddlewarePanic, MiddlewareLogging, s.middlewareMetrics)
	s.routes()
	return s
}

// Handler returns the http.Handler to pass to an http.Server, wrapped
// with OpenTelemetry request tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "registry")
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /internal/{class_type}/upload", s.handleUpload)
	s.mux.HandleFunc("DELETE /internal/delete/{class_type}/{class_name}", s.handleDelete)
	s.mux.HandleFunc("POST /internal/{class_type}/{class_name}/update-assets", s.handleUpdateAssets)
	s.mux.HandleFunc("POST /internal/update-all-assets", s.handleUpdateAllAssets)
	s.mux.HandleFunc("GET /internal/classes/summary", s.handleClassesSummary)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/registry/config/schema", s.handleConfigSchema)
	s.mux.HandleFunc("PUT /api/registry/config", s.handleConfigPut)
	s.mux.HandleFunc("GET /api/registry/config/secret-keys", s.handleSecretKeys)
	s.mux.HandleFunc("PATCH /api/registry/config/secrets", s.handleSecretsPatch)

	s.mux.HandleFunc("POST /internal/asset-mappings", s.handleCreateAssetMapping)
	s.mux.HandleFunc("GET /internal/asset-mappings", s.handleListAssetMappings)
	s.mux.HandleFunc("PUT /internal/asset-mappings/{class_type}/{class_name}/{class_symbol}", s.handleUpdateAssetMapping)
	s.mux.HandleFunc("DELETE /internal/asset-mappings/{class_type}/{class_name}/{class_symbol}", s.handleDeleteAssetMapping)
}

// SeedIdentities runs the startup identity-seeding step (§4.H): if
// asset_identity is empty, load YAML manifests from identityDir and
// insert each record. Never fatal.
func (s *Server) SeedIdentities(ctx context.Context, logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}) {
	seedIdentities(ctx, s.store, s.identityDir, logger)
}
