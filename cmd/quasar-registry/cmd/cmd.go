package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quasarhq/quasar/internal/config"
	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/logging"
	"github.com/quasarhq/quasar/internal/metrics"
	"github.com/quasarhq/quasar/internal/registryhttp"
	"github.com/quasarhq/quasar/internal/secrets"
)

// RegistryOpts holds the registry binary's runtime configuration,
// defaulting from the environment per internal/config.
type RegistryOpts struct {
	masterSecretPath string
	secretMode       string
	dsn              string
	corsOrigins      string
	logLevel         string
	allowlistRoot    string
	identityDir      string
	collectorBaseURL string
	port             string
}

// NewRootCmd builds the quasar-registry root command.
func NewRootCmd() *cobra.Command {
	cfg := config.FromEnv()
	opts := &RegistryOpts{
		masterSecretPath: cfg.MasterSecretPath,
		secretMode:       cfg.SecretMode,
		dsn:              cfg.DSN,
		corsOrigins:      cfg.CORSOrigins,
		logLevel:         cfg.LogLevel,
		allowlistRoot:    cfg.AllowlistRoot,
		identityDir:      cfg.IdentityManifestDir,
		collectorBaseURL: cfg.CollectorBaseURL,
		port:             cfg.RegistryPort,
	}

	rootCmd := &cobra.Command{
		Use:   "quasar-registry",
		Args:  cobra.NoArgs,
		Short: "Serve the Quasar Registry Control Plane",
		Long: `Serve the Quasar Registry Control Plane

This command runs the registry HTTP API: provider upload/delete, asset
sync, the CONFIGURABLE preference schema, the secrets sub-resource, and
asset-mapping CRUD. It talks to Postgres/TimescaleDB directly and to the
Collector over the inter-service HTTP contract.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.Run()
		},
	}

	rootCmd.Flags().StringVar(&opts.masterSecretPath, "master-secret-path", opts.masterSecretPath, "path to the process-global master secret file")
	rootCmd.Flags().StringVar(&opts.secretMode, "secret-mode", opts.secretMode, "secret resolution mode: auto|local|aws")
	rootCmd.Flags().StringVar(&opts.dsn, "dsn", opts.dsn, "Postgres/TimescaleDB connection string")
	rootCmd.Flags().StringVar(&opts.corsOrigins, "cors-origins", opts.corsOrigins, "comma-separated list of allowed CORS origins")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level: debug|info|warn|error")
	rootCmd.Flags().StringVar(&opts.allowlistRoot, "allowlist-root", opts.allowlistRoot, "directory every loadable provider file must lie under")
	rootCmd.Flags().StringVar(&opts.identityDir, "identity-manifest-dir", opts.identityDir, "directory of YAML manifests for one-time asset identity seeding")
	rootCmd.Flags().StringVar(&opts.collectorBaseURL, "collector-base-url", opts.collectorBaseURL, "base URL of the Collector's inter-service endpoints")
	rootCmd.Flags().StringVar(&opts.port, "port", opts.port, "port to listen on")

	return rootCmd
}

// Run wires the registry's dependencies and blocks serving HTTP until a
// termination signal arrives.
func (o *RegistryOpts) Run() error {
	cfg := config.Config{MasterSecretPath: o.masterSecretPath, SecretMode: o.secretMode, DSN: o.dsn}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(o.logLevel)
	ctx := logging.WithContext(context.Background(), logger)

	master, err := secrets.LoadMasterContext(o.masterSecretPath)
	if err != nil {
		return fmt.Errorf("quasar-registry: %w", err)
	}

	db := database.New()
	dbCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	defer cancelInit()
	if err := db.Init(dbCtx, o.dsn); err != nil {
		return fmt.Errorf("quasar-registry: %w", err)
	}
	defer db.Close()

	collector := interservice.NewClient(o.collectorBaseURL)

	srv := registryhttp.NewServer(registryhttp.Config{
		Store:         db,
		Master:        master,
		Collector:     collector,
		AllowlistRoot: o.allowlistRoot,
		IdentityDir:   o.identityDir,
		Metrics:       metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	})
	srv.SeedIdentities(ctx, logger)

	listener, err := net.Listen("tcp4", fmt.Sprintf(":%s", o.port))
	if err != nil {
		return fmt.Errorf("quasar-registry: %w", err)
	}

	httpServer := &http.Server{
		Handler:     srv.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quasar-registry listening", "port", o.port)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Info("caught signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("quasar-registry: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("quasar-registry stopped")
	return nil
}
