package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quasarhq/quasar/internal/config"
	"github.com/quasarhq/quasar/internal/database"
	"github.com/quasarhq/quasar/internal/historical"
	"github.com/quasarhq/quasar/internal/interservice"
	"github.com/quasarhq/quasar/internal/live"
	"github.com/quasarhq/quasar/internal/logging"
	"github.com/quasarhq/quasar/internal/metrics"
	"github.com/quasarhq/quasar/internal/providerloader"
	"github.com/quasarhq/quasar/internal/scheduler"
	"github.com/quasarhq/quasar/internal/secrets"
)

// CollectorOpts holds the collector binary's runtime configuration,
// defaulting from the environment per internal/config.
type CollectorOpts struct {
	masterSecretPath  string
	dsn               string
	logLevel          string
	allowlistRoot     string
	port              string
	reconcileInterval time.Duration
	historicalBatch   int
}

// NewRootCmd builds the quasar-collector root command.
func NewRootCmd() *cobra.Command {
	cfg := config.FromEnv()
	opts := &CollectorOpts{
		masterSecretPath:  cfg.MasterSecretPath,
		dsn:               cfg.DSN,
		logLevel:          cfg.LogLevel,
		allowlistRoot:     cfg.AllowlistRoot,
		port:              cfg.CollectorPort,
		reconcileInterval: scheduler.DefaultReconcileInterval,
		historicalBatch:   historical.DefaultBatchSize,
	}
	if cfg.ReconcileInterval != "" {
		if d, err := time.ParseDuration(cfg.ReconcileInterval); err == nil {
			opts.reconcileInterval = d
		}
	}

	rootCmd := &cobra.Command{
		Use:   "quasar-collector",
		Args:  cobra.NoArgs,
		Short: "Run the Quasar Subscription Scheduler and collectors",
		Long: `Run the Quasar Subscription Scheduler and collectors

This command reconciles the subscriptions view into a live job set and
fires the Historical and Live collectors on schedule. It also serves the
inter-service endpoints the Registry calls to validate, query, and
unload provider code.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.Run()
		},
	}

	rootCmd.Flags().StringVar(&opts.masterSecretPath, "master-secret-path", opts.masterSecretPath, "path to the process-global master secret file")
	rootCmd.Flags().StringVar(&opts.dsn, "dsn", opts.dsn, "Postgres/TimescaleDB connection string")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level: debug|info|warn|error")
	rootCmd.Flags().StringVar(&opts.allowlistRoot, "allowlist-root", opts.allowlistRoot, "directory every loadable provider file must lie under")
	rootCmd.Flags().StringVar(&opts.port, "port", opts.port, "port to serve the inter-service HTTP contract on")
	rootCmd.Flags().DurationVar(&opts.reconcileInterval, "reconcile-interval", opts.reconcileInterval, "how often the scheduler re-fetches the subscriptions view")
	rootCmd.Flags().IntVar(&opts.historicalBatch, "historical-batch-size", opts.historicalBatch, "bar buffer threshold before a mid-stream bulk insert")

	return rootCmd
}

// Run wires the collector's dependencies, starts the scheduler in the
// background, and blocks serving the inter-service HTTP contract until a
// termination signal arrives.
func (o *CollectorOpts) Run() error {
	cfg := config.Config{MasterSecretPath: o.masterSecretPath, DSN: o.dsn, SecretMode: "auto"}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(o.logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithContext(ctx, logger)

	master, err := secrets.LoadMasterContext(o.masterSecretPath)
	if err != nil {
		return fmt.Errorf("quasar-collector: %w", err)
	}

	db := database.New()
	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	defer cancelInit()
	if err := db.Init(initCtx, o.dsn); err != nil {
		return fmt.Errorf("quasar-collector: %w", err)
	}
	defer db.Close()

	loader := providerloader.New(db, master, o.allowlistRoot, logger)
	historicalCollector := historical.New(loader, db, db, logger, o.historicalBatch)
	liveCollector := live.New(loader, db, db, logger)
	sched := scheduler.New(db, loader, historicalCollector, liveCollector, logger, o.reconcileInterval, metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer))

	go sched.Run(ctx)

	mux := http.NewServeMux()
	interservice.NewServer(loader, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	listener, err := net.Listen("tcp4", fmt.Sprintf(":%s", o.port))
	if err != nil {
		return fmt.Errorf("quasar-collector: %w", err)
	}

	httpServer := &http.Server{Handler: otelhttp.NewHandler(mux, "collector")}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quasar-collector listening", "port", o.port)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("caught signal, shutting down")
	case err := <-errCh:
		return fmt.Errorf("quasar-collector: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("quasar-collector stopped")
	return nil
}
