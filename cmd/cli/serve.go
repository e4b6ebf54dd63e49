package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyberdash/reconengine/internal/api"
	"github.com/cyberdash/reconengine/internal/config"
	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
	"github.com/cyberdash/reconengine/internal/schedule"
)

// Server command flags.
var (
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan engine over HTTP",
	Long: `Start the reconengine HTTP API in the foreground. The server exposes scan
and liveness endpoints, the reference port table, health and Prometheus
metrics. When database.enabled is set, finished scans are stored and the
history endpoints become available. Jobs listed under schedules run as
recurring full scans for as long as the server is up.

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  reconengine serve
  reconengine serve --host 0.0.0.0 --port 9090
  RECONENGINE_DATABASE_ENABLED=true reconengine serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (overrides api.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides api.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.Default()

	cfg, err := setupServerConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), 0)
	defer cancel()

	var pm *metrics.PrometheusMetrics
	if cfg.Metrics.Enabled {
		pm = metrics.NewPrometheusMetrics()
	}

	engine, err := newEngine(cfg, pm)
	if err != nil {
		return err
	}

	store, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Error("Failed to close database connection", "error", closeErr)
			}
		}()
	}

	var opts []api.Option
	scheduler, err := setupScheduler(cfg, engine, store, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
			defer stopCancel()
			scheduler.Stop(stopCtx)
		}()
		opts = append(opts, api.WithSchedules(scheduler))
	}

	server, err := api.New(cfg, engine, store, pm, logger, getVersion(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	return server.Start(ctx)
}

// setupScheduler starts the configured recurring scans. It returns nil when
// none are configured.
func setupScheduler(
	cfg *config.Config, scanner schedule.Scanner, store *db.Store, logger *logging.Logger,
) (*schedule.Scheduler, error) {
	if len(cfg.Schedules) == 0 {
		return nil, nil
	}

	var saver schedule.ReportSaver
	if store != nil {
		saver = store
	} else {
		logger.Warn("Report history disabled, scheduled scan reports will only be logged")
	}

	scheduler := schedule.New(scanner, saver, cfg.API.ScanTimeout, logger)
	for _, job := range cfg.Schedules {
		if err := scheduler.Add(job); err != nil {
			return nil, fmt.Errorf("failed to schedule %q: %w", job.Name, err)
		}
	}
	if err := scheduler.Start(); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// setupServerConfig loads the configuration and applies flag overrides.
func setupServerConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setupStore opens the report history when it is enabled. A nil store means
// history is off.
func setupStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*db.Store, error) {
	if !cfg.Database.Enabled {
		logger.Info("Report history disabled")
		return nil, nil
	}

	logger.Info("Connecting to database...")
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	logger.Info("Report history enabled")
	return store, nil
}
