// AC Bridge - MQTT to WebSocket bridge for multi-brand air conditioners
//
// The bridge keeps a registry of AC devices announced by field agents over
// MQTT, relays their data and status to dashboard WebSocket clients, and
// forwards dashboard commands back to the agents.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/ac-bridge/migrations"

	"github.com/nerrad567/ac-bridge/internal/api"
	"github.com/nerrad567/ac-bridge/internal/bridge"
	"github.com/nerrad567/ac-bridge/internal/device"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/database"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor ACBRIDGE_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// historyQueueSize bounds lifecycle events waiting for SQLite.
	historyQueueSize = 512

	// historyRetention is how long lifecycle events are kept.
	historyRetention = 30 * 24 * time.Hour
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the acbridge command tree. Running the root command
// without a subcommand serves, like `acbridge serve`.
func newRootCmd() *cobra.Command {
	var configFlag string

	serve := func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, getConfigPath(configFlag))
	}

	root := &cobra.Command{
		Use:           "acbridge",
		Short:         "MQTT to WebSocket bridge for AC devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"config file (default $ACBRIDGE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "acbridge %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}

// getConfigPath returns the configuration file path: the flag if given,
// then ACBRIDGE_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("ACBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run wires the bridge and blocks until ctx is cancelled or a component
// fails. Deferred closes run in reverse order once every goroutine is done.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting AC bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"namespace", cfg.Bridge.Namespace,
		"inactivity_timeout", cfg.GetInactivityTimeout(),
	)

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	m.SetMQTTConnected(true)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topics := mqtt.NewTopics(cfg.Bridge.Namespace)
	bus := bridge.NewBusSession(mqttClient, topics, byte(cfg.MQTT.QoS), byte(cfg.Bridge.CommandQoS))
	bus.SetLogger(log)
	bus.SetMetrics(m)

	registry := device.NewRegistry()
	registry.SetLogger(log)

	router := bridge.NewRouter(registry, bridge.NewRoster(), bus, topics)
	router.SetLogger(log)
	router.SetMetrics(m)

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Router:   router,
		Bus:      bus,
		Gatherer: promRegistry,
		Version:  version,
	}

	// Lifecycle history (optional)
	var (
		db            *database.DB
		historyWriter *device.HistoryWriter
	)
	if cfg.Database.Enabled {
		db, err = openHistory(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		repo := device.NewSQLiteHistoryRepository(db.DB)
		if pruned, pruneErr := repo.PruneHistory(ctx, historyRetention); pruneErr != nil {
			log.Warn("pruning device history failed", "error", pruneErr)
		} else if pruned > 0 {
			log.Info("pruned device history", "removed", pruned)
		}

		historyWriter = device.NewHistoryWriter(repo, historyQueueSize)
		historyWriter.SetLogger(log)
		router.SetHistory(historyWriter)
		deps.History = repo
		deps.DBStats = func() api.DatabaseMetrics {
			s := db.Stats()
			return api.DatabaseMetrics{
				OpenConnections: s.OpenConnections,
				InUse:           s.InUse,
				Idle:            s.Idle,
				WaitCount:       s.WaitCount,
			}
		}
	} else {
		log.Info("device history disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		router.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		m.SetMQTTConnected(true)
		bus.Resync()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		m.SetMQTTConnected(false)
	})

	// Without the data subscription there is nothing to bridge.
	if err := bus.Start(func(msg bridge.BusMessage) { router.Dispatch(msg) }); err != nil {
		return fmt.Errorf("starting bus session: %w", err)
	}

	sweeper := device.NewSweeper(registry, cfg.GetSweepInterval(), cfg.GetInactivityTimeout(), router.OnEvict)
	sweeper.SetLogger(log)

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-bus.Fatal():
			log.Error("data subscription lost, shutting down", "error", err)
			return err
		}
	})
	if historyWriter != nil {
		g.Go(func() error {
			return historyWriter.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	err = g.Wait()
	log.Info("AC bridge stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openHistory opens the history database and applies migrations.
func openHistory(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Path)
	return db, nil
}

// healthCheck verifies the infrastructure connections. db and influxClient
// may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
