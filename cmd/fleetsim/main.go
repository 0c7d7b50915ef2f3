// FleetSim Core - IoT Device Fleet Simulator
//
// This is the main entry point for the FleetSim Core service. It wires the
// device registry, the per-device simulation scheduler, the telemetry hub
// with its persistence sinks, and the REST/WebSocket API into one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/fleetsim/fleetsim-core/migrations"

	"github.com/fleetsim/fleetsim-core/internal/api"
	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/config"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/database"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/influxdb"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/logging"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/metrics"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/mqtt"
	"github.com/fleetsim/fleetsim-core/internal/sim"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FleetSim Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and bring the schema up to date
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry()
	m := metrics.New()

	// Connect to MQTT broker (optional). Telemetry publishing is
	// best-effort: a missing broker degrades the sink, not the fleet.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, telemetry publishing disabled", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, time-series export disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble telemetry sinks. Order is cheap-first: local store, then
	// the network exporters.
	var sinks []telemetry.Sink
	if cfg.Telemetry.PersistReadings {
		sinks = append(sinks, telemetry.NewStoreSink(repo))
	}
	if mqttClient != nil {
		sinks = append(sinks, telemetry.NewMQTTSink(mqttClient))
	}
	if influxClient != nil {
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
	}

	hub := telemetry.NewHub(telemetry.Config{
		SubscriberBuffer: cfg.Telemetry.SubscriberBuffer,
		SinkBuffer:       cfg.Telemetry.SinkBuffer,
	}, m, log, sinks...)
	go hub.Run(ctx)
	defer hub.Close()
	log.Info("telemetry hub started", "sinks", len(sinks))

	scheduler := sim.NewScheduler(registry, hub, m, log, cfg.LagThreshold())
	controller := sim.NewController(registry, scheduler, hub, repo, log, sim.ControllerConfig{
		MaxDevices:   cfg.Simulation.MaxDevices,
		HistoryLimit: cfg.Telemetry.HistoryLimit,
	})
	defer func() {
		log.Info("stopping simulation tasks")
		controller.Close()
	}()

	// Restore the fleet persisted by previous runs
	if restoreErr := controller.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring fleet: %w", restoreErr)
	}
	log.Info("fleet restored", "devices", len(controller.ListDevices()))

	// Health checks probed by /health
	checks := map[string]api.HealthChecker{
		"database": db,
	}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Controller: controller,
		Hub:        hub,
		Metrics:    m.Handler(),
		Checks:     checks,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stop accepting requests)
	// 2. Simulation tasks (stop publishing readings)
	// 3. Telemetry hub (flush and close subscribers/sinks)
	// 4. InfluxDB / MQTT (if enabled)
	// 5. Database

	log.Info("FleetSim Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETSIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
