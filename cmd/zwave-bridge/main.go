// Z-Wave Bridge - Z-Wave JS Server integration for MQTT hosts.
//
// The bridge maintains supervised websocket sessions to one or more
// Z-Wave JS Server instances, reconciles device events into normalised
// light and cover entities, and exchanges state and commands with a
// home-automation host over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/greyfold/zwave-bridge/internal/bridge"
	"github.com/greyfold/zwave-bridge/internal/controller"
	"github.com/greyfold/zwave-bridge/internal/discovery"
	"github.com/greyfold/zwave-bridge/internal/hub"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/config"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/database"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/influxdb"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/logging"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/mqtt"
	"github.com/greyfold/zwave-bridge/internal/zwavejs"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when ZWB_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Z-Wave bridge",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and apply migrations
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Load controller registry
	repo := controller.NewSQLiteRepository(db.DB)
	controllers, err := resolveControllers(ctx, cfg, repo, log)
	if err != nil {
		return err
	}

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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional state history)
	var recorder *influxdb.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		recorder = influxdb.NewRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Host channel glue
	hostBridge, err := bridge.New(bridge.Options{
		MQTTClient: mqttClient,
		QoS:        byte(cfg.MQTT.QoS),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating host bridge: %w", err)
	}

	// One hub per enabled controller
	hubs := make([]*hub.Hub, 0, len(controllers))
	connected := 0
	for _, c := range controllers {
		ctrlLog := log.With("controller", c.ID)

		session := zwavejs.NewClient(zwavejs.Config{
			URL:            c.Address,
			CommandTimeout: cfg.GetCommandTimeout(),
		})
		session.SetLogger(ctrlLog)

		h, hubErr := hub.New(hub.Options{
			ControllerID:      c.ID,
			Session:           session,
			Sink:              hub.MultiSink{hostBridge, recorder},
			Logger:            ctrlLog,
			WatchdogInterval:  cfg.GetWatchdogInterval(),
			ReconnectAttempts: cfg.Supervisor.ReconnectAttempts,
			ReconnectDelay:    cfg.GetReconnectDelay(),
			CommandTimeout:    cfg.GetCommandTimeout(),
		})
		if hubErr != nil {
			return fmt.Errorf("creating hub for %q: %w", c.ID, hubErr)
		}

		hostBridge.RegisterHub(c.ID, h)

		if connectErr := h.Connect(ctx); connectErr != nil {
			// The watchdog only runs on an established session, so a
			// controller that fails its first connect stays down until
			// the bridge restarts. Surface that loudly.
			ctrlLog.Error("controller failed to connect", "address", c.Address, "error", connectErr)
			continue
		}
		ctrlLog.Info("controller connected", "address", c.Address)

		hubs = append(hubs, h)
		connected++
	}
	if connected == 0 {
		return errors.New("no controllers could be connected")
	}

	// Inbound commands
	if err := hostBridge.Start(); err != nil {
		return fmt.Errorf("starting host bridge: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"controllers", connected,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	for _, h := range hubs {
		m := h.Metrics()
		h.Disconnect()
		log.Info("hub stopped",
			"events_received", m.EventsReceived,
			"events_reconciled", m.EventsReconciled,
			"events_dropped", m.EventsDropped,
			"commands", m.CommandsDispatched,
			"reconnects", m.Reconnects,
		)
	}

	stats := hostBridge.GetStats()
	log.Info("host bridge stopped",
		"commands_received", stats.CommandsReceived,
		"commands_rejected", stats.CommandsRejected,
		"publish_failures", stats.PublishFailures,
	)

	log.Info("Z-Wave bridge stopped")
	return nil
}

// resolveControllers loads the enabled controllers and fills empty
// addresses from mDNS discovery. With no controllers configured at all,
// discovery bootstraps a record for the first server found.
func resolveControllers(ctx context.Context, cfg *config.Config, repo controller.Repository, log *logging.Logger) ([]controller.Config, error) {
	controllers, err := repo.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading controllers: %w", err)
	}

	if len(controllers) == 0 {
		if !cfg.Discovery.Enabled {
			return nil, errors.New("no enabled controllers configured and discovery is disabled")
		}

		seeded, seedErr := bootstrapController(ctx, cfg, repo, log)
		if seedErr != nil {
			return nil, seedErr
		}
		return []controller.Config{*seeded}, nil
	}

	needsDiscovery := false
	for _, c := range controllers {
		if c.Address == "" {
			needsDiscovery = true
			break
		}
	}
	if !needsDiscovery {
		return controllers, nil
	}

	server, err := discoverServer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	for i := range controllers {
		if controllers[i].Address == "" {
			log.Info("using discovered address",
				"controller", controllers[i].ID,
				"address", server.URL(),
			)
			controllers[i].Address = server.URL()
		}
	}
	return controllers, nil
}

// bootstrapController discovers a server and persists a controller
// record for it, so subsequent starts skip discovery.
func bootstrapController(ctx context.Context, cfg *config.Config, repo controller.Repository, log *logging.Logger) (*controller.Config, error) {
	server, err := discoverServer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	name := server.InstanceName
	if name == "" {
		name = "Z-Wave JS Server"
	}

	seed := &controller.Config{
		ID:      "zwave-main",
		Name:    name,
		Address: server.URL(),
		Enabled: true,
	}
	if err := repo.Create(ctx, seed); err != nil {
		return nil, fmt.Errorf("seeding discovered controller: %w", err)
	}

	log.Info("bootstrapped controller from discovery",
		"controller", seed.ID,
		"address", seed.Address,
	)
	return seed, nil
}

func discoverServer(ctx context.Context, cfg *config.Config, log *logging.Logger) (*discovery.Server, error) {
	if !cfg.Discovery.Enabled {
		return nil, errors.New("controller has no address and discovery is disabled")
	}

	browser, err := discovery.NewBrowser(discovery.Config{
		BrowseTimeout: cfg.GetDiscoveryTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating discovery browser: %w", err)
	}

	log.Info("browsing for Z-Wave JS Server", "timeout", cfg.GetDiscoveryTimeout())
	server, err := browser.DiscoverFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering server: %w", err)
	}
	return server, nil
}

// getConfigPath returns the configuration file path. Uses the
// ZWB_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("ZWB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
