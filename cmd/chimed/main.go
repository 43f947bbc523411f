// chimed - virtual doorbell daemon
//
// chimed keeps one MQTT broker session for a virtual doorbell: it connects
// with stored credentials, subscribes to the doorbell topic, records every
// message in a bounded history, and exposes the session over HTTP and
// WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/virtualchime/chime-core/migrations"

	"github.com/virtualchime/chime-core/internal/api"
	"github.com/virtualchime/chime-core/internal/appstate"
	"github.com/virtualchime/chime-core/internal/infrastructure/config"
	"github.com/virtualchime/chime-core/internal/infrastructure/database"
	"github.com/virtualchime/chime-core/internal/infrastructure/influxdb"
	"github.com/virtualchime/chime-core/internal/infrastructure/logging"
	"github.com/virtualchime/chime-core/internal/session"
	"github.com/virtualchime/chime-core/internal/settings"
	"github.com/virtualchime/chime-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default file paths
const (
	defaultConfigPath  = "configs/config.yaml"
	defaultEnvFilePath = ".env"
)

// options are the command-line flags.
type options struct {
	configPath  string
	envFile     string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("chimed %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command-line arguments.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("chimed", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default $CHIME_CONFIG or "+defaultConfigPath+")")
	fs.StringVar(&opts.envFile, "env-file", defaultEnvFilePath, "dotenv file loaded before CHIME_* overrides; missing is ignored")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.configPath = getConfigPath(opts.configPath)
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default(version)
	log.Info("starting chimed",
		"commit", commit,
		"build_date", date,
	)

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	model := appstate.NewModel(cfg.History.MaxEntries)

	manager, err := session.New(session.Deps{
		MQTT:   cfg.MQTT,
		Dialer: session.PahoDialer(log),
		Store:  settings.NewSQLiteStore(db.DB),
		Model:  model,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	defer func() {
		log.Info("closing broker session")
		manager.Close()
	}()

	if influxClient != nil {
		stop := telemetry.NewRecorder(influxClient, manager.Topic).Attach(model)
		defer stop()
	}

	startSession(ctx, cfg, manager, log)

	server, err := api.New(api.Deps{
		Config:         cfg.API,
		WS:             cfg.WebSocket,
		Logger:         log,
		Session:        manager,
		ConnectTimeout: cfg.GetConnectTimeout(),
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Telemetry recorder
	// 3. Broker session
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("chimed stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// An explicit flag wins, then CHIME_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("CHIME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// brokerSettings picks the session configuration to start with. Stored
// settings win over the config file when a stored host exists.
func brokerSettings(cfg config.MQTTConfig, stored session.Config) session.Config {
	if stored.Host != "" {
		return session.Config{
			Host:     stored.Host,
			Username: stored.Username,
			Password: stored.Password,
		}
	}
	return session.Config{
		Host:     cfg.Broker.Host,
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
	}
}

// startSession connects to the broker if a host is known and subscribes
// to the configured topic. Failures are logged; the daemon keeps running
// so settings can be corrected over the API.
func startSession(ctx context.Context, cfg *config.Config, manager *session.Manager, log *logging.Logger) {
	sc := brokerSettings(cfg.MQTT, session.Config{
		Host:     manager.CurrentHost(),
		Username: manager.Username(),
		Password: manager.Password(),
	})
	if sc.Host == "" {
		log.Info("no broker host configured, waiting for settings")
		return
	}

	manager.Apply(sc)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.GetConnectTimeout())
	defer cancel()
	if err := manager.ConnectWait(connectCtx); err != nil {
		log.Warn("initial broker connect failed", "host", sc.Host, "error", err)
		return
	}

	if cfg.MQTT.Topic != "" {
		manager.Subscribe(cfg.MQTT.Topic)
	}
}

// healthCheck verifies infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The broker is not checked: a daemon without a reachable broker still
	// serves the settings API.

	return nil
}
