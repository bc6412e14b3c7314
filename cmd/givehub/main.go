// Givehub Core - authentication service for the Givehub donation platform.
//
// This is the main entry point. It serves the mobile (bearer token) and web
// (cookie session) auth APIs over one HTTP listener, backed by SQLite, with
// optional Redis sessions, MQTT notifications, InfluxDB event series and
// OTLP tracing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/givehub-core/internal/api"
	"github.com/nerrad567/givehub-core/internal/auth"
	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
	"github.com/nerrad567/givehub-core/internal/infrastructure/database"
	"github.com/nerrad567/givehub-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/givehub-core/internal/infrastructure/logging"
	"github.com/nerrad567/givehub-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/givehub-core/internal/notify"
	"github.com/nerrad567/givehub-core/internal/session"
	"github.com/nerrad567/givehub-core/internal/telemetry"
	"github.com/nerrad567/givehub-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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
	log.Info("starting Givehub Core",
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

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("error flushing traces", "error", err)
		}
	}()

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	health := map[string]api.HealthChecker{"database": db}

	// Session store
	sessions, memSessions, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rs, ok := sessions.(*session.RedisStore); ok {
		health["redis"] = rs
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := rs.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
	}

	metrics := telemetry.NewMetrics()
	sinks := auth.EventSinks{metrics}
	var notifier auth.ResetNotifier = auth.LogNotifier{Logger: log.Logger}

	// MQTT (optional): password reset delivery and auth event stream
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, log.Logger)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
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
		mqttNotifier := notify.NewMQTTNotifier(mqttClient, mqttClient.Topics(), log.Logger)
		notifier = mqttNotifier
		sinks = append(sinks, mqttNotifier)
		health["mqtt"] = mqttClient
	} else {
		log.Warn("MQTT disabled, password reset links will not be delivered")
	}

	// InfluxDB (optional): auth event time series
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, log.Logger)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	gateway, creds, resolver, err := buildGateway(cfg, db, sessions, notifier, sinks, log)
	if err != nil {
		return err
	}

	if _, seedErr := auth.SeedSystemAdmin(ctx, creds, resolver, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminName, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding system admin: %w", seedErr)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Session: cfg.Session,
		Logger:  log,
		Gateway: gateway,
		Metrics: metrics,
		Health:  health,
		Version: version,
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

	go runHousekeeping(ctx, gateway, memSessions, pruneInterval(cfg), log)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Givehub Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GIVEHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GIVEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openSessionStore opens the configured session store. The memory store is
// also returned on its own so housekeeping can sweep it.
func openSessionStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (session.Store, *session.MemoryStore, error) {
	if cfg.Session.Driver == "redis" {
		rs, err := session.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("opening session store: %w", err)
		}
		log.Info("session store: redis", "addr", cfg.Redis.Addr)
		return rs, nil, nil
	}

	log.Info("session store: memory")
	mem := session.NewMemoryStore()
	return mem, mem, nil
}

// buildGateway wires the credential store, resolver, both channel
// authenticators and password resets into an auth gateway.
func buildGateway(
	cfg *config.Config,
	db *database.DB,
	sessions session.Store,
	notifier auth.ResetNotifier,
	sinks auth.EventSinks,
	log *logging.Logger,
) (*auth.Gateway, *auth.CredentialStore, *auth.Resolver, error) {
	hasher := auth.NewHasher(auth.PasswordParams{
		Time:    cfg.Security.Password.Time,
		Memory:  cfg.Security.Password.Memory,
		Threads: cfg.Security.Password.Threads,
	})
	creds := auth.NewCredentialStore(auth.NewUserRepository(db.DB), hasher, cfg.Security.Password.MinLength)
	resolver := auth.NewResolver(auth.NewRoleRepository(db.DB))

	web := auth.NewSessionAuthenticator(creds, sessions, cfg.SessionLifetime(), log.Logger)
	mobile := auth.NewTokenAuthenticator(creds, auth.NewTokenRepository(db.DB), auth.TokenOptions{
		TTL:     cfg.TokenTTL(),
		Service: auth.NewServiceTokens(cfg.Security.ServiceTokens.Secret, cfg.Security.ServiceTokens.Issuer),
		Logger:  log.Logger,
	})

	resets := auth.NewPasswordResets(auth.NewResetTokenRepository(db.DB), auth.ResetLinkConfig{
		Mode:           auth.ResetMode(cfg.PasswordReset.Mode),
		WebURL:         cfg.PasswordReset.WebURL,
		MobileDeepLink: cfg.PasswordReset.MobileDeepLink,
		TTL:            cfg.PasswordReset.ResetLinkTTL(),
	}, notifier, log.Logger)

	gateway, err := auth.NewGateway(auth.GatewayDeps{
		Credentials: creds,
		Resolver:    resolver,
		Web:         web,
		Mobile:      mobile,
		Resets:      resets,
		Events:      sinks,
		Logger:      log.Logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating auth gateway: %w", err)
	}
	return gateway, creds, resolver, nil
}

// pruneInterval returns how often expired tokens and sessions are removed.
func pruneInterval(cfg *config.Config) time.Duration {
	if cfg.Security.Tokens.PruneInterval <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.Security.Tokens.PruneInterval) * time.Second
}

// runHousekeeping periodically deletes expired access tokens, reset tokens
// and, for the memory store, expired sessions until ctx is cancelled.
func runHousekeeping(ctx context.Context, gateway *auth.Gateway, mem *session.MemoryStore, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens, resets, err := gateway.PruneExpired(ctx)
			if err != nil {
				log.Error("pruning expired tokens", "error", err)
			} else if tokens > 0 || resets > 0 {
				log.Info("pruned expired tokens", "access_tokens", tokens, "reset_tokens", resets)
			}

			if mem != nil {
				if n, sweepErr := mem.Sweep(ctx); sweepErr != nil {
					log.Error("sweeping sessions", "error", sweepErr)
				} else if n > 0 {
					log.Debug("swept expired sessions", "sessions", n)
				}
			}
		}
	}
}
