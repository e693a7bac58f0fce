package bootstrap

import (
	"context"
	"fmt"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/config"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/migrate"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store/memory"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store/postgres"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for the hub and the CLI
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize store (if not skipped)
	if !options.skipStore {
		switch components.Config.Database.Backend {
		case "memory":
			components.Store = memory.New()

		case "postgres":
			components.Logger.Info("connecting to database")
			components.DB, err = db.New(ctx, components.Config, components.Logger)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			components.addCleanup(func() error {
				components.DB.Close()
				return nil
			})

			if err := migrate.Up(ctx, components.DB, components.Logger); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			components.Store = postgres.New(components.DB)

		default:
			return nil, fmt.Errorf("unknown db backend: %s", components.Config.Database.Backend)
		}

		// Run store init hook if provided (seeding, fixtures)
		if options.storeInitHook != nil {
			if err := options.storeInitHook(components.Store); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("store init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize event publisher (if not skipped)
	if !options.skipEvents {
		components.Logger.Info("initializing event publisher",
			"backend", components.Config.Events.Backend,
		)

		switch components.Config.Events.Backend {
		case "memory":
			components.Events = events.NewMemoryPublisher(components.Logger)
		case "redis":
			components.Events, err = events.NewRedisPublisher(ctx, components.Config.Events.RedisURL, components.Logger)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to connect event publisher: %w", err)
			}
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown events backend: %s", components.Config.Events.Backend)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing event publisher")
			return components.Events.Close()
		})
	}

	// 5. Initialize telemetry (if not skipped)
	if !options.skipTelemetry && (components.Config.Telemetry.EnableMetrics || components.Config.Telemetry.EnablePprof) {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Config.Telemetry.MetricsPort,
			components.Config.Telemetry.EnablePprof,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			// telemetry never blocks startup
			components.Logger.Warn("failed to start telemetry", "error", err)
		} else {
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"store", components.Store != nil,
		"events", components.Events != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
