package bootstrap

import (
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/config"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipStore     bool
	skipEvents    bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	storeInitHook func(*store.Store) error
}

// WithoutStore skips store initialization (CLI commands that only
// touch files or remote APIs)
func WithoutStore() Option {
	return func(o *options) {
		o.skipStore = true
	}
}

// WithoutEvents skips event publisher initialization
func WithoutEvents() Option {
	return func(o *options) {
		o.skipEvents = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithStoreInitHook runs a custom function after store initialization
// Useful for seeding fixtures in tests and demos
func WithStoreInitHook(hook func(*store.Store) error) Option {
	return func(o *options) {
		o.storeInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
