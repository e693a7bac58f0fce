package bootstrap

import (
	"context"
	"fmt"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/config"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/telemetry"
)

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Store     *store.Store
	Events    events.Publisher
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Metrics returns the domain metrics handle; nil when telemetry is
// disabled, which every instrumented call site tolerates
func (c *Components) Metrics() *telemetry.Metrics {
	if c.Telemetry == nil {
		return nil
	}
	return c.Telemetry.Metrics()
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	// Memory store and memory publisher are always healthy; only the
	// database has a liveness probe
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
