package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/handlers"
)

// RegisterSignalRoutes registers the signal review pipeline routes
func RegisterSignalRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSignalHandler(c)

	signals := e.Group("/api/signals")
	{
		signals.POST("", h.CreateSignal)                       // POST /api/signals
		signals.GET("", h.ListSignals)                         // GET /api/signals
		signals.POST("/:id/transition", h.TransitionSignal)    // POST /api/signals/:id/transition
		signals.POST("/import/dangerous", h.ImportDangerous)   // POST /api/signals/import/dangerous
	}
}
