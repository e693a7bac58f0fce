package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/handlers"
)

// RegisterMissionRoutes registers mission CRUD and authoring routes
func RegisterMissionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewMissionHandler(c)

	missions := e.Group("/api/missions")
	{
		missions.GET("", h.ListMissions)              // GET /api/missions
		missions.POST("", h.CreateMission)            // POST /api/missions
		missions.GET("/:id", h.GetMission)            // GET /api/missions/:id
		missions.PATCH("/:id/context", h.PatchContext) // PATCH /api/missions/:id/context
		missions.POST("/:id/groups", h.CreateGroup)   // POST /api/missions/:id/groups
		missions.POST("/:id/tasks", h.CreateTask)     // POST /api/missions/:id/tasks
	}
}
