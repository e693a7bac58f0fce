package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/handlers"
)

// RegisterWorkflowRoutes registers the run trigger and artifact routes.
// These live outside the /api prefix for compatibility with the
// workflow tooling that calls them.
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	artifacts := handlers.NewArtifactHandler(c)
	runs := handlers.NewRunHandler(c)

	wf := e.Group("/missions/:id")
	{
		wf.GET("/artifacts", artifacts.ListArtifacts)  // GET /missions/:id/artifacts
		wf.POST("/artifacts", artifacts.CreateArtifact) // POST /missions/:id/artifacts
		wf.POST("/run", runs.RunMission)                // POST /missions/:id/run
	}
}
