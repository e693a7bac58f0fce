package main

import (
	"context"
	"fmt"
	"os"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/app"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/bootstrap"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, store, events, telemetry)
	components, err := bootstrap.Setup(ctx, app.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap missions hub: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := app.New(serviceContainer)

	srv := server.New(app.ServiceName, components.Config.Addr(), e, components.Logger)
	if err := srv.Start(ctx); err != nil {
		components.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
