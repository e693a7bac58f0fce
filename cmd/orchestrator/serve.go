package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/app"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/bootstrap"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/clients"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/config"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the missions hub API server",
	Long: `Start the missions hub API in-process and block until interrupted.

Once the listener is up the command probes /health and records the
outcome under cli_runs/.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Port to bind")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	runID := strconv.FormatInt(time.Now().UnixMilli(), 10)
	fmt.Fprintf(out, "serve_start host=%s port=%d run_id=%s\n", serveHost, servePort, runID)

	cfg, err := config.Load(app.ServiceName)
	if err != nil {
		return exitf(exitMisuse, "failed to load config: %v", err)
	}
	cfg.Service.Host = serveHost
	cfg.Service.Port = servePort

	log := logger.NewWithWriter(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat)
	components, err := bootstrap.Setup(ctx, app.ServiceName,
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to bootstrap hub: %w", err)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		return fmt.Errorf("failed to initialize service container: %w", err)
	}

	e := app.New(serviceContainer)
	srv := server.New(app.ServiceName, cfg.Addr(), e, components.Logger)

	probeDone := make(chan struct{})
	go func() {
		defer close(probeDone)
		probeHealth(out, cfg, runID)
	}()

	err = srv.Start(ctx)
	<-probeDone
	return err
}

// probeHealth waits for the listener to come up, hits /health once and
// records the outcome next to the CLI run logs.
func probeHealth(out io.Writer, cfg *config.Config, runID string) {
	base := fmt.Sprintf("http://%s:%d", cfg.Service.Host, cfg.Service.Port)
	log := logger.NewWithWriter(os.Stderr, "error", cfg.Service.LogFormat)
	hub := clients.NewHubClient(base, 2*time.Second, log)

	status := 0
	var lastErr error
	for attempt := 0; attempt < 20; attempt++ {
		time.Sleep(100 * time.Millisecond)
		s, err := hub.Health(context.Background())
		if err == nil {
			status, lastErr = s, nil
			break
		}
		lastErr = err
	}

	statusText := "NG"
	if lastErr == nil && status != 0 {
		statusText = strconv.Itoa(status)
	} else {
		fmt.Fprintf(out, "health_check_error run_id=%s\n", runID)
	}

	fmt.Fprintf(out, "health_check run_id=%s status=%s\n", runID, statusText)
	if path, err := writeCLILog(runID+"_health.log", fmt.Sprintf("run_id=%s status=%s", runID, statusText)); err == nil {
		fmt.Fprintf(out, "health_log=%s\n", path)
	}
}
