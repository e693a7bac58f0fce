// Package main implements the orchestrator CLI. It serves the missions
// hub, calls hub endpoints, runs multi-role agent workflows with
// per-role trace logs, attaches to live chat sessions and watches
// dangerous-command logs for signal-worthy rows.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/audit"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/config"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/evidence"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/supervisor"
)

// Process exit codes. CI wrappers branch on these, so the mapping is
// part of the CLI contract.
const (
	exitOK          = 0
	exitFailure     = 1   // operation failed: HTTP >= 400, role failure
	exitMisuse      = 2   // bad flags or unusable config
	exitTimeout     = 124 // an agent exceeded its wall-clock budget
	exitBlocked     = 126 // reserved: a guardrail refused the operation
	exitInterrupted = 130 // terminated by SIGINT/SIGTERM
)

// cliRunsDir holds the health and call logs the CLI writes relative to
// the working directory.
const cliRunsDir = "cli_runs"

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Fleet orchestrator for coding agents",
	Long: `orchestrator drives missions-hub workflows from the command line.

It can serve the hub API, call any hub endpoint, spawn multi-role agent
runs, attach to a live chat session and watch dangerous-command logs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitf(exitMisuse, "%v", err)
	})
}

// streamRegistry tracks live chat sessions so `attach` can reach a
// session started by `run --chat-mode` in the same process. Tests swap
// in a fresh registry.
var streamRegistry = supervisor.NewRegistry()

// exitError carries a process exit code through RunE. An empty message
// exits silently with the code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Execute runs the root command and maps the returned error onto the
// exit-code contract above.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	code := exitFailure
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// cliEnv bundles what every subcommand needs: resolved configuration,
// a stderr logger and the evidence emitter.
type cliEnv struct {
	cfg      *config.Config
	log      *logger.Logger
	evidence *evidence.Emitter
}

func newCLIEnv() (*cliEnv, error) {
	cfg, err := config.Load("orchestrator")
	if err != nil {
		return nil, exitf(exitMisuse, "failed to load config: %v", err)
	}
	return &cliEnv{
		cfg:      cfg,
		log:      logger.NewWithWriter(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat),
		evidence: evidence.New(cfg.Paths.EvidencePath),
	}, nil
}

// auditChain opens the shared shadow-audit chain, signed when a key is
// configured. The hub appends to the same chain from its side.
func (e *cliEnv) auditChain() *audit.Chain {
	if e.cfg.Paths.SigningKey != "" {
		return audit.NewSignedChain(e.cfg.Paths.AuditDir, audit.NewSigner(e.cfg.Paths.SigningKey))
	}
	return audit.NewChain(e.cfg.Paths.AuditDir)
}

// writeCLILog writes a single-line log under cli_runs/ and returns its
// relative path.
func writeCLILog(name, line string) (string, error) {
	if err := os.MkdirAll(cliRunsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", cliRunsDir, err)
	}
	path := filepath.Join(cliRunsDir, name)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
