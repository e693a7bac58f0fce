package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/audit"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/bus"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/clients"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/engines"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/safeops"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/supervisor"
)

var (
	runRoles            string
	runEngine           string
	runMission          string
	runTimeout          time.Duration
	runTraceDir         string
	runParallel         bool
	runMaxWorkers       int
	runWorkflowEndpoint string
	runChatMode         bool
	runBusDir           string
	runRoleConfig       string
	runSignalsProject   string
	runSignalsBaseURL   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run agent CLIs for a set of roles under one run id",
	Long: `Spawn one agent CLI per role, each with its own trace log under
<trace-dir>/<run_id>. Roles run sequentially unless --parallel is set;
--chat-mode instead starts a single interactive stream session that
"attach" can reach.

The run writes plan.json up front, hands each role's outcome to the
role message bus, reports the finished run to the hub and the signals
API, and finalizes the trace with test_report.json and audit.json.

Exits 1 when a role fails, 124 when a role exceeds its time budget and
130 when interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRoles, "roles", "planner,coder,tester", "Comma-separated roles to start")
	runCmd.Flags().StringVar(&runEngine, "engine", "codex", "Engine name from the engines catalog")
	runCmd.Flags().StringVar(&runMission, "mission", "", "Mission UUID (generated when omitted)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-role time budget (default AGENT_TIMEOUT)")
	runCmd.Flags().StringVar(&runTraceDir, "trace-dir", "", "Trace log directory (default CLI_TRACE_DIR)")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "Run the roles concurrently")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Parallel worker cap (default one per role)")
	runCmd.Flags().StringVar(&runWorkflowEndpoint, "workflow-endpoint", "", "Hub endpoint to notify on success, e.g. /missions/{id}/run")
	runCmd.Flags().BoolVar(&runChatMode, "chat-mode", false, "Start a single-role interactive stream session")
	runCmd.Flags().StringVar(&runBusDir, "message-bus-path", "", "Role message bus directory (default MESSAGE_BUS_DIR)")
	runCmd.Flags().StringVar(&runRoleConfig, "role-config", "", "Role profile file (default ROLES_CONFIG)")
	runCmd.Flags().StringVar(&runSignalsProject, "signals-project-id", "", "Project for signal posts (no posts when omitted)")
	runCmd.Flags().StringVar(&runSignalsBaseURL, "signals-base-url", "", "Signals API base URL (default MISSIONS_HUB_SIGNALS_BASE)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	roles := splitRoles(runRoles)
	if len(roles) == 0 {
		return exitf(exitMisuse, "roles is empty")
	}
	if runChatMode && len(roles) != 1 {
		return exitf(exitMisuse, "chat-mode runs exactly one role")
	}
	if runChatMode && runParallel {
		return exitf(exitMisuse, "chat-mode cannot run in parallel")
	}

	missionID := uuid.New()
	if runMission != "" {
		var err error
		missionID, err = uuid.Parse(runMission)
		if err != nil {
			return exitf(exitMisuse, "mission is not a UUID: %s", runMission)
		}
	}
	runID := uuid.New()
	ctx = clients.WithMissionID(ctx, missionID.String())
	ctx = clients.WithRunID(ctx, runID.String())

	env, err := newCLIEnv()
	if err != nil {
		return err
	}

	enginesPath := env.cfg.Paths.EnginesPath
	catalog, err := engines.Load(enginesPath)
	if err != nil {
		return exitf(exitMisuse, "%v", err)
	}
	eng, err := catalog.Resolve(runEngine)
	if err != nil {
		return exitf(exitMisuse, "%v", err)
	}

	traceDir := runTraceDir
	if traceDir == "" {
		traceDir = env.cfg.Paths.CLITraceDir
	}
	busDir := runBusDir
	if busDir == "" {
		busDir = env.cfg.Paths.MessageBusDir
	}
	roleConfig := runRoleConfig
	if roleConfig == "" {
		roleConfig = env.cfg.Paths.RolesPath
	}
	timeout := runTimeout
	if timeout <= 0 {
		timeout = env.cfg.Workflow.DefaultTimeout
	}

	profiles, err := engines.LoadRoleProfiles(roleConfig)
	if err != nil {
		env.log.Warn("role profiles unreadable, running without them", "path", roleConfig, "error", err)
		profiles = map[string]engines.RoleProfile{}
	}

	w := &workflowRun{
		env:        env,
		out:        cmd.OutOrStdout(),
		errOut:     cmd.ErrOrStderr(),
		missionID:  missionID,
		runID:      runID,
		roles:      roles,
		engine:     eng,
		engineName: runEngine,
		profiles:   profiles,
		traceDir:   traceDir,
		timeout:    timeout,
		chain:      env.auditChain(),
		bus:        bus.New(busDir),
		sup:        supervisor.New(env.log, streamRegistry),
	}

	if err := w.writePlan(); err != nil {
		return err
	}
	w.emitAudit(audit.EventPlan, "pending")

	if !safeops.ShouldAutoApprove("orchestrator_run", missionID.String(), env.cfg.SafeOps.AutomationLevel) {
		w.postDangerousSignal(ctx)
	}

	if runChatMode {
		return w.runChat(ctx)
	}
	if runParallel {
		return w.runParallel(ctx)
	}
	return w.runSequential(ctx)
}

func splitRoles(raw string) []string {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// workflowRun carries one `orchestrator run` invocation through plan,
// spawn, handoff and finalize.
type workflowRun struct {
	env        *cliEnv
	out        io.Writer
	errOut     io.Writer
	missionID  uuid.UUID
	runID      uuid.UUID
	roles      []string
	engine     engines.Engine
	engineName string
	profiles   map[string]engines.RoleProfile
	traceDir   string
	timeout    time.Duration
	chain      *audit.Chain
	bus        *bus.Bus
	sup        *supervisor.Supervisor
}

func (w *workflowRun) traceRoot() string {
	return filepath.Join(w.traceDir, w.runID.String())
}

// writePlan records plan.json under the trace root before any agent
// starts, so a crashed run still leaves its intent behind.
func (w *workflowRun) writePlan() error {
	if err := os.MkdirAll(w.traceRoot(), 0o755); err != nil {
		return fmt.Errorf("failed to create trace dir %s: %w", w.traceRoot(), err)
	}
	return w.writeTraceFile("plan.json", "pending")
}

func (w *workflowRun) writeTraceFile(name, status string) error {
	payload := document.Doc{
		"mission_id": w.missionID.String(),
		"run_id":     w.runID.String(),
		"roles":      w.roles,
		"status":     status,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(w.traceRoot(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// emitAudit appends one lifecycle record to the shadow audit chain.
// Append failures never abort a run.
func (w *workflowRun) emitAudit(event, status string) {
	record := audit.NewRecord("WORK", event)
	record.RuleIDs = []string{"WORK_rules"}
	record.PolicyRefs = []string{"project_rules"}
	record.ReasoningDigest = audit.Digest(fmt.Sprintf("orchestrator run %s status=%s", strings.ToLower(event), status))
	record.InputsHash = audit.Digest(w.missionID.String())
	record.OutputsHash = audit.Digest(w.runID.String())
	record.Metadata = document.Doc{
		"mission_id": w.missionID.String(),
		"run_id":     w.runID.String(),
		"roles":      w.roles,
		"status":     status,
	}
	if _, err := w.chain.Append(record); err != nil {
		w.env.log.Warn("failed to append audit record", "event", event, "error", err)
	}
}

// handoff appends the role outcome to the role's mailbox. status is
// completed or failed.
func (w *workflowRun) handoff(role, status string) {
	if _, err := w.bus.Send(role, bus.Message{
		"mission_id": w.missionID.String(),
		"run_id":     w.runID.String(),
		"role":       role,
		"status":     status,
	}); err != nil {
		w.env.log.Warn("failed to record handoff", "role", role, "error", err)
	}
}

// finalize writes test_report.json and audit.json and stamps TEST,
// PATCH and APPLY audit events with the final status.
func (w *workflowRun) finalize(status string) {
	for _, name := range []string{"test_report.json", "audit.json"} {
		if err := w.writeTraceFile(name, status); err != nil {
			w.env.log.Warn("failed to write trace report", "file", name, "error", err)
		}
	}
	for _, event := range []string{audit.EventTest, audit.EventPatch, audit.EventApply} {
		w.emitAudit(event, status)
	}
}

// spawnRole runs one role's agent CLI to completion.
func (w *workflowRun) spawnRole(ctx context.Context, idx int, role string) (*supervisor.BatchResult, error) {
	argv, workdir := w.engine.ForRole(role, w.profiles[role])
	i := idx
	return w.sup.SpawnBatch(ctx, supervisor.Spec{
		Command:      argv,
		MissionID:    w.missionID.String(),
		RunID:        w.runID.String(),
		TraceDir:     w.traceDir,
		Timeout:      w.timeout,
		CommandIndex: &i,
		Role:         role,
		Workdir:      workdir,
	})
}

func (w *workflowRun) runSequential(ctx context.Context) error {
	for idx, role := range w.roles {
		result, err := w.spawnRole(ctx, idx, role)
		if err != nil {
			w.handoff(role, "failed")
			w.finalize("failed")
			return exitf(exitFailure, "failed to spawn %s agent: %v", role, err)
		}
		if result.Failed() {
			w.handoff(role, "failed")
			return w.failRun(ctx, role, result)
		}
		w.handoff(role, "completed")
	}
	return w.completeRun(ctx)
}

// runParallel fans the roles out over a bounded worker pool. Unlike
// the sequential path, every role runs to completion before the run is
// judged, so the bus holds one handoff per role either way.
func (w *workflowRun) runParallel(ctx context.Context) error {
	workers := runMaxWorkers
	if workers <= 0 || workers > len(w.roles) {
		workers = len(w.roles)
	}

	type outcome struct {
		role   string
		result *supervisor.BatchResult
		err    error
	}

	sem := make(chan struct{}, workers)
	outcomes := make(chan outcome, len(w.roles))
	var wg sync.WaitGroup
	for idx, role := range w.roles {
		wg.Add(1)
		go func(idx int, role string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			result, err := w.spawnRole(ctx, idx, role)
			outcomes <- outcome{role: role, result: result, err: err}
		}(idx, role)
	}
	wg.Wait()
	close(outcomes)

	var failed []string
	timedOut := false
	for o := range outcomes {
		if o.err != nil || o.result.Failed() {
			w.handoff(o.role, "failed")
			failed = append(failed, o.role)
			timedOut = timedOut || (o.result != nil && o.result.TimedOut)
			continue
		}
		w.handoff(o.role, "completed")
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		w.finalize("failed")
		if ctx.Err() != nil {
			return exitf(exitInterrupted, "interrupted while running %s", strings.Join(failed, ","))
		}
		if timedOut {
			return exitf(exitTimeout, "roles timed out: %s", strings.Join(failed, ","))
		}
		return exitf(exitFailure, "roles failed: %s", strings.Join(failed, ","))
	}
	return w.completeRun(ctx)
}

// failRun finalizes a failed run and picks the exit code: interrupted
// beats timeout beats plain failure.
func (w *workflowRun) failRun(ctx context.Context, role string, result *supervisor.BatchResult) error {
	w.finalize("failed")
	if ctx.Err() != nil {
		return exitf(exitInterrupted, "interrupted while running %s", role)
	}
	if result.TimedOut {
		return exitf(exitTimeout, "role %s timed out after %s", role, w.timeout)
	}
	return exitf(exitFailure, "role %s failed with exit code %d", role, result.ExitCode)
}

// completeRun reports the successful run to the hub and the signals
// API and finalizes the trace.
func (w *workflowRun) completeRun(ctx context.Context) error {
	w.notifyWorkflow(ctx)
	w.postRunSignal(ctx)
	w.finalize("ok")
	return nil
}

// notifyWorkflow hands the finished run to the hub's workflow endpoint
// when one was requested. Best-effort.
func (w *workflowRun) notifyWorkflow(ctx context.Context) {
	if runWorkflowEndpoint == "" {
		return
	}
	hub := clients.NewHubClient(w.env.cfg.Clients.APIBase, 5*time.Second, w.env.log)
	if err := hub.NotifyWorkflow(ctx, runWorkflowEndpoint, w.missionID.String(), w.runID.String(), w.roles); err != nil {
		w.env.log.Warn("workflow endpoint notification failed", "endpoint", runWorkflowEndpoint, "error", err)
	}
}

// signalsClient is nil when no signals project is configured; posting
// is opt-in.
func (w *workflowRun) signalsClient() *clients.SignalsClient {
	if runSignalsProject == "" {
		return nil
	}
	base := runSignalsBaseURL
	if base == "" {
		base = w.env.cfg.Clients.SignalsBase
	}
	return clients.NewSignalsClient(base, 5*time.Second, w.env.log)
}

// postDangerousSignal records that the run went out without automatic
// approval. A dead signals API never blocks the run.
func (w *workflowRun) postDangerousSignal(ctx context.Context) {
	sc := w.signalsClient()
	if sc == nil {
		return
	}
	_, err := sc.PostSignal(ctx, clients.SignalPayload{
		ProjectID: runSignalsProject,
		MissionID: dashless(w.missionID),
		Type:      "dangerous_command",
		Severity:  "warning",
		Status:    "pending",
		Message: fmt.Sprintf("run_id=%s mission_id=%s roles=%s detail=orchestrator run awaiting manual approval",
			w.runID, w.missionID, strings.Join(w.roles, ",")),
	})
	if err != nil {
		w.env.log.Debug("dangerous-command signal not posted", "error", err)
	}
}

// postRunSignal reports the finished run to the signals API and echoes
// the outcome.
func (w *workflowRun) postRunSignal(ctx context.Context) {
	sc := w.signalsClient()
	if sc == nil {
		return
	}
	id, err := sc.PostSignal(ctx, clients.SignalPayload{
		ProjectID: runSignalsProject,
		MissionID: dashless(w.missionID),
		Type:      "orchestrator_run",
		Severity:  "info",
		Status:    "pending",
		Message:   fmt.Sprintf("run_id=%s mission_id=%s roles=%s", w.runID, w.missionID, strings.Join(w.roles, ",")),
	})
	if err != nil {
		fmt.Fprintf(w.errOut, "signals_post_failed %v\n", err)
		return
	}
	fmt.Fprintf(w.out, "signals_posted id=%s status=pending\n", id)
}

// runChat drives the single-role stream session: spawn, wait out the
// budget, hand off, record evidence and finalize.
func (w *workflowRun) runChat(ctx context.Context) error {
	role := w.roles[0]
	argv, workdir := w.engine.ForRole(role, w.profiles[role])
	zero := 0
	session, err := w.sup.SpawnStream(ctx, supervisor.Spec{
		Command:      argv,
		MissionID:    w.missionID.String(),
		RunID:        w.runID.String(),
		TraceDir:     w.traceDir,
		Timeout:      w.timeout,
		CommandIndex: &zero,
		Role:         role,
		Workdir:      workdir,
		Register:     true,
	})
	if err != nil {
		w.finalize("failed")
		return exitf(exitFailure, "failed to start chat session: %v", err)
	}
	defer streamRegistry.Deregister(w.runID.String())

	fmt.Fprintf(w.out, "chat_run_id=%s\n", w.runID)
	fmt.Fprintf(w.out, "cli_run_log=%s\n", session.LogPath())

	status := "ok"
	exitCode, err := session.Wait(w.timeout)
	if err != nil {
		status = "timeout"
		exitCode, _ = session.Terminate(5 * time.Second)
	} else if exitCode != 0 {
		status = "failed"
	}

	handoffStatus := "completed"
	if exitCode != 0 || status == "timeout" {
		handoffStatus = "failed"
	}
	w.handoff(role, handoffStatus)
	w.env.evidence.EmitChatRun(w.runID.String(), w.missionID.String(), w.engineName, w.roles, status, session.LogPath())
	w.postRunSignal(ctx)
	w.finalize(status)

	if status == "timeout" {
		return exitf(exitTimeout, "chat session timed out after %s", w.timeout)
	}
	if exitCode != 0 {
		return exitf(exitFailure, "chat session exited with code %d", exitCode)
	}
	return nil
}

func dashless(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
