package container

import (
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/audit"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/bootstrap"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/engine"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/evidence"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/signals"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Audit is the tamper-evident event log shared by every handler
	Audit *audit.Chain

	// Evidence is the best-effort CI evidence emitter
	Evidence *evidence.Emitter

	// Dispatcher drives task execution; the hub runs the simulated one
	Dispatcher engine.Dispatcher

	// Signals is the signal pipeline (create/list/transition/import)
	Signals *signals.Pipeline
}

// NewContainer initializes all services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	metrics := components.Metrics()

	var chain *audit.Chain
	if cfg.Paths.SigningKey != "" {
		chain = audit.NewSignedChain(cfg.Paths.AuditDir, audit.NewSigner(cfg.Paths.SigningKey))
	} else {
		chain = audit.NewChain(cfg.Paths.AuditDir)
	}
	chain.OnAppend(metrics.AuditAppended)

	emitter := evidence.New(cfg.Paths.EvidencePath)

	pipeline := signals.NewPipeline(
		components.Store,
		signals.NewClassifier(),
		components.Events,
		metrics,
		components.Logger,
	)

	return &Container{
		Components: components,
		Audit:      chain,
		Evidence:   emitter,
		Dispatcher: engine.Simulated(),
		Signals:    pipeline,
	}, nil
}

// WorkflowEngine builds an engine for one run request. Engines are
// cheap value objects over the shared store; the strategy is the only
// per-request variation.
func (c *Container) WorkflowEngine(allowSelfHeal bool) *engine.Engine {
	strategy := engine.StrategySelfHeal
	if !allowSelfHeal {
		strategy = engine.StrategyPlain
	}

	return engine.New(
		c.Components.Store,
		c.Dispatcher,
		c.Evidence,
		c.Components.Logger,
		engine.Options{
			TraceDir:                c.Components.Config.Workflow.TraceDir,
			Strategy:                strategy,
			SuppressSummaryArtifact: c.Components.Config.Workflow.SuppressSummaryArtifact,
			Metrics:                 c.Components.Metrics(),
		},
	)
}
