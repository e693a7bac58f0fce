// Package telemetry serves the observability side doors: pprof on one
// port, Prometheus metrics on another. Both are optional; a nil
// *Metrics is safe to record against so components never need to know
// whether telemetry is enabled.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// Telemetry holds observability components
type Telemetry struct {
	log         *logger.Logger
	pprofAddr   string
	metricsAddr string
	enablePprof bool

	registry *prometheus.Registry
	metrics  *Metrics
	servers  []*http.Server
}

// New creates telemetry components. Ports bind on localhost only.
func New(pprofPort, metricsPort int, enablePprof bool, log *logger.Logger) *Telemetry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Telemetry{
		log:         log,
		pprofAddr:   fmt.Sprintf("localhost:%d", pprofPort),
		metricsAddr: fmt.Sprintf("localhost:%d", metricsPort),
		enablePprof: enablePprof,
		registry:    registry,
		metrics:     newMetrics(registry),
	}
}

// Metrics returns the domain instruments backed by this registry
func (t *Telemetry) Metrics() *Metrics {
	return t.metrics
}

// Start launches the pprof and metrics listeners in the background.
// Listener failures are logged, never fatal: the service runs fine
// without its side doors.
func (t *Telemetry) Start(ctx context.Context) error {
	if t.enablePprof {
		// net/http/pprof registers on DefaultServeMux
		pprofServer := &http.Server{Addr: t.pprofAddr, Handler: http.DefaultServeMux}
		t.servers = append(t.servers, pprofServer)
		go func() {
			t.log.Info("pprof server starting", "addr", t.pprofAddr)
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.log.Warn("pprof server error", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: t.metricsAddr, Handler: mux}
	t.servers = append(t.servers, metricsServer)
	go func() {
		t.log.Info("metrics server starting", "addr", t.metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Warn("metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts both listeners down
func (t *Telemetry) Stop(ctx context.Context) error {
	for _, srv := range t.servers {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	return nil
}

// Metrics bundles the domain instruments. All record methods are
// nil-safe so callers can hold a nil *Metrics when telemetry is off.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	signalsCreated *prometheus.CounterVec
	auditAppends   prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "missions_runs_total",
			Help: "Workflow runs finished, by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "missions_run_duration_seconds",
			Help:    "Wall-clock duration of workflow runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		signalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_created_total",
			Help: "Signals created, by type.",
		}, []string{"type"}),
		auditAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Records appended to the audit chain.",
		}),
	}
	registry.MustRegister(m.runsTotal, m.runDuration, m.signalsCreated, m.auditAppends)
	return m
}

// ObserveRun records one finished workflow run
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// SignalCreated records one created signal
func (m *Metrics) SignalCreated(signalType string) {
	if m == nil {
		return
	}
	m.signalsCreated.WithLabelValues(signalType).Inc()
}

// AuditAppended records one audit chain append
func (m *Metrics) AuditAppended() {
	if m == nil {
		return
	}
	m.auditAppends.Inc()
}
