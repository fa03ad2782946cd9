package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/metrics"
	"github.com/haven-hvn/haven/pkg/pipeline"
	"github.com/haven-hvn/haven/pkg/pipeline/steps"
	"github.com/haven-hvn/haven/pkg/plugin"
	"github.com/haven-hvn/haven/pkg/scheduler"
	"github.com/haven-hvn/haven/pkg/sources"
	"github.com/haven-hvn/haven/pkg/store"
)

// Config holds application construction parameters
type Config struct {
	DataDir               string
	MaxConcurrent         int
	MaxConcurrentArchives int
	MetricsAddr           string
	EventHistorySize      int
}

// StepDeps carries the optional external collaborators for pipeline steps.
// Absent collaborators leave the corresponding step running in degraded or
// fail-fast mode.
type StepDeps struct {
	Prober    steps.Prober
	Catalog   steps.Catalog
	Analyzer  steps.Analyzer
	Encryptor steps.Encryptor
	Uploader  steps.Uploader
	Syncer    steps.Syncer
}

// Application owns every component and wires them together once at startup.
// Package-level state remains outside it: the global Logger in pkg/log and the
// Prometheus collectors registered by pkg/metrics.
type Application struct {
	Bus       *events.Bus
	Store     store.Store
	Tracker   *sources.Tracker
	Registry  *plugin.Registry
	Plugins   *plugin.Manager
	Pipeline  *pipeline.Manager
	Executor  *scheduler.Executor
	Scheduler *scheduler.Scheduler

	logger        zerolog.Logger
	metricsServer *http.Server
	metricsAddr   string
}

// New constructs the application graph
func New(cfg Config, registry *plugin.Registry, deps StepDeps) (*Application, error) {
	bus := events.NewBus()
	if cfg.EventHistorySize > 0 {
		bus.EnableHistory(cfg.EventHistorySize)
	}

	st, err := store.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	tracker, err := sources.NewTracker(cfg.DataDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open source tracker: %w", err)
	}

	if registry == nil {
		registry = plugin.NewRegistry()
	}
	plugins := plugin.NewManager(registry)

	pipelineMgr := steps.NewBuilder(bus).
		WithMaxConcurrent(cfg.MaxConcurrent).
		WithProber(deps.Prober).
		WithCatalog(deps.Catalog).
		WithAnalyzer(deps.Analyzer).
		WithEncryptor(deps.Encryptor).
		WithUploader(deps.Uploader).
		WithSyncer(deps.Syncer).
		WithDefaultSteps().
		Build()

	executor := scheduler.NewExecutor(plugins, tracker, pipelineMgr, st, bus, cfg.MaxConcurrentArchives)
	sched := scheduler.NewScheduler(st, executor, cfg.DataDir)

	return &Application{
		Bus:         bus,
		Store:       st,
		Tracker:     tracker,
		Registry:    registry,
		Plugins:     plugins,
		Pipeline:    pipelineMgr,
		Executor:    executor,
		Scheduler:   sched,
		logger:      log.WithComponent("app"),
		metricsAddr: cfg.MetricsAddr,
	}, nil
}

// Start brings up the scheduler and, when configured, the metrics endpoint
func (a *Application) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	if a.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.metricsServer = &http.Server{Addr: a.metricsAddr, Handler: mux}

		go func() {
			a.logger.Info().Str("addr", a.metricsAddr).Msg("Metrics endpoint listening")
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	return nil
}

// Stop shuts everything down in reverse dependency order
func (a *Application) Stop() {
	a.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Plugins.ShutdownAll(shutdownCtx)

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	if err := a.Store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Store close failed")
	}
}
