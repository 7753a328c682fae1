// -----------------------------------------------------------------------
// Application - Wires configuration, storage, and the build pipeline
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/discovery"
	"github.com/ternarybob/fabrica/internal/engine"
	"github.com/ternarybob/fabrica/internal/graph"
	"github.com/ternarybob/fabrica/internal/interfaces"
	"github.com/ternarybob/fabrica/internal/logs"
	"github.com/ternarybob/fabrica/internal/models"
	"github.com/ternarybob/fabrica/internal/registry"
	"github.com/ternarybob/fabrica/internal/render"
	badgerstore "github.com/ternarybob/fabrica/internal/storage/badger"
)

// App holds the long-lived components of a build session: configuration,
// the stage registry, the state store, and the log consumer. Per-run
// components (discovery, renderer, graph, engine) are created inside Build
// with a run-scoped logger so their output lands in that run's history.
type App struct {
	Config      *common.Config
	Logger      arbor.ILogger
	State       interfaces.StateStorage
	Registry    *registry.Registry
	Runner      interfaces.CommandRunner
	LogConsumer *logs.Consumer
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	reg, err := registry.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build stage registry: %w", err)
	}
	app.Registry = reg

	db, err := badgerstore.NewBadgerDB(logger, cfg.Directories.State)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}
	app.State = badgerstore.NewStateStorage(db, logger)

	consumer := logs.NewConsumer(app.State, logger, cfg.Logging.MinEventLevel)
	if err := consumer.Start(); err != nil {
		app.State.Close()
		return nil, fmt.Errorf("failed to start log consumer: %w", err)
	}
	app.LogConsumer = consumer

	// Run-correlated log events flow through arbor's context channel into
	// the consumer, which persists them per run.
	logger.SetChannel("context", consumer.GetChannel())

	app.Runner = engine.NewInvoker(logger)

	logger.Debug().
		Str("state_dir", cfg.Directories.State).
		Int("stages", len(app.Registry.Suffixes())).
		Msg("Application initialized")

	return app, nil
}

// Build runs one full pipeline pass: validate the layout, render templates,
// discover sources, assemble the graph, and execute it. The returned record
// carries the exit code for the process.
func (a *App) Build(ctx context.Context) (*models.RunRecord, error) {
	runID := common.NewRunID()
	logger := a.Logger.WithContextWriter(runID)

	logger.Info().
		Str("run_id", runID).
		Str("artifact", a.Config.ArtifactName()).
		Str("system", a.Config.ResolveProfile().Name).
		Msg("Build starting")

	disc := discovery.NewService(a.Config, logger)
	if err := disc.ValidateLayout(); err != nil {
		return nil, err
	}

	templates, err := disc.Templates()
	if err != nil {
		return nil, err
	}

	written, err := disc.Written()
	if err != nil {
		return nil, err
	}

	produced, err := render.New(a.Config, logger).RenderAll(templates, written)
	if err != nil {
		return nil, err
	}

	producedNames := make(map[string]bool, len(produced))
	for _, file := range produced {
		producedNames[file.Name] = true
	}
	generated, err := disc.Generated(producedNames)
	if err != nil {
		return nil, err
	}

	sources := append(written, generated...)

	g, err := graph.NewBuilder(a.Config, a.Registry, logger).Build(sources)
	if err != nil {
		return nil, err
	}

	run, err := engine.NewEngine(a.Config, a.Runner, a.State, logger).Execute(ctx, g, runID)
	if err != nil {
		return nil, err
	}

	// Dry runs leave no trace: no invocations, no node state, no history.
	if !run.DryRun {
		if err := a.State.SaveRun(ctx, run); err != nil {
			logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to save run record")
		}
	}

	return run, nil
}

// Clean removes build outputs and generated sources and drops the recorded
// node state, forcing the next run to rebuild from scratch. Run history is
// a ledger and survives cleaning.
func (a *App) Clean(ctx context.Context) error {
	if err := os.RemoveAll(a.Config.Directories.Build); err != nil {
		return fmt.Errorf("failed to remove build directory: %w", err)
	}
	if err := os.RemoveAll(a.Config.Directories.Generated); err != nil {
		return fmt.Errorf("failed to remove generated directory: %w", err)
	}
	if err := a.State.DeleteNodeStates(ctx); err != nil {
		return fmt.Errorf("failed to clear node state: %w", err)
	}

	a.Logger.Info().
		Str("build", a.Config.Directories.Build).
		Str("generated", a.Config.Directories.Generated).
		Msg("Cleaned build outputs")
	return nil
}

// History returns the most recent run records, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	return a.State.ListRuns(ctx, limit)
}

// RunLogs returns the persisted log entries of one run in order.
func (a *App) RunLogs(ctx context.Context, runID string) ([]*models.RunLogEntry, error) {
	return a.State.GetRunLogs(ctx, runID)
}

// Close flushes the log consumer and closes the state store.
func (a *App) Close() error {
	if a.LogConsumer != nil {
		if err := a.LogConsumer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log consumer")
		}
	}
	if a.State != nil {
		if err := a.State.Close(); err != nil {
			return fmt.Errorf("failed to close state store: %w", err)
		}
	}
	return nil
}
