// -----------------------------------------------------------------------
// Execution Engine - Concurrent graph walk with staleness short-circuit
// -----------------------------------------------------------------------

package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/graph"
	"github.com/ternarybob/fabrica/internal/interfaces"
	"github.com/ternarybob/fabrica/internal/models"
)

// Engine walks a build graph with a bounded worker pool. Scheduling runs on
// a single coordinator goroutine: a node is dispatched only after every
// dependency reached a successful terminal status, workers do nothing but
// run the external command, and all node state transitions happen on the
// coordinator. Staleness is decided at dispatch time, so an up-to-date node
// unlocks its dependents without costing a worker slot.
type Engine struct {
	config *common.Config
	runner interfaces.CommandRunner
	state  interfaces.StateStorage
	logger arbor.ILogger
}

// NewEngine creates an execution engine over the given command runner and
// state store.
func NewEngine(config *common.Config, runner interfaces.CommandRunner, state interfaces.StateStorage, logger arbor.ILogger) *Engine {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Engine{
		config: config,
		runner: runner,
		state:  state,
		logger: logger,
	}
}

// dispatch pairs a node with its substituted command for a worker.
type dispatch struct {
	node *models.BuildNode
	cmd  stageCommand
}

// nodeOutcome carries a worker's result back to the coordinator. A non-nil
// err means the process could not run at all; tool failures travel in the
// result's exit code.
type nodeOutcome struct {
	node   *models.BuildNode
	result models.CommandResult
	err    error
}

// Execute runs every node of the graph in dependency order and returns the
// run record. Argument template errors and an unreadable state store fail
// the run before any tool is launched; a failing tool fails only its own
// node and blocks the nodes downstream of it. Without keep-going the first
// failure also stops new dispatches, leaving unreached nodes pending.
func (e *Engine) Execute(ctx context.Context, g *graph.Graph, runID string) (*models.RunRecord, error) {
	run := &models.RunRecord{
		ID:        runID,
		Artifact:  e.config.ArtifactPath(),
		KeepGoing: e.config.Engine.KeepGoing,
		DryRun:    e.config.Engine.DryRun,
		StartedAt: time.Now(),
		Total:     g.Len(),
	}

	// Substitute every command up front. A bad argument template is a
	// configuration error and surfaces before anything executes.
	commands := make(map[string]stageCommand, g.Len())
	for _, node := range g.Nodes() {
		stage, ok := g.Definition(node.ID)
		if !ok {
			return nil, fmt.Errorf("no stage definition recorded for node %s", node.ID)
		}
		cmd, err := buildCommand(e.config, stage, node)
		if err != nil {
			return nil, err
		}
		commands[node.ID] = cmd
	}

	if !e.config.Engine.DryRun {
		if err := os.MkdirAll(e.config.Directories.Build, 0755); err != nil {
			return nil, fmt.Errorf("failed to create build directory: %w", err)
		}
	}

	// Dependency counts seed the ready queue with the graph's roots, in
	// the graph's own deterministic order.
	remaining := make(map[string]int, g.Len())
	queue := make([]*models.BuildNode, 0, g.Len())
	for _, node := range g.Nodes() {
		deps := len(g.Dependencies(node.ID))
		remaining[node.ID] = deps
		if deps == 0 {
			queue = append(queue, node)
		}
	}

	workers := e.config.Engine.WorkerCount()
	workCh := make(chan dispatch, g.Len())
	doneCh := make(chan nodeOutcome, g.Len())

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range workCh {
				result, err := e.invoke(ctx, d.cmd)
				doneCh <- nodeOutcome{node: d.node, result: result, err: err}
			}
		}()
	}
	defer func() {
		close(workCh)
		wg.Wait()
	}()

	e.logger.Info().
		Int("nodes", g.Len()).
		Int("workers", workers).
		Bool("keep_going", run.KeepGoing).
		Bool("dry_run", run.DryRun).
		Msg("Executing build graph")

	inFlight := 0
	halted := false

	for {
		for !halted && len(queue) > 0 {
			if ctx.Err() != nil {
				halted = true
				break
			}

			node := queue[0]
			queue = queue[1:]
			cmd := commands[node.ID]

			upToDate, reason, err := e.checkUpToDate(ctx, node, cmd)
			if err != nil {
				node.MarkFailed(err.Error(), "")
				e.logger.Error().Err(err).Str("node", node.ID).Msg("Staleness check failed")
				e.blockDependents(g, node)
				if !e.config.Engine.KeepGoing {
					halted = true
				}
				continue
			}
			if upToDate {
				node.MarkUpToDate()
				e.logger.Info().Str("node", node.ID).Str("output", node.Output).Msg("Up to date")
				queue = e.unlockDependents(g, node, remaining, queue)
				continue
			}

			if e.config.Engine.DryRun {
				e.logger.Info().Str("node", node.ID).Str("reason", reason).Msgf("Would run: %s", cmd.Line())
				queue = e.unlockDependents(g, node, remaining, queue)
				continue
			}

			node.MarkStarted()
			e.logger.Info().
				Str("node", node.ID).
				Str("tool", cmd.Tool).
				Str("output", node.Output).
				Msg("Running stage")
			e.logger.Debug().Str("node", node.ID).Msg(cmd.Line())
			inFlight++
			workCh <- dispatch{node: node, cmd: cmd}
		}

		if inFlight == 0 {
			break
		}

		outcome := <-doneCh
		inFlight--
		queue = e.applyOutcome(ctx, g, run, outcome, commands[outcome.node.ID], remaining, queue, &halted)
	}

	e.tally(g, run)
	return run, nil
}

// invoke runs one command under the configured per-stage timeout.
func (e *Engine) invoke(ctx context.Context, cmd stageCommand) (models.CommandResult, error) {
	if timeout := e.config.Engine.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.runner.Run(ctx, cmd.Tool, cmd.Args, "")
}

// applyOutcome folds a worker result into the graph: success persists the
// node's command hash and unlocks dependents, failure blocks everything
// downstream and, without keep-going, halts further dispatch.
func (e *Engine) applyOutcome(ctx context.Context, g *graph.Graph, run *models.RunRecord, outcome nodeOutcome, cmd stageCommand, remaining map[string]int, queue []*models.BuildNode, halted *bool) []*models.BuildNode {
	node := outcome.node

	if outcome.err != nil || outcome.result.ExitCode != 0 {
		invErr := &models.ToolInvocationError{
			Stage:    node.Stage,
			Tool:     cmd.Tool,
			Args:     cmd.Args,
			Input:    node.Input(),
			ExitCode: outcome.result.ExitCode,
			Stderr:   outcome.result.Stderr,
			Err:      outcome.err,
		}
		node.MarkFailed(invErr.Error(), outcome.result.Stderr)
		e.logger.Error().
			Str("node", node.ID).
			Str("tool", cmd.Tool).
			Int("exit_code", outcome.result.ExitCode).
			Msg("Stage failed")
		if stderr := outcome.result.Stderr; stderr != "" {
			e.logger.Error().Str("node", node.ID).Msg(stderr)
		}
		e.blockDependents(g, node)
		if !e.config.Engine.KeepGoing {
			*halted = true
		}
		return queue
	}

	node.MarkSucceeded()
	e.logger.Info().
		Str("node", node.ID).
		Str("output", node.Output).
		Str("duration", node.Duration.String()).
		Msg("Stage succeeded")
	e.persistNodeState(ctx, run.ID, node, cmd)
	return e.unlockDependents(g, node, remaining, queue)
}

// unlockDependents decrements dependency counts below a completed node and
// queues any dependent whose last dependency just cleared.
func (e *Engine) unlockDependents(g *graph.Graph, done *models.BuildNode, remaining map[string]int, queue []*models.BuildNode) []*models.BuildNode {
	for _, id := range g.Dependents(done.ID) {
		remaining[id]--
		if remaining[id] == 0 {
			if dep, ok := g.Node(id); ok {
				queue = append(queue, dep)
			}
		}
	}
	return queue
}

// blockDependents marks every still-pending node downstream of a failure as
// blocked. Blocked nodes never reach the ready queue because their
// dependency counts never clear.
func (e *Engine) blockDependents(g *graph.Graph, failed *models.BuildNode) {
	for _, id := range g.Dependents(failed.ID) {
		dep, ok := g.Node(id)
		if !ok || dep.Status != models.NodeStatusPending {
			continue
		}
		dep.MarkBlocked(failed.ID)
		e.logger.Warn().
			Str("node", dep.ID).
			Str("upstream", failed.ID).
			Msg("Blocked by upstream failure")
		e.blockDependents(g, dep)
	}
}

// checkUpToDate decides whether a node's output can be reused: the output
// must exist and be no older than any input, and the recorded command hash
// must match the command the node would run now.
func (e *Engine) checkUpToDate(ctx context.Context, node *models.BuildNode, cmd stageCommand) (bool, string, error) {
	staleness, err := common.CheckArtifactStaleness(node.Output, node.Inputs)
	if err != nil {
		return false, "", staleCheckError(node, err)
	}
	if staleness.IsStale {
		return false, staleness.Reason, nil
	}

	state, err := e.state.GetNodeState(ctx, node.Output)
	if err != nil {
		return false, "", staleCheckError(node, err)
	}
	if state == nil {
		return false, "no recorded command for " + node.Output, nil
	}
	if state.CommandHash != cmd.Hash {
		return false, "command changed since " + node.Output + " was produced", nil
	}
	return true, staleness.Reason, nil
}

// staleCheckError names the precise path whose metadata was unreadable when
// the underlying error carries one.
func staleCheckError(node *models.BuildNode, err error) error {
	path := node.Output
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		path = pathErr.Path
	}
	return &models.StaleCheckError{Path: path, Err: err}
}

// persistNodeState records the command hash behind a fresh output. A lost
// record re-runs the node next time; the output itself is already on disk.
func (e *Engine) persistNodeState(ctx context.Context, runID string, node *models.BuildNode, cmd stageCommand) {
	state := &models.NodeState{
		OutputPath:  node.Output,
		CommandHash: cmd.Hash,
		Stage:       node.Stage,
		RunID:       runID,
		UpdatedAt:   time.Now(),
	}
	if err := e.state.PutNodeState(ctx, state); err != nil {
		e.logger.Warn().Err(err).Str("output", node.Output).Msg("Failed to record node state")
	}
}

// tally folds final node statuses into the run record.
func (e *Engine) tally(g *graph.Graph, run *models.RunRecord) {
	statuses := make([]models.NodeStatus, 0, g.Len())
	for _, node := range g.Nodes() {
		statuses = append(statuses, node.Status)
		switch node.Status {
		case models.NodeStatusSucceeded:
			run.Succeeded++
		case models.NodeStatusUpToDate:
			run.UpToDate++
		case models.NodeStatusFailed:
			run.Failed++
		case models.NodeStatusBlocked:
			run.Blocked++
		case models.NodeStatusPending:
			run.Pending++
		}
	}
	run.Status = models.WorstStatus(statuses...)
	run.ExitCode = run.Status.ExitCode()
	run.MarkCompleted()

	e.logger.Info().
		Str("status", string(run.Status)).
		Int("succeeded", run.Succeeded).
		Int("up_to_date", run.UpToDate).
		Int("failed", run.Failed).
		Int("blocked", run.Blocked).
		Int("pending", run.Pending).
		Msg("Run complete")
}
