// -----------------------------------------------------------------------
// Tool Invoker - Runs external toolchain commands with captured output
// -----------------------------------------------------------------------

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/interfaces"
	"github.com/ternarybob/fabrica/internal/models"
)

// Invoker executes toolchain commands as child processes. Stdout and stderr
// are captured whole; stage tools write compiler diagnostics, not streams,
// so buffering the output is fine.
type Invoker struct {
	logger arbor.ILogger
}

// NewInvoker creates a command runner for real toolchain processes.
func NewInvoker(logger arbor.ILogger) interfaces.CommandRunner {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Invoker{logger: logger}
}

// Run launches the tool and waits for it. A non-zero exit reports through
// the result's ExitCode; the error return is reserved for processes that
// could not be started or waited on at all.
func (i *Invoker) Run(ctx context.Context, tool string, args []string, dir string) (models.CommandResult, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := models.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		// A canceled context kills the child, which then reports as an
		// ExitError; the cancellation is the real cause, so check it first.
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ExitCode = -1
			return result, fmt.Errorf("%s canceled: %w", tool, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("failed to start %s: %w", tool, err)
	}

	return result, nil
}
