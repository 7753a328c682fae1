package interfaces

import (
	"context"

	"github.com/ternarybob/fabrica/internal/models"
)

// CommandRunner - interface for external tool invocation
// A non-zero exit reports through CommandResult, not the error return; the
// error is reserved for spawn and infrastructure failures.
type CommandRunner interface {
	Run(ctx context.Context, tool string, args []string, dir string) (models.CommandResult, error)
}
