package interfaces

import (
	"context"

	"github.com/ternarybob/fabrica/internal/models"
)

// StateStorage - interface for incremental build state persistence
type StateStorage interface {
	// Node state operations. GetNodeState returns (nil, nil) when no state
	// is recorded for the output path.
	GetNodeState(ctx context.Context, outputPath string) (*models.NodeState, error)
	PutNodeState(ctx context.Context, state *models.NodeState) error
	DeleteNodeStates(ctx context.Context) error

	// Run history operations
	SaveRun(ctx context.Context, run *models.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)

	// Run log operations
	AppendRunLogs(ctx context.Context, runID string, entries []*models.RunLogEntry) error
	GetRunLogs(ctx context.Context, runID string) ([]*models.RunLogEntry, error)

	Close() error
}
