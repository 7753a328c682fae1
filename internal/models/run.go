// -----------------------------------------------------------------------
// Run Records - Persisted per-run state backing staleness and history
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// NodeState is the persisted record backing the command-hash staleness
// clause: a node may reuse its output only when the command it would run now
// hashes to the value recorded when that output was produced. Keyed by
// output path in the state store.
type NodeState struct {
	OutputPath  string    `json:"output_path"`
	CommandHash string    `json:"command_hash"` // SHA-256 over tool + substituted args
	Stage       string    `json:"stage"`
	RunID       string    `json:"run_id"` // Run that produced the output
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunRecord summarizes one pipeline run for history listing.
type RunRecord struct {
	ID          string     `json:"id"`
	Artifact    string     `json:"artifact"` // Terminal artifact path
	Status      NodeStatus `json:"status"`   // Worst node status of the run
	ExitCode    int        `json:"exit_code"`
	KeepGoing   bool       `json:"keep_going"`
	DryRun      bool       `json:"dry_run"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Node counts by outcome.
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	UpToDate  int `json:"up_to_date"`
	Failed    int `json:"failed"`
	Blocked   int `json:"blocked"`
	Pending   int `json:"pending"` // Non-zero only after a fail-fast abort
}

// Invocations returns how many external commands the run actually launched.
// An idempotent re-run reports zero.
func (r *RunRecord) Invocations() int {
	return r.Succeeded + r.Failed
}

// MarkCompleted stamps the completion time.
func (r *RunRecord) MarkCompleted() {
	now := time.Now()
	r.CompletedAt = &now
}

// RunLogTimeFormat is RFC3339 with zero-padded nanoseconds, so the string
// order of two stamps equals their time order.
const RunLogTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RunLogEntry is one structured log line captured during a run, correlated
// by run ID and persisted with the run record.
type RunLogEntry struct {
	ID            string `json:"id"`
	RunID         string `json:"run_id"`
	Timestamp     string `json:"timestamp"`      // Display form, "15:04:05"
	FullTimestamp string `json:"full_timestamp"` // Event time in RunLogTimeFormat
	Level         string `json:"level"`          // Three-letter code: INF, WRN, ERR, DBG
	Message       string `json:"message"`
}
