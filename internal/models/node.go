// -----------------------------------------------------------------------
// Build Node - One stage application to one input, owning one output path
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// NodeStatus represents the lifecycle state of a build node.
type NodeStatus string

const (
	// NodeStatusPending marks a node not yet considered for execution.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusRunning marks a node whose stage command is in flight.
	NodeStatusRunning NodeStatus = "running"
	// NodeStatusSucceeded marks a node whose stage command exited zero.
	NodeStatusSucceeded NodeStatus = "succeeded"
	// NodeStatusUpToDate marks a node skipped because its output is fresh:
	// the output exists and is no older than any direct input, and the
	// command that produced it is unchanged since the last run.
	NodeStatusUpToDate NodeStatus = "up-to-date"
	// NodeStatusFailed marks a node whose stage command failed.
	NodeStatusFailed NodeStatus = "failed"
	// NodeStatusBlocked marks a node never launched because an upstream
	// dependency failed.
	NodeStatusBlocked NodeStatus = "blocked"
)

// IsTerminal returns true once the node needs no further scheduling.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusSucceeded, NodeStatusUpToDate, NodeStatusFailed, NodeStatusBlocked:
		return true
	}
	return false
}

// severity orders statuses for worst-of aggregation:
// failed > blocked > everything else.
func (s NodeStatus) severity() int {
	switch s {
	case NodeStatusFailed:
		return 2
	case NodeStatusBlocked:
		return 1
	default:
		return 0
	}
}

// WorstStatus returns the most severe status of the given set. An empty set
// is succeeded. Pending and running count no worse than success so that a
// fail-fast abort still reports the failure that caused it.
func WorstStatus(statuses ...NodeStatus) NodeStatus {
	worst := NodeStatusSucceeded
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// ExitCode maps a run's worst status to the process exit code:
// clean runs exit 0, blocked-only runs exit 1, failed runs exit 2.
func (s NodeStatus) ExitCode() int {
	switch s {
	case NodeStatusFailed:
		return 2
	case NodeStatusBlocked:
		return 1
	default:
		return 0
	}
}

// -----------------------------------------------------------------------
// Build Node
// -----------------------------------------------------------------------

// BuildNode is one stage application to one specific input, producing one
// specific output path. Nodes form a directed acyclic chain per source file,
// one node per stage hop, plus a single synthetic link node aggregating
// every chain's object output.
//
// Identity and wiring (ID, Stage, Inputs, Output) are fixed at graph
// construction. Runtime fields (Status, Err, Stderr, timing) are mutated
// only on the execution engine's coordinator goroutine.
type BuildNode struct {
	ID     string   `json:"id"`               // Deterministic: "<stage>:<output base>"
	Stage  string   `json:"stage"`            // Producing stage name
	Source string   `json:"source,omitempty"` // Originating source path; empty for the link node
	Inputs []string `json:"inputs"`           // Paths consumed; sorted for the link node
	Output string   `json:"output"`           // Output path, owned exclusively by this node
	Link   bool     `json:"link,omitempty"`   // True on the terminal link node

	Status      NodeStatus    `json:"status"`
	Err         string        `json:"error,omitempty"`  // Failure detail
	Stderr      string        `json:"stderr,omitempty"` // Captured tool stderr, verbatim
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Input returns the node's primary input. Chain nodes have exactly one;
// the link node's primary input is meaningless and callers use Inputs.
func (n *BuildNode) Input() string {
	if len(n.Inputs) == 0 {
		return ""
	}
	return n.Inputs[0]
}

// MarkStarted transitions the node to running.
func (n *BuildNode) MarkStarted() {
	n.Status = NodeStatusRunning
	now := time.Now()
	n.StartedAt = &now
}

// MarkSucceeded transitions the node to succeeded.
func (n *BuildNode) MarkSucceeded() {
	n.Status = NodeStatusSucceeded
	n.complete()
}

// MarkUpToDate transitions the node to up-to-date without execution.
func (n *BuildNode) MarkUpToDate() {
	n.Status = NodeStatusUpToDate
	n.complete()
}

// MarkFailed transitions the node to failed with the failure detail and any
// captured stderr.
func (n *BuildNode) MarkFailed(errMsg, stderr string) {
	n.Status = NodeStatusFailed
	n.Err = errMsg
	n.Stderr = stderr
	n.complete()
}

// MarkBlocked transitions the node to blocked, naming the failed upstream.
func (n *BuildNode) MarkBlocked(upstream string) {
	n.Status = NodeStatusBlocked
	n.Err = "blocked by upstream failure of " + upstream
	n.complete()
}

func (n *BuildNode) complete() {
	now := time.Now()
	n.CompletedAt = &now
	if n.StartedAt != nil {
		n.Duration = now.Sub(*n.StartedAt)
	}
}
