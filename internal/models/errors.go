// -----------------------------------------------------------------------
// Build Errors - Typed error taxonomy for configuration and execution
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
)

// TemplateError reports a failed template instantiation: an unparsable
// template, an undefined context variable, or an output name that would
// collide with a hand-written source. Raised before any file is overwritten.
type TemplateError struct {
	Template string // Template file path
	Output   string // Resolved output name, when known
	Reason   string // Human-readable cause
	Err      error  // Underlying engine error, when any
}

func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("template %s: %s", e.Template, e.Reason)
	if e.Output != "" {
		msg = fmt.Sprintf("template %s (output %s): %s", e.Template, e.Output, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// NoStageError reports a source suffix no registered stage claims.
type NoStageError struct {
	Path   string // Offending source file, when resolution was file-driven
	Suffix string // The unclaimed suffix
}

func (e *NoStageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("no stage registered for suffix %q (source %s)", e.Suffix, e.Path)
	}
	return fmt.Sprintf("no stage registered for suffix %q", e.Suffix)
}

// DuplicateStageError reports two stage definitions claiming one input suffix.
// Stage resolution must stay unambiguous, so registration fails outright.
type DuplicateStageError struct {
	Suffix   string // The contested input suffix
	Existing string // Name of the stage already registered
	Incoming string // Name of the stage that attempted to register
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("stage %q claims input suffix %q already registered by stage %q",
		e.Incoming, e.Suffix, e.Existing)
}

// CycleError reports a suffix sequence that revisits itself, either while
// resolving one file's stage chain or in the assembled build graph.
type CycleError struct {
	Path     string   // Chain owner, when detected during chain resolution
	Sequence []string // The suffix or node sequence that closed the cycle
}

func (e *CycleError) Error() string {
	seq := strings.Join(e.Sequence, " -> ")
	if e.Path != "" {
		return fmt.Sprintf("stage cycle for %s: %s", e.Path, seq)
	}
	return fmt.Sprintf("dependency cycle: %s", seq)
}

// OutputConflictError reports two build nodes claiming the same output path.
// Every node owns its output exclusively; convergence means two sources
// would overwrite each other's intermediates.
type OutputConflictError struct {
	Output string // The contested output path
	First  string // Source that claimed the path first
	Second string // Source that attempted the second claim
}

func (e *OutputConflictError) Error() string {
	return fmt.Sprintf("output %s claimed by both %s and %s", e.Output, e.First, e.Second)
}

// ToolInvocationError reports a stage command that could not be started or
// exited non-zero. Captured stderr is carried verbatim for reporting.
type ToolInvocationError struct {
	Stage    string   // Stage name
	Tool     string   // Executable invoked
	Args     []string // Substituted argument vector
	Input    string   // Primary input path
	ExitCode int      // Process exit code, -1 when the process never ran
	Stderr   string   // Captured standard error, verbatim
	Err      error    // Spawn or wait error, when any
}

func (e *ToolInvocationError) Error() string {
	msg := fmt.Sprintf("stage %s: %s exited %d (input %s)", e.Stage, e.Tool, e.ExitCode, e.Input)
	if e.Err != nil {
		msg = fmt.Sprintf("stage %s: %s failed (input %s): %v", e.Stage, e.Tool, e.Input, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = msg + "\n" + stderr
	}
	return msg
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// StaleCheckError reports filesystem metadata that could not be read while
// deciding whether a node's output is reusable. Plain non-existence is not
// an error, it just means stale.
type StaleCheckError struct {
	Path string // Path whose metadata was unreadable
	Err  error
}

func (e *StaleCheckError) Error() string {
	return fmt.Sprintf("cannot check staleness of %s: %v", e.Path, e.Err)
}

func (e *StaleCheckError) Unwrap() error {
	return e.Err
}
