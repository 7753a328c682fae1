package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateError_Message(t *testing.T) {
	err := &TemplateError{
		Template: "templates/palette.c.tmpl",
		Output:   "palette.c",
		Reason:   "output collides with hand-written source",
	}
	assert.Contains(t, err.Error(), "templates/palette.c.tmpl")
	assert.Contains(t, err.Error(), "palette.c")
	assert.Contains(t, err.Error(), "collides")
}

func TestTemplateError_As_ThroughWrap(t *testing.T) {
	inner := &TemplateError{Template: "t.c.tmpl", Reason: "parse failed", Err: errors.New("unexpected EOF")}
	wrapped := fmt.Errorf("rendering failed: %w", inner)

	var te *TemplateError
	require.True(t, errors.As(wrapped, &te))
	assert.Equal(t, "t.c.tmpl", te.Template)
	assert.Contains(t, wrapped.Error(), "unexpected EOF")
}

func TestNoStageError_Message(t *testing.T) {
	err := &NoStageError{Path: "src/data.bin", Suffix: ".bin"}
	assert.Contains(t, err.Error(), ".bin")
	assert.Contains(t, err.Error(), "src/data.bin")

	bare := &NoStageError{Suffix: ".bin"}
	assert.Contains(t, bare.Error(), ".bin")
}

func TestDuplicateStageError_Message(t *testing.T) {
	err := &DuplicateStageError{Suffix: ".c", Existing: "compile", Incoming: "compile-alt"}
	assert.Contains(t, err.Error(), ".c")
	assert.Contains(t, err.Error(), "compile")
	assert.Contains(t, err.Error(), "compile-alt")
}

func TestCycleError_Message(t *testing.T) {
	chain := &CycleError{Path: "src/loop.c", Sequence: []string{".c", ".s", ".c"}}
	assert.Contains(t, chain.Error(), "src/loop.c")
	assert.Contains(t, chain.Error(), ".c -> .s -> .c")

	graph := &CycleError{Sequence: []string{"a", "b", "a"}}
	assert.Contains(t, graph.Error(), "a -> b -> a")
}

func TestOutputConflictError_Message(t *testing.T) {
	err := &OutputConflictError{Output: "target/build/foo.o", First: "src/foo.c", Second: "src/foo.s"}
	assert.Contains(t, err.Error(), "target/build/foo.o")
	assert.Contains(t, err.Error(), "src/foo.c")
	assert.Contains(t, err.Error(), "src/foo.s")
}

func TestToolInvocationError_CarriesStderrVerbatim(t *testing.T) {
	err := &ToolInvocationError{
		Stage:    "compile",
		Tool:     "cc65",
		Args:     []string{"-o", "main.s", "main.c"},
		Input:    "src/main.c",
		ExitCode: 1,
		Stderr:   "main.c(3): Error: ';' expected",
	}
	assert.Contains(t, err.Error(), "cc65")
	assert.Contains(t, err.Error(), "exited 1")
	assert.Contains(t, err.Error(), "main.c(3): Error: ';' expected")
}

func TestToolInvocationError_SpawnFailure(t *testing.T) {
	inner := errors.New("executable file not found in $PATH")
	err := &ToolInvocationError{
		Stage:    "assemble",
		Tool:     "ca65",
		Input:    "target/build/main.s",
		ExitCode: -1,
		Err:      inner,
	}
	assert.Contains(t, err.Error(), "ca65")
	assert.Contains(t, err.Error(), "not found")
	assert.ErrorIs(t, err, inner)
}

func TestStaleCheckError_Unwrap(t *testing.T) {
	inner := errors.New("permission denied")
	err := &StaleCheckError{Path: "target/build/main.o", Err: inner}

	var sce *StaleCheckError
	require.True(t, errors.As(fmt.Errorf("node check: %w", err), &sce))
	assert.Equal(t, "target/build/main.o", sce.Path)
	assert.ErrorIs(t, err, inner)
}
