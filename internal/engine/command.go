// -----------------------------------------------------------------------
// Stage Commands - Placeholder substitution and command identity hashing
// -----------------------------------------------------------------------

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
)

// stageCommand is the fully substituted invocation for one node. Commands
// are fixed for the whole graph before anything executes, so a bad argument
// template fails the run before any tool is launched.
type stageCommand struct {
	Tool string
	Args []string
	Hash string // SHA-256 over tool and substituted args
}

// Line renders the command as a single loggable line.
func (c stageCommand) Line() string {
	if len(c.Args) == 0 {
		return c.Tool
	}
	return c.Tool + " " + strings.Join(c.Args, " ")
}

// buildCommand substitutes a node's paths into its stage's argument
// template. Scalars {input} and {output} name the node's own files; the
// list placeholders {inputs}, {flags} and {includes} splice in place.
// Path-valued placeholders substitute as absolute paths, so the invoked
// tool never depends on its working directory; the graph itself stays in
// manifest-relative coordinates.
func buildCommand(cfg *common.Config, stage models.StageDefinition, node *models.BuildNode) (stageCommand, error) {
	output, err := filepath.Abs(node.Output)
	if err != nil {
		return stageCommand{}, fmt.Errorf("stage %s: resolving %s: %w", stage.Name, node.Output, err)
	}
	inputs, err := absPaths(node.Inputs)
	if err != nil {
		return stageCommand{}, fmt.Errorf("stage %s: %w", stage.Name, err)
	}

	scalars := map[string]string{
		models.PlaceholderOutput: output,
	}
	if len(inputs) > 0 {
		scalars[models.PlaceholderInput] = inputs[0]
	} else {
		scalars[models.PlaceholderInput] = ""
	}

	includes, err := includeArgs(cfg, stage)
	if err != nil {
		return stageCommand{}, fmt.Errorf("stage %s: %w", stage.Name, err)
	}
	lists := map[string][]string{
		models.PlaceholderInputs:   inputs,
		models.PlaceholderFlags:    stage.Flags,
		models.PlaceholderIncludes: includes,
	}

	args, err := common.ExpandArgs(stage.Args, scalars, lists)
	if err != nil {
		return stageCommand{}, fmt.Errorf("stage %s: %w", stage.Name, err)
	}

	return stageCommand{
		Tool: stage.Tool,
		Args: args,
		Hash: commandHash(stage.Tool, args),
	}, nil
}

// includeArgs renders the include search path as flag/dir pairs. A stage
// without an include flag takes no include arguments.
func includeArgs(cfg *common.Config, stage models.StageDefinition) ([]string, error) {
	if stage.IncludeFlag == "" {
		return nil, nil
	}
	dirs, err := absPaths(cfg.IncludeDirs())
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, len(dirs)*2)
	for _, dir := range dirs {
		args = append(args, stage.IncludeFlag, dir)
	}
	return args, nil
}

func absPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]string, len(paths))
	for i, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		out[i] = abs
	}
	return out, nil
}

// commandHash fingerprints an invocation. Argument boundaries are part of
// the identity, so a NUL separator keeps ["-a b"] distinct from ["-a", "b"].
func commandHash(tool string, args []string) string {
	h := sha256.New()
	h.Write([]byte(tool))
	for _, arg := range args {
		h.Write([]byte{0})
		h.Write([]byte(arg))
	}
	return hex.EncodeToString(h.Sum(nil))
}
