// -----------------------------------------------------------------------
// Stage Registry - Suffix-keyed stage lookup and chain resolution
// -----------------------------------------------------------------------

package registry

import (
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
)

// Registry resolves input suffixes to stage definitions. Per-file stages are
// keyed by the one suffix they claim; the link stage is held apart because it
// consumes every object at once instead of a single input file.
type Registry struct {
	stages map[string]models.StageDefinition
	link   *models.StageDefinition
	logger arbor.ILogger
}

// New creates an empty registry
func New(logger arbor.ILogger) *Registry {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Registry{
		stages: make(map[string]models.StageDefinition),
		logger: logger,
	}
}

// FromConfig builds the registry the manifest describes: compile, assemble,
// and link defaults wired to the configured toolchain, replaced or extended
// by [[stages]] entries.
func FromConfig(cfg *common.Config, logger arbor.ILogger) (*Registry, error) {
	r := New(logger)

	defaults := []models.StageDefinition{compileStage(cfg), assembleStage(cfg)}
	link := linkStage(cfg)

	// A [[stages]] entry reusing a default name replaces that default in
	// place; entries with new names register alongside the defaults.
	extras := make([]models.StageDefinition, 0, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		replaced := false
		for i := range defaults {
			if defaults[i].Name == stage.Name {
				defaults[i] = stage
				replaced = true
				break
			}
		}
		if stage.Name == link.Name {
			link = stage
			replaced = true
		}
		if !replaced {
			extras = append(extras, stage)
		}
	}

	for _, stage := range append(defaults, extras...) {
		if err := r.Register(stage); err != nil {
			return nil, err
		}
	}
	if err := r.RegisterLink(link); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Int("stages", len(r.stages)).
		Str("terminal", r.TerminalSuffix()).
		Msg("Stage registry initialized")

	return r, nil
}

// Register adds a per-file stage. A suffix can be claimed exactly once, and
// the link stage's input suffix stays reserved for the link.
func (r *Registry) Register(stage models.StageDefinition) error {
	if existing, ok := r.stages[stage.InputSuffix]; ok {
		return &models.DuplicateStageError{
			Suffix:   stage.InputSuffix,
			Existing: existing.Name,
			Incoming: stage.Name,
		}
	}
	if r.link != nil && r.link.InputSuffix == stage.InputSuffix {
		return &models.DuplicateStageError{
			Suffix:   stage.InputSuffix,
			Existing: r.link.Name,
			Incoming: stage.Name,
		}
	}

	r.stages[stage.InputSuffix] = stage
	r.logger.Debug().
		Str("stage", stage.Name).
		Str("input", stage.InputSuffix).
		Str("output", stage.OutputSuffix).
		Msg("Registered stage")
	return nil
}

// RegisterLink installs the terminal stage folding every object into the
// final artifact
func (r *Registry) RegisterLink(stage models.StageDefinition) error {
	if r.link != nil {
		return &models.DuplicateStageError{
			Suffix:   stage.InputSuffix,
			Existing: r.link.Name,
			Incoming: stage.Name,
		}
	}
	if existing, ok := r.stages[stage.InputSuffix]; ok {
		return &models.DuplicateStageError{
			Suffix:   stage.InputSuffix,
			Existing: existing.Name,
			Incoming: stage.Name,
		}
	}

	link := stage
	r.link = &link
	return nil
}

// Resolve returns the per-file stage claiming a suffix
func (r *Registry) Resolve(suffix string) (models.StageDefinition, error) {
	stage, ok := r.stages[suffix]
	if !ok {
		return models.StageDefinition{}, &models.NoStageError{Suffix: suffix}
	}
	return stage, nil
}

// ChainFor resolves the stage sequence carrying one source file from its
// suffix to the terminal suffix. A suffix may appear once per chain, so a
// definition set that loops fails with a CycleError instead of spinning.
// Sources already at the terminal suffix resolve to an empty chain.
func (r *Registry) ChainFor(path, suffix string) ([]models.StageDefinition, error) {
	if r.link == nil {
		return nil, &models.NoStageError{Path: path, Suffix: suffix}
	}

	var chain []models.StageDefinition
	seen := make(map[string]bool)
	sequence := []string{suffix}

	current := suffix
	for current != r.link.InputSuffix {
		if seen[current] {
			return nil, &models.CycleError{Path: path, Sequence: sequence}
		}
		seen[current] = true

		stage, ok := r.stages[current]
		if !ok {
			return nil, &models.NoStageError{Path: path, Suffix: current}
		}
		chain = append(chain, stage)
		current = stage.OutputSuffix
		sequence = append(sequence, current)
	}

	return chain, nil
}

// TerminalSuffix returns the suffix the link stage consumes
func (r *Registry) TerminalSuffix() string {
	if r.link == nil {
		return ""
	}
	return r.link.InputSuffix
}

// Link returns the link stage definition
func (r *Registry) Link() (models.StageDefinition, bool) {
	if r.link == nil {
		return models.StageDefinition{}, false
	}
	return *r.link, true
}

// Suffixes returns every claimed per-file suffix, sorted
func (r *Registry) Suffixes() []string {
	suffixes := make([]string, 0, len(r.stages))
	for suffix := range r.stages {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	return suffixes
}

func compileStage(cfg *common.Config) models.StageDefinition {
	return models.StageDefinition{
		Name:         "compile",
		Tool:         cfg.Toolchain.Compiler,
		InputSuffix:  ".c",
		OutputSuffix: ".s",
		Args:         []string{"{flags}", "{includes}", "-o", "{output}", "{input}"},
		IncludeFlag:  "-I",
		Flags:        cfg.Toolchain.CompilerFlags,
	}
}

// assembleStage takes no includes: ca65 resolves .include directives against
// the source file's own directory.
func assembleStage(cfg *common.Config) models.StageDefinition {
	return models.StageDefinition{
		Name:         "assemble",
		Tool:         cfg.Toolchain.Assembler,
		InputSuffix:  ".s",
		OutputSuffix: ".o",
		Args:         []string{"{flags}", "-o", "{output}", "{input}"},
		Flags:        cfg.Toolchain.AssemblerFlags,
	}
}

func linkStage(cfg *common.Config) models.StageDefinition {
	return models.StageDefinition{
		Name:         "link",
		Tool:         cfg.Toolchain.Linker,
		InputSuffix:  ".o",
		OutputSuffix: cfg.ResolveProfile().ROMExtension,
		Args:         []string{"{flags}", "-o", "{output}", "{inputs}"},
		Flags:        cfg.Toolchain.LinkerFlags,
	}
}
