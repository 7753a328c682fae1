// -----------------------------------------------------------------------
// Stage Definition - One external transformation from suffix to suffix
// -----------------------------------------------------------------------

package models

// Placeholder names usable inside a stage's argument template. List-valued
// placeholders splice into the argument vector in place.
const (
	PlaceholderInput    = "input"    // Primary input path (single-input stages)
	PlaceholderInputs   = "inputs"   // All input paths (the link stage)
	PlaceholderOutput   = "output"   // Output path
	PlaceholderIncludes = "includes" // Include directories, each prefixed with IncludeFlag
	PlaceholderFlags    = "flags"    // Stage-specific flags
)

// StageDefinition declares one external transformation: which suffix pair it
// maps between and how to invoke the tool.
// Definitions are configuration: loaded once at startup, never mutated during
// a run. Multiple definitions chain (suffix A->B, B->C) until the terminal
// object suffix feeding the link stage.
type StageDefinition struct {
	Name         string   `toml:"name" json:"name" validate:"required"`                   // Stage identifier, e.g. "compile"
	Tool         string   `toml:"tool" json:"tool" validate:"required"`                   // Executable to invoke, e.g. "cc65"
	InputSuffix  string   `toml:"input_suffix" json:"input_suffix" validate:"required"`   // Claimed suffix including the dot
	OutputSuffix string   `toml:"output_suffix" json:"output_suffix" validate:"required"` // Produced suffix including the dot
	Args         []string `toml:"args" json:"args"`                                       // Argument template with {input}/{output}/{includes}/{flags}
	IncludeFlag  string   `toml:"include_flag" json:"include_flag,omitempty"`             // Flag emitted before each include dir; empty disables includes
	Flags        []string `toml:"flags" json:"flags,omitempty"`                           // Stage-specific flags substituted for {flags}
}

// CommandResult captures one external tool invocation.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}
