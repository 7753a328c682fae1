package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/fabrica/internal/models"
)

// Config represents the build manifest plus runtime settings
type Config struct {
	Project     ProjectConfig            `toml:"project"`
	Directories DirectoriesConfig        `toml:"directories"`
	Toolchain   ToolchainConfig          `toml:"toolchain"`
	Stages      []models.StageDefinition `toml:"stages" validate:"dive"`    // Extra or overriding stage definitions
	Templates   []models.TemplateSpec    `toml:"templates" validate:"dive"` // Per-template instantiation entries
	Engine      EngineConfig             `toml:"engine"`
	Logging     LoggingConfig            `toml:"logging"`
}

// ProjectConfig identifies the build target
type ProjectConfig struct {
	Name      string   `toml:"name" validate:"required"` // Project name, also the artifact base name
	System    string   `toml:"system"`                   // Target system (nes, snes, gb, ...); inferred from the artifact extension when empty
	Artifact  string   `toml:"artifact"`                 // Final artifact file name (default: <name> + system ROM extension)
	Libraries []string `toml:"libraries"`                // Library names resolved under libs_dir and added as include roots
	LibsDir   string   `toml:"libs_dir"`                 // Directory holding library source trees
}

// DirectoriesConfig lays out the project tree
type DirectoriesConfig struct {
	Source    string `toml:"source" validate:"required"`    // Hand-written sources
	Generated string `toml:"generated" validate:"required"` // Rendered template outputs
	Templates string `toml:"templates"`                     // Template files (*.tmpl)
	Build     string `toml:"build" validate:"required"`     // Intermediate objects and the final artifact
	State     string `toml:"state"`                         // Incremental build state database
}

// ToolchainConfig names the external tools and their default flags
type ToolchainConfig struct {
	Compiler       string   `toml:"compiler"`        // C compiler binary (default: cc65)
	CompilerFlags  []string `toml:"compiler_flags"`  // Flags substituted for {flags} in the compile stage
	Assembler      string   `toml:"assembler"`       // Assembler binary (default: ca65)
	AssemblerFlags []string `toml:"assembler_flags"` // Flags substituted for {flags} in the assemble stage
	Linker         string   `toml:"linker"`          // Linker binary (default: ld65)
	LinkerFlags    []string `toml:"linker_flags"`    // Flags substituted for {flags} in the link stage, e.g. ["-C", "nes.cfg"]
}

// EngineConfig controls execution behavior
type EngineConfig struct {
	Workers      int    `toml:"workers"`       // Concurrent tool invocations (default: 1, sequential)
	KeepGoing    bool   `toml:"keep_going"`    // Continue independent chains after a failure
	DryRun       bool   `toml:"dry_run"`       // Plan and report without invoking tools
	StageTimeout string `toml:"stage_timeout"` // Per-invocation timeout as duration string; empty means unbounded
}

// LoggingConfig controls the arbor logger
type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05")
	MinEventLevel string   `toml:"min_event_level"` // Minimum level persisted to the run log store
}

// Sequential execution is the default; -j opts into parallel chains.
const defaultWorkers = 1

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for stable builds.
// Only user-facing settings should be exposed in fabrica.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:    "game",
			System:  "nes",
			LibsDir: "libs",
		},
		Directories: DirectoriesConfig{
			Source:    "src",
			Generated: filepath.Join("target", "generated"),
			Templates: "templates",
			Build:     filepath.Join("target", "build"),
			State:     filepath.Join("target", "state"),
		},
		Toolchain: ToolchainConfig{
			Compiler:       "cc65",
			CompilerFlags:  []string{"-Oirs", "--add-source"},
			Assembler:      "ca65",
			AssemblerFlags: []string{"-g"},
			Linker:         "ld65",
			LinkerFlags:    []string{}, // Linker config (-C <file>) is project-specific
		},
		Engine: EngineConfig{
			Workers:      defaultWorkers,
			KeepGoing:    false, // Stop launching new work on first failure
			DryRun:       false,
			StageTimeout: "", // No timeout unless the manifest bounds hung tools
		},
		Logging: LoggingConfig{
			Level:         "info",                     // Info level for production (debug|info|warn|error)
			Output:        []string{"stdout", "file"}, // Log to both console and file
			TimeFormat:    "15:04:05",
			MinEventLevel: "info", // Persist info and above to the run log store
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
// Example: LoadFromFiles("base.toml", "local.toml") - local.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Project configuration
	if system := os.Getenv("FABRICA_SYSTEM"); system != "" {
		config.Project.System = system
	}
	if artifact := os.Getenv("FABRICA_ARTIFACT"); artifact != "" {
		config.Project.Artifact = artifact
	}
	if libsDir := os.Getenv("FABRICA_LIBS_DIR"); libsDir != "" {
		config.Project.LibsDir = libsDir
	}

	// Directory configuration
	if sourceDir := os.Getenv("FABRICA_SOURCE_DIR"); sourceDir != "" {
		config.Directories.Source = sourceDir
	}
	if generatedDir := os.Getenv("FABRICA_GENERATED_DIR"); generatedDir != "" {
		config.Directories.Generated = generatedDir
	}
	if templatesDir := os.Getenv("FABRICA_TEMPLATES_DIR"); templatesDir != "" {
		config.Directories.Templates = templatesDir
	}
	if buildDir := os.Getenv("FABRICA_BUILD_DIR"); buildDir != "" {
		config.Directories.Build = buildDir
	}
	if stateDir := os.Getenv("FABRICA_STATE_DIR"); stateDir != "" {
		config.Directories.State = stateDir
	}

	// Toolchain configuration
	if compiler := os.Getenv("FABRICA_COMPILER"); compiler != "" {
		config.Toolchain.Compiler = compiler
	}
	if assembler := os.Getenv("FABRICA_ASSEMBLER"); assembler != "" {
		config.Toolchain.Assembler = assembler
	}
	if linker := os.Getenv("FABRICA_LINKER"); linker != "" {
		config.Toolchain.Linker = linker
	}

	// Engine configuration
	if workers := os.Getenv("FABRICA_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Engine.Workers = w
		}
	}
	if keepGoing := os.Getenv("FABRICA_KEEP_GOING"); keepGoing != "" {
		if kg, err := strconv.ParseBool(keepGoing); err == nil {
			config.Engine.KeepGoing = kg
		}
	}
	if timeout := os.Getenv("FABRICA_STAGE_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Engine.StageTimeout = timeout
		}
	}

	// Logging configuration
	if level := os.Getenv("FABRICA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FABRICA_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("FABRICA_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, target string, jobs int, keepGoing, dryRun bool, logLevel string) {
	// Command-line flags have highest priority
	if target != "" {
		config.Project.Artifact = target
	}
	if jobs > 0 {
		config.Engine.Workers = jobs
	}
	if keepGoing {
		config.Engine.KeepGoing = true
	}
	if dryRun {
		config.Engine.DryRun = true
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks the configuration before any stage runs. Manifest problems
// must fail the whole build here, not surface later as node failures.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Project.System != "" {
		if _, ok := models.ProfileFor(c.Project.System); !ok {
			return fmt.Errorf("unknown target system %q (supported: %s)", c.Project.System, strings.Join(models.SystemNames(), ", "))
		}
	}

	for _, stage := range c.Stages {
		if !strings.HasPrefix(stage.InputSuffix, ".") {
			return fmt.Errorf("stage %q: input suffix %q must start with a dot", stage.Name, stage.InputSuffix)
		}
		if !strings.HasPrefix(stage.OutputSuffix, ".") {
			return fmt.Errorf("stage %q: output suffix %q must start with a dot", stage.Name, stage.OutputSuffix)
		}
	}

	if c.Engine.StageTimeout != "" {
		if _, err := time.ParseDuration(c.Engine.StageTimeout); err != nil {
			return fmt.Errorf("invalid stage_timeout %q: %w", c.Engine.StageTimeout, err)
		}
	}

	return nil
}

// ResolveProfile returns the system profile for the build. An explicit system
// wins; otherwise the artifact extension decides; otherwise the nes default.
func (c *Config) ResolveProfile() models.SystemProfile {
	if c.Project.System != "" {
		if profile, ok := models.ProfileFor(c.Project.System); ok {
			return profile
		}
	}
	if c.Project.Artifact != "" {
		if profile, ok := models.ProfileForExtension(filepath.Ext(c.Project.Artifact)); ok {
			return profile
		}
	}
	return models.DefaultProfile()
}

// ArtifactName returns the final artifact file name
func (c *Config) ArtifactName() string {
	if c.Project.Artifact != "" {
		return c.Project.Artifact
	}
	return c.Project.Name + c.ResolveProfile().ROMExtension
}

// ArtifactPath returns the artifact location inside the build directory
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.Directories.Build, c.ArtifactName())
}

// IncludeDirs returns the include roots passed to stages that accept them.
// Library roots resolve under libs_dir.
func (c *Config) IncludeDirs() []string {
	dirs := []string{c.Directories.Source, c.Directories.Generated}
	for _, lib := range c.Project.Libraries {
		dirs = append(dirs, filepath.Join(c.Project.LibsDir, lib))
	}
	return dirs
}

// WorkerCount returns the effective worker pool size
func (e *EngineConfig) WorkerCount() int {
	if e.Workers < 1 {
		return defaultWorkers
	}
	return e.Workers
}

// Timeout returns the per-invocation timeout, zero meaning no limit
func (e *EngineConfig) Timeout() time.Duration {
	if e.StageTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(e.StageTimeout)
	if err != nil {
		return 0
	}
	return d
}
