package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fabrica/internal/models"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func stageFixture(name, tool, inputSuffix, outputSuffix string) models.StageDefinition {
	return models.StageDefinition{
		Name:         name,
		Tool:         tool,
		InputSuffix:  inputSuffix,
		OutputSuffix: outputSuffix,
		Args:         []string{"{input}", "-o", "{output}"},
	}
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "nes", config.Project.System)
	assert.Equal(t, "src", config.Directories.Source)
	assert.Equal(t, "cc65", config.Toolchain.Compiler)
	assert.Equal(t, "ca65", config.Toolchain.Assembler)
	assert.Equal(t, "ld65", config.Toolchain.Linker)
	assert.Equal(t, defaultWorkers, config.Engine.Workers)
	assert.False(t, config.Engine.KeepGoing)
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_MergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, "fabrica.toml", `
[project]
name = "starfield"
libraries = ["famitone"]

[toolchain]
compiler = "cl65"

[[stages]]
name = "compress"
tool = "pack65"
input_suffix = ".chr"
output_suffix = ".chz"
args = ["{input}", "{output}"]

[[templates]]
file = "palette.c.tmpl"
context = "palettes/base.yaml"
`)

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "starfield", config.Project.Name)
	assert.Equal(t, "cl65", config.Toolchain.Compiler)
	// Untouched sections keep their defaults
	assert.Equal(t, "ca65", config.Toolchain.Assembler)
	assert.Equal(t, "src", config.Directories.Source)
	require.Len(t, config.Stages, 1)
	assert.Equal(t, ".chr", config.Stages[0].InputSuffix)
	require.Len(t, config.Templates, 1)
	assert.Equal(t, "palette.c.tmpl", config.Templates[0].File)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[project]
name = "starfield"
system = "nes"
`)
	local := writeConfigFile(t, "local.toml", `
[project]
name = "starfield-dev"
`)

	config, err := LoadFromFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, "starfield-dev", config.Project.Name)
	assert.Equal(t, "nes", config.Project.System)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	path := writeConfigFile(t, "broken.toml", "[project\nname = ")
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FABRICA_WORKERS", "8")
	t.Setenv("FABRICA_KEEP_GOING", "true")
	t.Setenv("FABRICA_COMPILER", "cc65-git")
	t.Setenv("FABRICA_LOG_OUTPUT", "stdout, file")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8, config.Engine.Workers)
	assert.True(t, config.Engine.KeepGoing)
	assert.Equal(t, "cc65-git", config.Toolchain.Compiler)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
}

func TestApplyEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("FABRICA_WORKERS", "many")
	t.Setenv("FABRICA_STAGE_TIMEOUT", "soon")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, defaultWorkers, config.Engine.Workers)
	assert.Equal(t, "", config.Engine.StageTimeout)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, "demo.nes", 2, true, true, "debug")

	assert.Equal(t, "demo.nes", config.Project.Artifact)
	assert.Equal(t, 2, config.Engine.Workers)
	assert.True(t, config.Engine.KeepGoing)
	assert.True(t, config.Engine.DryRun)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestApplyFlagOverrides_ZeroValuesDoNotOverride(t *testing.T) {
	config := NewDefaultConfig()
	config.Engine.KeepGoing = true

	ApplyFlagOverrides(config, "", 0, false, false, "")

	assert.Equal(t, "", config.Project.Artifact)
	assert.Equal(t, defaultWorkers, config.Engine.Workers)
	assert.True(t, config.Engine.KeepGoing)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestValidate_UnknownSystem(t *testing.T) {
	config := NewDefaultConfig()
	config.Project.System = "dreamcast"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target system")
}

func TestValidate_SuffixWithoutDot(t *testing.T) {
	config := NewDefaultConfig()
	config.Stages = append(config.Stages, stageFixture("compress", "pack65", "chr", ".chz"))

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with a dot")
}

func TestValidate_BadStageTimeout(t *testing.T) {
	config := NewDefaultConfig()
	config.Engine.StageTimeout = "whenever"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage_timeout")
}

func TestResolveProfile(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, "nes", config.ResolveProfile().Name)

	config.Project.System = "snes"
	assert.Equal(t, "wdc65816", config.ResolveProfile().CPU)

	// Without an explicit system, the artifact extension decides
	config.Project.System = ""
	config.Project.Artifact = "game.sms"
	assert.Equal(t, "z80", config.ResolveProfile().CPU)
}

func TestArtifactName(t *testing.T) {
	config := NewDefaultConfig()
	config.Project.Name = "starfield"
	assert.Equal(t, "starfield.nes", config.ArtifactName())

	config.Project.Artifact = "demo.nes"
	assert.Equal(t, "demo.nes", config.ArtifactName())
}

func TestIncludeDirs(t *testing.T) {
	config := NewDefaultConfig()
	config.Project.Libraries = []string{"famitone", "neslib"}

	dirs := config.IncludeDirs()
	assert.Equal(t, []string{
		"src",
		filepath.Join("target", "generated"),
		filepath.Join("libs", "famitone"),
		filepath.Join("libs", "neslib"),
	}, dirs)
}

func TestEngineConfig_WorkerCount(t *testing.T) {
	engine := EngineConfig{Workers: 0}
	assert.Equal(t, defaultWorkers, engine.WorkerCount())

	engine.Workers = 12
	assert.Equal(t, 12, engine.WorkerCount())
}

func TestEngineConfig_Timeout(t *testing.T) {
	engine := EngineConfig{}
	assert.Equal(t, time.Duration(0), engine.Timeout())

	engine.StageTimeout = "90s"
	assert.Equal(t, 90*time.Second, engine.Timeout())
}
