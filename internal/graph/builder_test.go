package graph

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
	"github.com/ternarybob/fabrica/internal/registry"
)

func testBuilder(t *testing.T, config *common.Config) *Builder {
	t.Helper()
	reg, err := registry.FromConfig(config, nil)
	require.NoError(t, err)
	return NewBuilder(config, reg, nil)
}

func source(dir, name string) models.SourceFile {
	return models.NewSourceFile(filepath.Join(dir, name), models.OriginWritten)
}

func nodeIDs(g *Graph) []string {
	ids := make([]string, 0, g.Len())
	for _, node := range g.Nodes() {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestBuild_SingleCSource(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Project.Name = "game"
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{source("src", "foo.c")})
	require.NoError(t, err)

	// Exactly one node per stage hop plus the link
	assert.Equal(t, []string{"compile:foo.s", "assemble:foo.o", "link:game.nes"}, nodeIDs(g))

	compile, ok := g.Node("compile:foo.s")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("src", "foo.c"), compile.Input())
	assert.Equal(t, filepath.Join("target", "build", "foo.s"), compile.Output)

	assemble, ok := g.Node("assemble:foo.o")
	require.True(t, ok)
	assert.Equal(t, compile.Output, assemble.Input())
	assert.Equal(t, []string{"compile:foo.s"}, g.Dependencies("assemble:foo.o"))

	link := g.Link()
	require.NotNil(t, link)
	assert.True(t, link.Link)
	assert.Equal(t, []string{filepath.Join("target", "build", "foo.o")}, g.Artifacts())
	assert.Equal(t, g.Artifacts(), link.Inputs)
	assert.Equal(t, []string{"assemble:foo.o"}, g.Dependencies(link.ID))
}

func TestBuild_MixedSources(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Project.Name = "game"
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{
		source("src", "main.c"),
		source("src", "util.s"),
	})
	require.NoError(t, err)

	// main.c contributes two hops, util.s one, plus the link
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{
		filepath.Join("target", "build", "main.o"),
		filepath.Join("target", "build", "util.o"),
	}, g.Artifacts())

	link := g.Link()
	assert.ElementsMatch(t, []string{"assemble:main.o", "assemble:util.o"}, g.Dependencies(link.ID))
}

func TestBuild_TerminalSourceFeedsLinkDirectly(t *testing.T) {
	config := common.NewDefaultConfig()
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{source("src", "blob.o")})
	require.NoError(t, err)

	// No per-file node: the object participates in the link as-is
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []string{filepath.Join("src", "blob.o")}, g.Artifacts())
	assert.Empty(t, g.Dependencies(g.Link().ID))
}

func TestBuild_NoSources(t *testing.T) {
	builder := testBuilder(t, common.NewDefaultConfig())

	_, err := builder.Build(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no buildable sources")
}

func TestBuild_UnclaimedSuffixIsFatal(t *testing.T) {
	builder := testBuilder(t, common.NewDefaultConfig())

	_, err := builder.Build([]models.SourceFile{
		source("src", "main.c"),
		source("src", "music.wav"),
	})

	var noStage *models.NoStageError
	require.True(t, errors.As(err, &noStage))
	assert.Equal(t, filepath.Join("src", "music.wav"), noStage.Path)
	assert.Equal(t, ".wav", noStage.Suffix)
}

func TestBuild_UnclaimedSuffixExcludedWithKeepGoing(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Engine.KeepGoing = true
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{
		source("src", "main.c"),
		source("src", "music.wav"),
	})
	require.NoError(t, err)

	// main.c's chain plus the link; the excluded file contributes nothing
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{filepath.Join("target", "build", "main.o")}, g.Artifacts())
}

func TestBuild_AllSourcesExcluded(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Engine.KeepGoing = true
	builder := testBuilder(t, config)

	_, err := builder.Build([]models.SourceFile{source("src", "music.wav")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to link")
}

func TestBuild_OutputConflict(t *testing.T) {
	builder := testBuilder(t, common.NewDefaultConfig())

	// foo.c assembles through foo.s into foo.o; a hand-written foo.s claims
	// the same object
	_, err := builder.Build([]models.SourceFile{
		source("src", "foo.c"),
		source("src", "foo.s"),
	})

	var conflict *models.OutputConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, filepath.Join("target", "build", "foo.o"), conflict.Output)
	assert.Equal(t, filepath.Join("src", "foo.c"), conflict.First)
	assert.Equal(t, filepath.Join("src", "foo.s"), conflict.Second)
}

func TestBuild_ArtifactCollidingWithObject(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Project.Artifact = "foo.o"
	builder := testBuilder(t, config)

	_, err := builder.Build([]models.SourceFile{source("src", "foo.c")})

	var conflict *models.OutputConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "the link artifact", conflict.Second)
}

func TestBuild_MultiHopChain(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Stages = []models.StageDefinition{{
		Name:         "pixconv",
		Tool:         "px2c",
		InputSuffix:  ".px",
		OutputSuffix: ".c",
		Args:         []string{"{input}", "-o", "{output}"},
	}}
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{source("src", "sprites.px")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pixconv:sprites.c",
		"compile:sprites.s",
		"assemble:sprites.o",
		g.Link().ID,
	}, nodeIDs(g))
}

func TestBuild_InsertionOrderIsTopological(t *testing.T) {
	config := common.NewDefaultConfig()
	builder := testBuilder(t, config)

	g, err := builder.Build([]models.SourceFile{
		source("src", "main.c"),
		source("src", "sound.c"),
		source("src", "util.s"),
	})
	require.NoError(t, err)

	position := make(map[string]int, g.Len())
	for i, node := range g.Nodes() {
		position[node.ID] = i
	}
	for _, node := range g.Nodes() {
		for _, dep := range g.Dependencies(node.ID) {
			assert.Less(t, position[dep], position[node.ID],
				"dependency %s must precede %s", dep, node.ID)
		}
	}
	assert.Equal(t, g.Len()-1, position[g.Link().ID])
}

func TestValidate_DetectsCycle(t *testing.T) {
	g := newGraph()
	a := &models.BuildNode{ID: "a", Output: "out/a", Status: models.NodeStatusPending}
	b := &models.BuildNode{ID: "b", Output: "out/b", Status: models.NodeStatusPending}
	require.NoError(t, g.add(a, models.StageDefinition{Name: "a"}))
	require.NoError(t, g.add(b, models.StageDefinition{Name: "b"}))
	g.addEdge("a", "b")
	g.addEdge("b", "a")

	err := g.Validate()
	var cycle *models.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Contains(t, cycle.Sequence, "a")
	assert.Contains(t, cycle.Sequence, "b")
}

func TestBuild_GraphIsAcyclic(t *testing.T) {
	builder := testBuilder(t, common.NewDefaultConfig())

	g, err := builder.Build([]models.SourceFile{
		source("src", "main.c"),
		source("src", "util.s"),
	})
	require.NoError(t, err)
	assert.NoError(t, g.Validate())
}
