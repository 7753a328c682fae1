// -----------------------------------------------------------------------
// Dependency Graph Builder - One stage chain per source, one link node
// -----------------------------------------------------------------------

package graph

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
	"github.com/ternarybob/fabrica/internal/registry"
)

// Builder assembles the build graph for one run: one node per stage hop per
// source file, all chains converging on a single synthetic link node. The
// graph must be fully valid before the engine runs anything; construction
// errors are fatal and nothing executes.
type Builder struct {
	config   *common.Config
	registry *registry.Registry
	logger   arbor.ILogger
}

// NewBuilder creates a graph builder
func NewBuilder(config *common.Config, reg *registry.Registry, logger arbor.ILogger) *Builder {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Builder{
		config:   config,
		registry: reg,
		logger:   logger,
	}
}

// Build walks every discovered source through the registry and assembles the
// graph. A source whose suffix resolves to no chain is fatal, unless
// keep-going excludes the file after reporting it once. Intermediate outputs
// land flat in the build directory, so two sources sharing a base name
// collide and fail construction.
func (b *Builder) Build(sources []models.SourceFile) (*Graph, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no buildable sources discovered")
	}

	link, ok := b.registry.Link()
	if !ok {
		return nil, fmt.Errorf("no link stage registered")
	}

	g := newGraph()
	var artifacts []string
	var chainEnds []string
	excluded := 0

	for _, source := range sources {
		chain, err := b.registry.ChainFor(source.Path, source.Suffix)
		if err != nil {
			var noStage *models.NoStageError
			if errors.As(err, &noStage) && b.config.Engine.KeepGoing {
				// Reported once per file, then the file leaves the build
				b.logger.Warn().
					Str("file", source.Path).
					Str("suffix", noStage.Suffix).
					Msg("No stage claims suffix, excluding file")
				excluded++
				continue
			}
			return nil, err
		}

		if len(chain) == 0 {
			// Already at the terminal suffix: feeds the link directly
			artifacts = append(artifacts, source.Path)
			continue
		}

		input := source.Path
		prevID := ""
		for _, stage := range chain {
			outputName := models.BaseName(source.Name) + stage.OutputSuffix
			node := &models.BuildNode{
				ID:     stage.Name + ":" + outputName,
				Stage:  stage.Name,
				Source: source.Path,
				Inputs: []string{input},
				Output: filepath.Join(b.config.Directories.Build, outputName),
				Status: models.NodeStatusPending,
			}
			if err := g.add(node, stage); err != nil {
				return nil, err
			}
			if prevID != "" {
				g.addEdge(prevID, node.ID)
			}
			input = node.Output
			prevID = node.ID
		}

		chainEnds = append(chainEnds, prevID)
		artifacts = append(artifacts, input)
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("all %d discovered sources were excluded, nothing to link", excluded)
	}

	sort.Strings(artifacts)
	g.artifacts = artifacts

	linkNode := &models.BuildNode{
		ID:     link.Name + ":" + b.config.ArtifactName(),
		Stage:  link.Name,
		Inputs: artifacts,
		Output: b.config.ArtifactPath(),
		Link:   true,
		Status: models.NodeStatusPending,
	}
	if err := g.add(linkNode, link); err != nil {
		return nil, err
	}
	g.link = linkNode

	sort.Strings(chainEnds)
	for _, id := range chainEnds {
		g.addEdge(id, linkNode.ID)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	b.logger.Info().
		Int("nodes", g.Len()).
		Int("objects", len(artifacts)).
		Int("excluded", excluded).
		Str("artifact", linkNode.Output).
		Msg("Build graph assembled")

	return g, nil
}
