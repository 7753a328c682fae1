// -----------------------------------------------------------------------
// Build Graph - Node store with dependency edges and cycle validation
// -----------------------------------------------------------------------

package graph

import (
	"github.com/ternarybob/fabrica/internal/models"
)

// Graph holds the build nodes for one run plus their dependency edges. An
// edge runs from producer to consumer. The Builder assembles the graph once
// and validates it acyclic; during execution its structure is read-only, and
// only node status fields mutate, only on the engine's coordinator goroutine.
type Graph struct {
	nodes      []*models.BuildNode
	byID       map[string]*models.BuildNode
	byOutput   map[string]*models.BuildNode
	stages     map[string]models.StageDefinition // node ID -> producing stage
	deps       map[string][]string               // node ID -> dependency node IDs
	dependents map[string][]string               // node ID -> dependent node IDs
	link       *models.BuildNode
	artifacts  []string // sorted object paths feeding the link
}

func newGraph() *Graph {
	return &Graph{
		byID:       make(map[string]*models.BuildNode),
		byOutput:   make(map[string]*models.BuildNode),
		stages:     make(map[string]models.StageDefinition),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// add appends a node. Output path ownership is exclusive, so a second claim
// on the same output is a construction error.
func (g *Graph) add(node *models.BuildNode, stage models.StageDefinition) error {
	if existing, ok := g.byOutput[node.Output]; ok {
		return &models.OutputConflictError{
			Output: node.Output,
			First:  claimant(existing),
			Second: claimant(node),
		}
	}
	g.nodes = append(g.nodes, node)
	g.byID[node.ID] = node
	g.byOutput[node.Output] = node
	g.stages[node.ID] = stage
	return nil
}

// addEdge records that dependent consumes dependency's output
func (g *Graph) addEdge(dependency, dependent string) {
	g.deps[dependent] = append(g.deps[dependent], dependency)
	g.dependents[dependency] = append(g.dependents[dependency], dependent)
}

// Nodes returns every node in insertion order. Insertion order is already a
// valid topological order: chains append producer before consumer and the
// link node is added last.
func (g *Graph) Nodes() []*models.BuildNode {
	return g.nodes
}

// Node returns a node by ID
func (g *Graph) Node(id string) (*models.BuildNode, bool) {
	node, ok := g.byID[id]
	return node, ok
}

// Definition returns the stage definition that produces a node's output
func (g *Graph) Definition(nodeID string) (models.StageDefinition, bool) {
	stage, ok := g.stages[nodeID]
	return stage, ok
}

// Dependencies returns the node IDs a node consumes from
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the node IDs consuming a node's output
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Link returns the terminal link node
func (g *Graph) Link() *models.BuildNode {
	return g.link
}

// Artifacts returns the sorted object paths the link consumes
func (g *Graph) Artifacts() []string {
	return g.artifacts
}

// Len returns the node count
func (g *Graph) Len() int {
	return len(g.nodes)
}

const (
	colorWhite = iota
	colorGrey
	colorBlack
)

// Validate rejects cyclic graphs. Chain resolution already bounds each
// file's suffix sequence, so this guards the assembled graph as a whole,
// including stage sets no single chain walks end to end.
func (g *Graph) Validate() error {
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) *models.CycleError
	visit = func(id string) *models.CycleError {
		color[id] = colorGrey
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			switch color[dep] {
			case colorGrey:
				// Trim the stack to the cycle itself for the report
				start := 0
				for i, frame := range stack {
					if frame == dep {
						start = i
						break
					}
				}
				sequence := append([]string{}, stack[start:]...)
				sequence = append(sequence, dep)
				return &models.CycleError{Sequence: sequence}
			case colorWhite:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = colorBlack
		return nil
	}

	for _, node := range g.nodes {
		if color[node.ID] == colorWhite {
			if cycle := visit(node.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func claimant(node *models.BuildNode) string {
	if node.Link {
		return "the link artifact"
	}
	return node.Source
}
