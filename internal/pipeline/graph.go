// Package pipeline orchestrates the warehouse build as an explicit
// dependency graph. The ordering lives in the graph, not in a hand-written
// call sequence, so adding a step means declaring its dependencies and
// nothing else.
package pipeline

import (
	"sort"

	"github.com/tphakala/medtel-go/internal/errors"
)

// Step is one unit of pipeline work. Run returns the number of rows the
// step produced.
type Step interface {
	Name() string
	Deps() []string
	Run(ctx *StepContext) (int64, error)
}

// Graph holds the registered steps and derives a deterministic execution
// order from their declared dependencies.
type Graph struct {
	steps map[string]Step
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{steps: make(map[string]Step)}
}

// Add registers a step. Duplicate names are rejected.
func (g *Graph) Add(step Step) error {
	name := step.Name()
	if name == "" {
		return errors.Newf("step has no name").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, exists := g.steps[name]; exists {
		return errors.Newf("duplicate step %q", name).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	g.steps[name] = step
	return nil
}

// Step looks up a registered step by name
func (g *Graph) Step(name string) (Step, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Names returns all registered step names, sorted
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.steps))
	for name := range g.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependents returns the direct dependents of a step, sorted
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, step := range g.steps {
		for _, dep := range step.Deps() {
			if dep == name {
				out = append(out, step.Name())
			}
		}
	}
	sort.Strings(out)
	return out
}

// Layers groups the steps into execution waves using Kahn's algorithm:
// every step in a layer depends only on steps in earlier layers, so a layer
// may run concurrently. Names within a layer are sorted, which makes the
// whole schedule deterministic. Unknown dependencies and cycles are
// reported as errors.
func (g *Graph) Layers() ([][]string, error) {
	indegree := make(map[string]int, len(g.steps))
	for name, step := range g.steps {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range step.Deps() {
			if _, known := g.steps[dep]; !known {
				return nil, errors.Newf("step %q depends on unknown step %q", name, dep).
					Component("pipeline").
					Category(errors.CategoryValidation).
					Build()
			}
			indegree[name]++
		}
	}

	var layers [][]string
	placed := 0
	for placed < len(g.steps) {
		var layer []string
		for name, deg := range indegree {
			if deg == 0 {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			remaining := make([]string, 0, len(indegree))
			for name, deg := range indegree {
				if deg > 0 {
					remaining = append(remaining, name)
				}
			}
			sort.Strings(remaining)
			return nil, errors.Newf("dependency cycle involving steps %v", remaining).
				Component("pipeline").
				Category(errors.CategoryValidation).
				Build()
		}
		sort.Strings(layer)

		for _, name := range layer {
			delete(indegree, name)
		}
		for _, done := range layer {
			for _, dependent := range g.Dependents(done) {
				if _, pending := indegree[dependent]; pending {
					indegree[dependent]--
				}
			}
		}

		layers = append(layers, layer)
		placed += len(layer)
	}

	return layers, nil
}
