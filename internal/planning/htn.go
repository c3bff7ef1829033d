package planning

import (
	"context"
	"fmt"
	"strings"
)

// htn decomposes the goal to primitive tasks and orders them. Children of
// a sequential task run one after another; other siblings only wait for
// their declared dependencies.
func (e *Engine) htn(ctx context.Context, g Goal, horizon Horizon) ([]Step, *task, error) {
	root := e.decompose(g, horizon)
	graph := NewGraph()
	leaves := make(map[string]*task)

	var order func(t *task) (first, last []string, err error)
	order = func(t *task) ([]string, []string, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if t.leaf() {
			graph.AddNode(t.id)
			leaves[t.id] = t
			return []string{t.id}, []string{t.id}, nil
		}

		firsts := make(map[string][]string, len(t.children))
		lasts := make(map[string][]string, len(t.children))
		var first, last []string
		for i, c := range t.children {
			f, l, err := order(c)
			if err != nil {
				return nil, nil, err
			}
			firsts[c.id], lasts[c.id] = f, l
			if t.sequential && i > 0 {
				if err := link(graph, lasts[t.children[i-1].id], f); err != nil {
					return nil, nil, err
				}
			}
			if !t.sequential || i == 0 {
				first = append(first, f...)
			}
			if !t.sequential || i == len(t.children)-1 {
				last = append(last, l...)
			}
		}
		for _, c := range t.children {
			for _, dep := range c.deps {
				if err := link(graph, lasts[dep], firsts[c.id]); err != nil {
					return nil, nil, fmt.Errorf("sub-goal %s: %w", c.name, err)
				}
			}
		}
		return first, last, nil
	}

	if _, _, err := order(root); err != nil {
		return nil, nil, err
	}
	ids, err := graph.TopologicalSort()
	if err != nil {
		return nil, nil, err
	}

	steps := make([]Step, 0, len(ids))
	for _, id := range ids {
		t := leaves[id]
		steps = append(steps, Step{
			ID:           id,
			Name:         t.name,
			GoalID:       t.goalID,
			Phase:        t.phase,
			Dependencies: graph.Predecessors(id),
			Status:       StepPending,
		})
	}
	return steps, root, nil
}

func link(g *Graph, before, after []string) error {
	for _, b := range before {
		for _, a := range after {
			if err := g.AddEdge(b, a); err != nil {
				return err
			}
		}
	}
	return nil
}

var stepWeights = []struct {
	stems  []string
	weight float64
}{
	{[]string{"develop", "implement", "build", "draft", "practice", "run"}, 2},
	{[]string{"market", "test", "research", "interview", "source", "study", "apply"}, 1.5},
	{[]string{"allocate", "define", "review", "assess", "verify", "measure", "outline"}, 0.5},
}

// stepWeight is the relative effort of a step, judged by its verb
func stepWeight(name string) float64 {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return 1
	}
	for _, w := range stepWeights {
		for _, stem := range w.stems {
			if strings.HasPrefix(fields[0], stem) {
				return w.weight
			}
		}
	}
	return 1
}
