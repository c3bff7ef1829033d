package planning

import (
	"fmt"
	"strings"
)

// Graph is a directed precedence graph over step ids. An edge before->after
// means before must finish before after starts. Node insertion order is kept
// so topological sorts are deterministic.
type Graph struct {
	order []string
	index map[string]int
	edges map[string][]string // node -> successors
	preds map[string][]string // node -> predecessors
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[string][]string),
		preds: make(map[string][]string),
	}
}

// AddNode adds a node if it is not present
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
}

// HasNode reports whether id is in the graph
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// AddEdge orders before ahead of after. It fails with *CycleError when the
// edge would close a cycle; duplicate edges are ignored.
func (g *Graph) AddEdge(before, after string) error {
	g.AddNode(before)
	g.AddNode(after)
	for _, s := range g.edges[before] {
		if s == after {
			return nil
		}
	}
	if g.WouldCreateCycle(before, after) {
		return &CycleError{Path: append(g.path(after, before), after)}
	}
	g.edges[before] = append(g.edges[before], after)
	g.preds[after] = append(g.preds[after], before)
	return nil
}

// WouldCreateCycle reports whether before->after would close a cycle
func (g *Graph) WouldCreateCycle(before, after string) bool {
	return g.Reaches(after, before)
}

// Reaches reports whether to is reachable from from
func (g *Graph) Reaches(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range g.edges[cur] {
			if n == to {
				return true
			}
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// path returns a BFS path from -> to, or nil
func (g *Graph) path(from, to string) []string {
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var out []string
			for n := to; n != ""; n = parent[n] {
				out = append([]string{n}, out...)
			}
			return out
		}
		for _, n := range g.edges[cur] {
			if _, seen := parent[n]; !seen {
				parent[n] = cur
				queue = append(queue, n)
			}
		}
	}
	return nil
}

// HasCycle performs DFS-based cycle detection
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var dfs func(n string) bool
	dfs = func(n string) bool {
		color[n] = grey
		for _, s := range g.edges[n] {
			switch color[s] {
			case grey:
				return true
			case white:
				if dfs(s) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, n := range g.order {
		if color[n] == white && dfs(n) {
			return true
		}
	}
	return false
}

// TopologicalSort returns nodes in precedence order using Kahn's algorithm.
// Among ready nodes the earliest inserted goes first.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, n := range g.order {
		inDegree[n] = len(g.preds[n])
	}

	var ready []string
	for _, n := range g.order {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		best := 0
		for i := range ready {
			if g.index[ready[i]] < g.index[ready[best]] {
				best = i
			}
		}
		cur := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		result = append(result, cur)

		for _, s := range g.edges[cur] {
			inDegree[s]--
			if inDegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}

	if len(result) != len(g.order) {
		return nil, &CycleError{}
	}
	return result, nil
}

// Predecessors returns the direct predecessors of id
func (g *Graph) Predecessors(id string) []string {
	return append([]string(nil), g.preds[id]...)
}

// Successors returns the direct successors of id
func (g *Graph) Successors(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Nodes returns node ids in insertion order
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Clone returns an independent copy
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	c.order = append([]string(nil), g.order...)
	for k, v := range g.index {
		c.index[k] = v
	}
	for k, v := range g.edges {
		c.edges[k] = append([]string(nil), v...)
	}
	for k, v := range g.preds {
		c.preds[k] = append([]string(nil), v...)
	}
	return c
}

// CycleError represents a circular ordering
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}
