package planning

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"
)

type state map[string]bool

func newState(facts []string) state {
	s := make(state, len(facts))
	for _, f := range facts {
		s[normalizeFact(f)] = true
	}
	return s
}

func (s state) key() string {
	facts := make([]string, 0, len(s))
	for f := range s {
		facts = append(facts, f)
	}
	sort.Strings(facts)
	return strings.Join(facts, "|")
}

func (s state) satisfies(facts []string) bool {
	for _, f := range facts {
		if !s[normalizeFact(f)] {
			return false
		}
	}
	return true
}

func (s state) unmet(facts []string) int {
	n := 0
	for _, f := range facts {
		if !s[normalizeFact(f)] {
			n++
		}
	}
	return n
}

func (s state) apply(a Action) state {
	next := make(state, len(s)+len(a.Add))
	for f := range s {
		next[f] = true
	}
	for _, f := range a.Delete {
		delete(next, normalizeFact(f))
	}
	for _, f := range a.Add {
		next[normalizeFact(f)] = true
	}
	return next
}

func normalizeFact(f string) string {
	return strings.Join(strings.Fields(strings.ToLower(f)), " ")
}

type searchNode struct {
	state state
	g     float64
	f     float64
	path  []int
	seq   int
}

type openList []*searchNode

func (o openList) Len() int { return len(o) }
func (o openList) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}
func (o openList) Swap(i, j int)       { o[i], o[j] = o[j], o[i] }
func (o *openList) Push(x interface{}) { *o = append(*o, x.(*searchNode)) }
func (o *openList) Pop() interface{} {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

// strips runs A* over explicit states. g is accumulated action cost and h
// the number of unmet goal facts.
func (e *Engine) strips(ctx context.Context, g Goal, initial []string, actions []Action) ([]Step, error) {
	if len(g.SuccessCriteria) == 0 {
		return nil, &InfeasibleError{Algorithm: STRIPS, Goal: g.Description, Reason: "goal has no success criteria"}
	}

	start := newState(initial)
	open := &openList{{state: start, f: float64(start.unmet(g.SuccessCriteria))}}
	best := map[string]float64{start.key(): 0}
	explored, seq := 0, 0

	for open.Len() > 0 {
		if explored%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		node := heap.Pop(open).(*searchNode)
		if node.state.satisfies(g.SuccessCriteria) {
			e.log.Debug().Int("explored", explored).Int("length", len(node.path)).Msg("STRIPS goal reached")
			return stripsSteps(g, actions, node.path), nil
		}
		if explored >= e.config.MaxExpansions {
			return nil, &InfeasibleError{Algorithm: STRIPS, Goal: g.Description, Reason: "expansion limit reached", Explored: explored}
		}
		explored++

		for i, a := range actions {
			if !node.state.satisfies(a.Preconditions) {
				continue
			}
			next := node.state.apply(a)
			cost := node.g + actionCost(a)
			k := next.key()
			if prev, ok := best[k]; ok && prev <= cost {
				continue
			}
			best[k] = cost
			seq++
			path := make([]int, len(node.path)+1)
			copy(path, node.path)
			path[len(node.path)] = i
			heap.Push(open, &searchNode{state: next, g: cost, f: cost + float64(next.unmet(g.SuccessCriteria)), path: path, seq: seq})
		}
	}
	return nil, &InfeasibleError{Algorithm: STRIPS, Goal: g.Description, Reason: "open list exhausted", Explored: explored}
}

func actionCost(a Action) float64 {
	if a.Cost > 0 {
		return a.Cost
	}
	return 1
}

func stripsSteps(g Goal, actions []Action, path []int) []Step {
	steps := make([]Step, len(path))
	for i, idx := range path {
		a := actions[idx]
		steps[i] = Step{
			ID:            fmt.Sprintf("step-%d", i+1),
			Name:          a.Name,
			GoalID:        g.ID,
			Preconditions: append([]string(nil), a.Preconditions...),
			Effects:       append([]string(nil), a.Add...),
			Deletes:       append([]string(nil), a.Delete...),
			Duration:      a.Duration,
			Cost:          a.Cost,
			Status:        StepPending,
		}
		if i > 0 {
			steps[i].Dependencies = []string{steps[i-1].ID}
		}
	}
	return steps
}

// Replay applies steps in order from an initial state and returns the final
// facts. It fails when a step's preconditions do not hold.
func Replay(initial []string, steps []Step) ([]string, error) {
	s := newState(initial)
	for _, st := range steps {
		if !s.satisfies(st.Preconditions) {
			return nil, fmt.Errorf("step %s (%s): preconditions not satisfied", st.ID, st.Name)
		}
		s = s.apply(Action{Add: st.Effects, Delete: st.Deletes})
	}
	facts := make([]string, 0, len(s))
	for f := range s {
		facts = append(facts, f)
	}
	sort.Strings(facts)
	return facts, nil
}
