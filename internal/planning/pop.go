package planning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

const (
	popStart  = 0
	popFinish = 1
)

var errExpansionLimit = errors.New("expansion limit reached")

type causalLink struct {
	from, to int
	fact     string
}

type openCondition struct {
	step int
	fact string
}

// partialPlan is one node of the plan-space search. Orderings live in a
// precedence graph over step indexes.
type partialPlan struct {
	steps  []Action
	order  *Graph
	links  []causalLink
	agenda []openCondition
}

func nodeID(i int) string { return "s" + strconv.Itoa(i) }

func (p *partialPlan) clone() *partialPlan {
	return &partialPlan{
		steps:  append([]Action(nil), p.steps...),
		order:  p.order.Clone(),
		links:  append([]causalLink(nil), p.links...),
		agenda: append([]openCondition(nil), p.agenda...),
	}
}

func (p *partialPlan) before(a, b int) bool {
	return a != b && p.order.Reaches(nodeID(a), nodeID(b))
}

func (p *partialPlan) orderSteps(a, b int) error {
	return p.order.AddEdge(nodeID(a), nodeID(b))
}

type popSearch struct {
	ctx      context.Context
	actions  []Action
	maxSteps int
	limit    int
	explored int
}

// pop runs partial-order planning: open preconditions are closed by
// causal links from existing or new steps, and threats are resolved by
// promotion or demotion. The result is linearised by topological sort.
func (e *Engine) pop(ctx context.Context, g Goal, initial []string, actions []Action) ([]Step, error) {
	if len(g.SuccessCriteria) == 0 {
		return nil, &InfeasibleError{Algorithm: POP, Goal: g.Description, Reason: "goal has no success criteria"}
	}

	p := &partialPlan{
		steps: []Action{
			{Name: "start", Add: initial},
			{Name: "finish", Preconditions: g.SuccessCriteria},
		},
		order: NewGraph(),
	}
	if err := p.orderSteps(popStart, popFinish); err != nil {
		return nil, err
	}
	for i := len(g.SuccessCriteria) - 1; i >= 0; i-- {
		p.agenda = append(p.agenda, openCondition{step: popFinish, fact: normalizeFact(g.SuccessCriteria[i])})
	}

	// Iterative deepening on plan size, so the first plan found is one of
	// the smallest.
	s := &popSearch{
		ctx:     ctx,
		actions: actions,
		limit:   e.config.MaxExpansions,
	}
	var (
		solved *partialPlan
		err    error
	)
	maxSteps := 2 + 2*len(actions) + len(g.SuccessCriteria)
	for s.maxSteps = len(p.steps); s.maxSteps <= maxSteps; s.maxSteps++ {
		solved, err = s.search(p)
		if solved != nil || err != nil {
			break
		}
	}
	switch {
	case errors.Is(err, errExpansionLimit):
		return nil, &InfeasibleError{Algorithm: POP, Goal: g.Description, Reason: err.Error(), Explored: s.explored}
	case err != nil:
		return nil, err
	case solved == nil:
		return nil, &InfeasibleError{Algorithm: POP, Goal: g.Description, Reason: "no achiever resolves every open precondition", Explored: s.explored}
	}

	e.log.Debug().Int("explored", s.explored).Int("steps", len(solved.steps)-2).Int("links", len(solved.links)).Msg("Partial-order plan found")
	return linearize(g, solved)
}

func (s *popSearch) search(p *partialPlan) (*partialPlan, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if s.explored >= s.limit {
		return nil, errExpansionLimit
	}
	s.explored++

	if len(p.agenda) == 0 {
		return p, nil
	}
	oc := p.agenda[len(p.agenda)-1]
	rest := p.agenda[:len(p.agenda)-1]

	// existing achievers first
	for i := range p.steps {
		if i == oc.step || !adds(p.steps[i], oc.fact) || p.before(oc.step, i) {
			continue
		}
		child := p.clone()
		child.agenda = append([]openCondition(nil), rest...)
		if solved, err := s.close(child, i, oc); solved != nil || err != nil {
			return solved, err
		}
	}

	if len(p.steps) >= s.maxSteps {
		return nil, nil
	}
	for _, a := range s.actions {
		if !adds(a, oc.fact) {
			continue
		}
		child := p.clone()
		child.agenda = append([]openCondition(nil), rest...)
		idx := len(child.steps)
		child.steps = append(child.steps, a)
		if err := child.orderSteps(popStart, idx); err != nil {
			continue
		}
		if err := child.orderSteps(idx, popFinish); err != nil {
			continue
		}
		for j := len(a.Preconditions) - 1; j >= 0; j-- {
			child.agenda = append(child.agenda, openCondition{step: idx, fact: normalizeFact(a.Preconditions[j])})
		}
		if solved, err := s.close(child, idx, oc); solved != nil || err != nil {
			return solved, err
		}
	}
	return nil, nil
}

// close links producer to the open condition and searches every threat resolution
func (s *popSearch) close(p *partialPlan, producer int, oc openCondition) (*partialPlan, error) {
	if err := p.orderSteps(producer, oc.step); err != nil {
		return nil, nil
	}
	p.links = append(p.links, causalLink{from: producer, to: oc.step, fact: oc.fact})
	for _, resolved := range resolveThreats(p) {
		solved, err := s.search(resolved)
		if solved != nil || err != nil {
			return solved, err
		}
	}
	return nil, nil
}

// resolveThreats returns every consistent plan where no step can fall
// between a causal link and delete its fact
func resolveThreats(p *partialPlan) []*partialPlan {
	for _, l := range p.links {
		for s := range p.steps {
			if s == l.from || s == l.to || !deletes(p.steps[s], l.fact) {
				continue
			}
			if p.before(s, l.from) || p.before(l.to, s) {
				continue
			}

			var out []*partialPlan
			demoted := p.clone()
			if demoted.orderSteps(s, l.from) == nil {
				out = append(out, resolveThreats(demoted)...)
			}
			promoted := p.clone()
			if promoted.orderSteps(l.to, s) == nil {
				out = append(out, resolveThreats(promoted)...)
			}
			return out
		}
	}
	return []*partialPlan{p}
}

func adds(a Action, fact string) bool {
	for _, f := range a.Add {
		if normalizeFact(f) == fact {
			return true
		}
	}
	return false
}

func deletes(a Action, fact string) bool {
	for _, f := range a.Delete {
		if normalizeFact(f) == fact {
			return true
		}
	}
	return false
}

// linearize orders the partial plan and maps orderings to step dependencies
func linearize(g Goal, p *partialPlan) ([]Step, error) {
	order, err := p.order.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("linearize: %w", err)
	}

	ids := make(map[string]string, len(p.steps))
	var steps []Step
	for _, node := range order {
		i, _ := strconv.Atoi(node[1:])
		if i == popStart || i == popFinish {
			continue
		}
		a := p.steps[i]
		id := fmt.Sprintf("step-%d", len(steps)+1)
		ids[node] = id

		var deps []string
		for _, pred := range p.order.Predecessors(node) {
			if dep, ok := ids[pred]; ok {
				deps = append(deps, dep)
			}
		}
		steps = append(steps, Step{
			ID:            id,
			Name:          a.Name,
			GoalID:        g.ID,
			Dependencies:  deps,
			Preconditions: append([]string(nil), a.Preconditions...),
			Effects:       append([]string(nil), a.Add...),
			Deletes:       append([]string(nil), a.Delete...),
			Duration:      a.Duration,
			Cost:          a.Cost,
			Status:        StepPending,
		})
	}
	return steps, nil
}
