package planning

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// workPackage is one goal's decomposed steps and estimates
type workPackage struct {
	goal     Goal
	steps    []Step
	duration time.Duration
	cost     float64
	risk     float64
	priority float64
}

type candidate struct {
	label    string
	order    []int
	parallel bool
	obj      Objectives
}

// DefaultPriorities weights the four objectives equally
func DefaultPriorities() map[string]float64 {
	return map[string]float64{"makespan": 0.25, "cost": 0.25, "risk": 0.25, "coverage": 0.25}
}

// multiObjective plans several goals jointly. Candidate orderings are scored
// on makespan, cost, risk and coverage; the Pareto frontier is kept and the
// candidate with the best priority-weighted score is expanded into steps.
func (e *Engine) multiObjective(ctx context.Context, goals []Goal, priorities map[string]float64, now time.Time) ([]Step, []Objectives, []Goal, error) {
	if len(goals) == 0 {
		return nil, nil, nil, &InfeasibleError{Algorithm: MultiObjective, Reason: "no goals to plan"}
	}

	packages := make([]workPackage, len(goals))
	for i, g := range goals {
		steps, _, err := e.htn(ctx, g, HorizonShort)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("goal %s: %w", g.ID, err)
		}
		h, _ := ClassifyHorizon(g.Deadline, now)
		e.assignEffort(steps, available(h, g.Deadline, now))
		packages[i] = newWorkPackage(g, steps)
	}

	var candidates []candidate
	for _, order := range e.orderings(goals) {
		candidates = append(candidates, candidate{label: "sequential", order: order})
	}
	all := byPriority(packages)
	if len(packages) > 1 {
		candidates = append(candidates,
			candidate{label: "parallel", order: all, parallel: true},
			candidate{label: "drop lowest priority", order: all[:len(all)-1]},
		)
	}
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		candidates[i].obj = evaluate(packages, candidates[i], now)
	}

	frontier := paretoFrontier(candidates)
	chosen := selectByPriorities(frontier, priorities)
	e.log.Debug().Int("candidates", len(candidates)).Int("frontier", len(frontier)).Str("chosen", chosen.obj.Label).Msg("Pareto search complete")

	objectives := make([]Objectives, len(frontier))
	for i, c := range frontier {
		objectives[i] = c.obj
	}
	steps, ordered := joinPackages(packages, chosen)
	return steps, objectives, ordered, nil
}

func newWorkPackage(g Goal, steps []Step) workPackage {
	wp := workPackage{goal: g, steps: steps, priority: g.Priority}
	if wp.priority <= 0 {
		wp.priority = 0.5
	}
	end := make(map[string]time.Duration, len(steps))
	for _, s := range steps {
		start := time.Duration(0)
		for _, d := range s.Dependencies {
			if end[d] > start {
				start = end[d]
			}
		}
		end[s.ID] = start + s.Duration
		if end[s.ID] > wp.duration {
			wp.duration = end[s.ID]
		}
		wp.cost += s.Cost
	}
	wp.risk = models.Clamp01(0.1 + 0.05*float64(len(steps)))
	return wp
}

// orderings returns every permutation for up to six goals, otherwise
// seeded random samples plus the priority order
func (e *Engine) orderings(goals []Goal) [][]int {
	n := len(goals)
	if n <= 6 {
		return permutations(n)
	}

	h := fnv.New64a()
	for _, g := range goals {
		h.Write([]byte(g.Description))
	}
	rng := rand.New(rand.NewPCG(e.config.Seed, h.Sum64()))
	seen := make(map[string]bool)
	var out [][]int
	for i := 0; i < e.config.Samples; i++ {
		p := rng.Perm(n)
		key := fmt.Sprint(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// permutations lists the permutations of 0..n-1 in lexicographic order
func permutations(n int) [][]int {
	var out [][]int
	used := make([]bool, n)
	cur := make([]int, 0, n)
	var rec func()
	rec = func() {
		if len(cur) == n {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			cur = append(cur, i)
			rec()
			cur = cur[:len(cur)-1]
			used[i] = false
		}
	}
	rec()
	return out
}

func byPriority(packages []workPackage) []int {
	idx := make([]int, len(packages))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return packages[idx[a]].priority > packages[idx[b]].priority
	})
	return idx
}

// evaluate scores a candidate. Coverage is priority-weighted and discounted
// by how late each goal finishes relative to doing everything in sequence.
func evaluate(packages []workPackage, c candidate, now time.Time) Objectives {
	var total time.Duration
	totalPriority := 0.0
	for _, p := range packages {
		total += p.duration
		totalPriority += p.priority
	}

	obj := Objectives{Label: c.label}
	var clock time.Duration
	misses, risk, covered := 0, 0.0, 0.0
	for _, i := range c.order {
		p := packages[i]
		obj.Order = append(obj.Order, p.goal.ID)
		finish := clock + p.duration
		if c.parallel {
			finish = p.duration
		} else {
			clock = finish
		}
		if finish > obj.Makespan {
			obj.Makespan = finish
		}
		obj.Cost += p.cost
		risk += p.risk
		if p.goal.Deadline != nil && now.Add(finish).After(*p.goal.Deadline) {
			misses++
		}
		if total > 0 {
			covered += p.priority * (1 - 0.5*float64(finish)/float64(total))
		} else {
			covered += p.priority
		}
	}

	n := float64(len(c.order))
	if n > 0 {
		risk /= n
		risk += 0.2 * float64(misses) / n
	}
	if c.parallel {
		obj.Cost *= 1.1
		risk += 0.1 * (n - 1) / n
	}
	obj.Risk = models.Clamp01(risk)
	if totalPriority > 0 {
		obj.Coverage = covered / totalPriority
	}
	return obj
}

func dominates(a, b Objectives) bool {
	if a.Makespan > b.Makespan || a.Cost > b.Cost || a.Risk > b.Risk || a.Coverage < b.Coverage {
		return false
	}
	return a.Makespan < b.Makespan || a.Cost < b.Cost || a.Risk < b.Risk || a.Coverage > b.Coverage
}

// paretoFrontier keeps the non-dominated candidates, first of any identical scores
func paretoFrontier(candidates []candidate) []candidate {
	var out []candidate
	for i, c := range candidates {
		dominated := false
		for j, o := range candidates {
			if i != j && dominates(o.obj, c.obj) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		duplicate := false
		for _, f := range out {
			if f.obj.Makespan == c.obj.Makespan && f.obj.Cost == c.obj.Cost && f.obj.Risk == c.obj.Risk && f.obj.Coverage == c.obj.Coverage {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, c)
		}
	}
	return out
}

// selectByPriorities min-max normalises each objective over the frontier
// and picks the best weighted sum
func selectByPriorities(frontier []candidate, priorities map[string]float64) candidate {
	if len(priorities) == 0 {
		priorities = DefaultPriorities()
	}
	values := func(f func(Objectives) float64) (lo, hi float64) {
		lo, hi = f(frontier[0].obj), f(frontier[0].obj)
		for _, c := range frontier[1:] {
			v := f(c.obj)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return lo, hi
	}
	benefit := func(v, lo, hi float64, minimise bool) float64 {
		if hi == lo {
			return 1
		}
		if minimise {
			return (hi - v) / (hi - lo)
		}
		return (v - lo) / (hi - lo)
	}

	makespan := func(o Objectives) float64 { return float64(o.Makespan) }
	cost := func(o Objectives) float64 { return o.Cost }
	risk := func(o Objectives) float64 { return o.Risk }
	coverage := func(o Objectives) float64 { return o.Coverage }
	mLo, mHi := values(makespan)
	cLo, cHi := values(cost)
	rLo, rHi := values(risk)
	vLo, vHi := values(coverage)

	best, bestScore := frontier[0], -1.0
	for _, c := range frontier {
		s := priorities["makespan"]*benefit(makespan(c.obj), mLo, mHi, true) +
			priorities["cost"]*benefit(cost(c.obj), cLo, cHi, true) +
			priorities["risk"]*benefit(risk(c.obj), rLo, rHi, true) +
			priorities["coverage"]*benefit(coverage(c.obj), vLo, vHi, false)
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// joinPackages prefixes each goal's steps and chains goals for sequential candidates
func joinPackages(packages []workPackage, c candidate) ([]Step, []Goal) {
	var steps []Step
	var goals []Goal
	var prevLast []string
	for k, i := range c.order {
		p := packages[i]
		goals = append(goals, p.goal)
		prefix := fmt.Sprintf("g%d-", k+1)

		hasDependents := make(map[string]bool)
		for _, s := range p.steps {
			for _, d := range s.Dependencies {
				hasDependents[d] = true
			}
		}
		var last []string
		for _, s := range p.steps {
			s.ID = prefix + s.ID
			deps := make([]string, 0, len(s.Dependencies))
			for _, d := range s.Dependencies {
				deps = append(deps, prefix+d)
			}
			if len(deps) == 0 && !c.parallel {
				deps = append(deps, prevLast...)
			}
			s.Dependencies = deps
			if !hasDependents[strings.TrimPrefix(s.ID, prefix)] {
				last = append(last, s.ID)
			}
			steps = append(steps, s)
		}
		prevLast = last
	}
	return steps, goals
}
