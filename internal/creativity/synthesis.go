package creativity

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

var contexts = []string{"hospital", "school", "airport", "farm", "stadium", "library", "factory floor"}

// novel reports whether desc keeps at least threshold distance from every
// idea already in the pool
func novel(desc string, pool []Idea, threshold float64) bool {
	words := textproc.Set(textproc.ContentWords(desc))
	maxSim := 0.0
	for _, p := range pool {
		if s := textproc.JaccardSets(words, textproc.Set(textproc.ContentWords(p.Description))); s > maxSim {
			maxSim = s
		}
	}
	return 1-maxSim >= threshold
}

func mergeAttributes(ideas ...Idea) map[string]string {
	out := make(map[string]string)
	for _, idea := range ideas {
		for k, v := range idea.Attributes {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// combine synthesises pairs, then triples, of refined ideas. A candidate is
// kept only if it is novel against everything accepted so far.
func (e *Engine) combine(refined []Idea, sp Space, next *int) (combos []Idea, rejected int) {
	pool := append([]Idea(nil), refined...)
	try := func(desc string, parents ...Idea) {
		if mentionsAny(desc, sp.Forbidden) {
			return
		}
		if !novel(desc, pool, e.config.NoveltyThreshold) {
			rejected++
			return
		}
		ids := make([]string, len(parents))
		var sum float64
		for i, p := range parents {
			ids[i] = p.ID
			sum += p.Feasibility
		}
		*next++
		idea := Idea{
			ID:          fmt.Sprintf("idea-%d", *next),
			Description: desc,
			Technique:   Combination,
			Parents:     ids,
			Attributes:  mergeAttributes(parents...),
			Feasibility: models.Clamp01(sum/float64(len(parents)) - 0.05*float64(len(parents)-1)),
		}
		combos = append(combos, idea)
		pool = append(pool, idea)
	}

	for i := 0; i < len(refined) && len(combos) < e.config.MaxCombinations; i++ {
		for j := i + 1; j < len(refined) && len(combos) < e.config.MaxCombinations; j++ {
			a, b := refined[i], refined[j]
			pa, pb := attributePhrase(a), attributePhrase(b)
			if pa == pb {
				rejected++
				continue
			}
			try(fmt.Sprintf("hybrid of %s and %s for %s", pa, pb, sp.Subject), a, b)
		}
	}

	limit := len(refined)
	if limit > 5 {
		limit = 5
	}
	triples := 0
	for i := 0; i < limit && triples < e.config.MaxTriples; i++ {
		for j := i + 1; j < limit && triples < e.config.MaxTriples; j++ {
			for k := j + 1; k < limit && triples < e.config.MaxTriples; k++ {
				a, b, c := refined[i], refined[j], refined[k]
				before := len(combos)
				try(fmt.Sprintf("platform uniting %s, %s and %s around %s",
					attributePhrase(a), attributePhrase(b), attributePhrase(c), sp.Subject), a, b, c)
				if len(combos) > before {
					triples++
				}
			}
		}
	}
	return combos, rejected
}

// transform applies one mutation operator to each of the most feasible
// candidates, cycling through the operators in order
func (e *Engine) transform(candidates []Idea, sp Space, rng *rand.Rand, next *int) []Idea {
	ranked := append([]Idea(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Feasibility > ranked[j].Feasibility })
	if len(ranked) > e.config.Transformations {
		ranked = ranked[:e.config.Transformations]
	}

	var out []Idea
	for i, parent := range ranked {
		m := Mutations[i%len(Mutations)]
		core := attributePhrase(parent)
		var (
			desc  string
			delta float64
		)
		switch m {
		case MutateScale:
			desc, delta = fmt.Sprintf("%s at ten times the scale, as a network of %s", sp.Subject, core), -0.15
		case MutateContext:
			desc, delta = fmt.Sprintf("%s transplanted into a %s setting, keeping %s", sp.Subject, contexts[rng.IntN(len(contexts))], core), -0.1
		case MutateReversal:
			desc, delta = fmt.Sprintf("%s with the usual roles reversed, so users supply %s instead of receiving it", sp.Subject, core), -0.15
		case MutateAbstraction:
			desc, delta = fmt.Sprintf("a reusable framework that generalises %s beyond %s", core, sp.Subject), -0.05
		case MutateConcretization:
			desc, delta = fmt.Sprintf("a four-week pilot of %s for %s with a single group of users", core, sp.Subject), 0.1
		}
		if mentionsAny(desc, sp.Forbidden) {
			continue
		}
		*next++
		out = append(out, Idea{
			ID:          fmt.Sprintf("idea-%d", *next),
			Description: desc,
			Technique:   Transformation,
			Mutation:    m,
			Parents:     []string{parent.ID},
			Attributes:  mergeAttributes(parent),
			Feasibility: models.Clamp01(parent.Feasibility + delta),
		})
	}
	return out
}
