package creativity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// feasibility estimates how practical an idea is within the space boundaries.
// Ideas touching a forbidden word score zero.
func feasibility(idea Idea, sp Space) float64 {
	if mentionsAny(idea.Description, sp.Forbidden) {
		return 0
	}
	f := 0.75
	if n := len(idea.Attributes); n > 2 {
		f -= 0.05 * float64(n-2)
	}
	switch idea.Technique {
	case RandomStimuli:
		f -= 0.15
	case SCAMPER:
		if strings.HasPrefix(idea.Description, "reverse") || strings.HasPrefix(idea.Description, "eliminate") {
			f -= 0.1
		}
	case AttributeListing, Brainstorm:
		f += 0.05
	}
	for _, b := range sp.Boundaries {
		if textproc.Jaccard(idea.Description, b) > 0 && !mentionsAny(b, sp.Forbidden) {
			f += 0.05
		}
	}
	return models.Clamp01(f)
}

// filterFeasible scores every idea and drops those below the floor
func (e *Engine) filterFeasible(ideas []Idea, sp Space) []Idea {
	out := ideas[:0:0]
	for _, idea := range ideas {
		idea.Feasibility = feasibility(idea, sp)
		if idea.Feasibility >= e.config.FeasibilityFloor {
			out = append(out, idea)
		}
	}
	return out
}

// cluster groups ideas greedily: each joins the first cluster whose seed it
// resembles at or above the threshold.
func cluster(ideas []Idea, threshold float64) [][]Idea {
	var (
		clusters [][]Idea
		seeds    []map[string]bool
	)
	for _, idea := range ideas {
		words := textproc.Set(textproc.ContentWords(idea.Description))
		placed := false
		for i, seed := range seeds {
			if textproc.JaccardSets(words, seed) >= threshold {
				clusters[i] = append(clusters[i], idea)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []Idea{idea})
			seeds = append(seeds, words)
		}
	}
	return clusters
}

// refine turns a cluster into one idea: the most feasible member, with the
// attributes of every member merged and the first desired outcome attached.
// Singletons pass through unchanged.
func refine(members []Idea, outcomes []string, id string) Idea {
	if len(members) == 1 {
		return members[0]
	}
	best := members[0]
	for _, m := range members[1:] {
		if m.Feasibility > best.Feasibility {
			best = m
		}
	}
	attrs := make(map[string]string)
	parents := make([]string, 0, len(members))
	var sum float64
	for _, m := range members {
		parents = append(parents, m.ID)
		sum += m.Feasibility
		for k, v := range m.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
	}
	desc := best.Description
	if len(outcomes) > 0 {
		desc += ", refined to " + strings.ToLower(strings.TrimRight(outcomes[0], "."))
	}
	return Idea{
		ID:          id,
		Description: desc,
		Technique:   Refinement,
		Parents:     parents,
		Attributes:  attrs,
		Feasibility: models.Clamp01(sum/float64(len(members)) + 0.05),
	}
}

// attributePhrase renders attribute values in dimension order
func attributePhrase(idea Idea) string {
	if len(idea.Attributes) == 0 {
		return idea.Description
	}
	keys := make([]string, 0, len(idea.Attributes))
	for k := range idea.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = idea.Attributes[k]
	}
	return joinAnd(vals)
}

func (e *Engine) converge(ideas []Idea, c Challenge, sp Space, next *int) (refined []Idea, feasible, clusters int) {
	kept := e.filterFeasible(ideas, sp)
	feasible = len(kept)
	groups := cluster(kept, e.config.ClusterThreshold)
	for _, g := range groups {
		id := ""
		if len(g) > 1 {
			*next++
			id = fmt.Sprintf("idea-%d", *next)
		}
		refined = append(refined, refine(g, c.Outcomes, id))
	}
	return refined, feasible, len(groups)
}
