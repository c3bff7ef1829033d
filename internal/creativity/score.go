package creativity

import (
	"math"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

var originality = map[Technique]float64{
	Brainstorm:       0.3,
	AttributeListing: 0.4,
	Refinement:       0.4,
	SCAMPER:          0.5,
	Morphological:    0.5,
	ForcedConnection: 0.6,
	RandomStimuli:    0.7,
	Combination:      0.7,
	Transformation:   0.8,
}

// score rates every idea against the rest of the pool and the challenge
func score(pool []Idea, c Challenge, sp Space) []Output {
	sets := make([]map[string]bool, len(pool))
	for i, idea := range pool {
		sets[i] = textproc.Set(textproc.ContentWords(idea.Description))
	}
	problem := textproc.Set(textproc.ContentWords(c.Problem))
	outcomes := make([]map[string]bool, 0, len(c.Outcomes))
	for _, o := range c.Outcomes {
		if s := textproc.Set(textproc.ContentWords(o)); len(s) > 0 {
			outcomes = append(outcomes, s)
		}
	}

	out := make([]Output, len(pool))
	for i, idea := range pool {
		maxSim := 0.0
		for j := range pool {
			if i != j {
				maxSim = math.Max(maxSim, textproc.JaccardSets(sets[i], sets[j]))
			}
		}
		relevance := textproc.JaccardSets(sets[i], problem)

		s := Scores{
			Novelty:     models.Clamp01(0.7*(1-maxSim) + 0.3*(1-relevance)),
			Value:       value(sets[i], relevance, outcomes),
			Feasibility: idea.Feasibility,
			Originality: originality[idea.Technique],
			Elaboration: math.Min(1, float64(len(sets[i]))/15),
		}
		if len(sp.Dimensions) > 0 {
			s.Flexibility = math.Min(1, float64(len(idea.Attributes))/float64(len(sp.Dimensions)))
		}
		s.Overall = s.Novelty * s.Value * s.Feasibility
		out[i] = Output{Idea: idea, Scores: s}
	}
	return out
}

// value rewards relevance to the problem and coverage of a desired outcome.
// Without outcomes the coverage term is neutral.
func value(words map[string]bool, relevance float64, outcomes []map[string]bool) float64 {
	coverage := 0.5
	if len(outcomes) > 0 {
		coverage = 0
		for _, o := range outcomes {
			hit := 0
			for w := range o {
				if words[w] {
					hit++
				}
			}
			coverage = math.Max(coverage, float64(hit)/float64(len(o)))
		}
	}
	return models.Clamp01(0.4 + 0.3*math.Min(1, 2*relevance) + 0.3*coverage)
}
