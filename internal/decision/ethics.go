package decision

import (
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// Ethical principles
const (
	PrincipleHarm         = "harm_avoidance"
	PrincipleAutonomy     = "autonomy"
	PrincipleFairness     = "fairness"
	PrincipleTransparency = "transparency"
)

// Principles lists the principles in evaluation order
var Principles = []string{PrincipleHarm, PrincipleAutonomy, PrincipleFairness, PrincipleTransparency}

// DefaultEthicsWeights returns the default principle weights
func DefaultEthicsWeights() map[string]float64 {
	return map[string]float64{
		PrincipleHarm:         1.5,
		PrincipleAutonomy:     1.2,
		PrincipleFairness:     1.0,
		PrincipleTransparency: 0.8,
	}
}

// violationStems are matched as token prefixes
var violationStems = map[string][]string{
	PrincipleHarm:         {"harm", "injur", "damag", "danger", "endanger", "exploit", "weapon", "pollut", "destroy"},
	PrincipleAutonomy:     {"forc", "coerc", "manipul", "overrid", "surveil", "mandat", "pressur"},
	PrincipleFairness:     {"discriminat", "exclud", "unfair", "monopol", "bias", "favorit"},
	PrincipleTransparency: {"hid", "conceal", "secret", "deceiv", "decept", "mislead", "obscur", "lie"},
}

const violationPenalty = 0.5

func violations(tokens []string, stems []string) int {
	hits := 0
	for _, t := range tokens {
		for _, s := range stems {
			if strings.HasPrefix(t, s) {
				hits++
				break
			}
		}
	}
	return hits
}

// evaluateEthics scores an option on each principle and returns the weighted
// mean. Harm also accounts for risk times criticality.
func evaluateEthics(o Option, criticality float64, weights map[string]float64) (float64, map[string]float64) {
	text := o.Name + " " + strings.Join(o.Actions, " ")
	tokens := textproc.Tokenize(text)

	scores := make(map[string]float64, len(Principles))
	for _, p := range Principles {
		scores[p] = 1 - violationPenalty*float64(violations(tokens, violationStems[p]))
	}
	scores[PrincipleHarm] -= 0.5 * o.Risk * criticality

	total, weightSum := 0.0, 0.0
	for _, p := range Principles {
		scores[p] = models.Clamp01(scores[p])
		w := weights[p]
		total += w * scores[p]
		weightSum += w
	}
	if weightSum == 0 {
		return 0, scores
	}
	return total / weightSum, scores
}
