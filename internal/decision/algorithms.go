package decision

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// selectAlgorithms applies the auto-selection rules unless the context
// names algorithms explicitly
func selectAlgorithms(c *Context, criteria []Criterion) []Algorithm {
	if len(c.Algorithms) > 0 {
		return c.Algorithms
	}
	var algs []Algorithm
	if len(c.Opponents) > 0 {
		algs = append(algs, GameTheoretic)
	}
	if c.Uncertainty > 0.6 {
		algs = append(algs, Bayesian, MCTS)
	}
	if c.Criticality > 0.7 {
		algs = append(algs, RiskAdjusted)
	}
	if len(criteria) >= 2 || len(algs) == 0 {
		algs = append(algs, MCDA)
	}
	return algs
}

// mcda is the weighted sum of criterion values, inverted for cost criteria
func mcda(options []Option, criteria []Criterion) []float64 {
	scores := make([]float64, len(options))
	for i, o := range options {
		for _, c := range criteria {
			v := criterionValue(o, c)
			if c.Direction == Cost {
				v = 1 - v
			}
			scores[i] += c.Weight * v
		}
	}
	return scores
}

func riskAdjusted(options []Option, tolerance float64) []float64 {
	scores := make([]float64, len(options))
	for i, o := range options {
		scores[i] = o.ExpectedValue - o.Risk*(1-tolerance)
	}
	return scores
}

var strategyAggression = map[string]float64{
	"compete": 0.8, "undercut": 0.9, "attack": 0.95, "imitate": 0.5,
	"ignore": 0.3, "cooperate": 0.1, "partner": 0.05,
}

var defaultStrategies = []string{"compete", "cooperate", "ignore"}

func aggression(strategy string) float64 {
	if a, ok := strategyAggression[textproc.Lemma(strings.ToLower(strategy))]; ok {
		return a
	}
	return hashUnit("strategy:" + strategy)
}

// payoffs builds our and the opponent's payoff matrices
func payoffs(options []Option, opp Opponent) (ours, theirs [][]float64, strategies []string) {
	strategies = opp.Strategies
	if len(strategies) == 0 {
		strategies = defaultStrategies
	}
	hostility := (1 - opp.Stance) / 2
	ours = make([][]float64, len(options))
	theirs = make([][]float64, len(options))
	for i, o := range options {
		ours[i] = make([]float64, len(strategies))
		theirs[i] = make([]float64, len(strategies))
		for j, s := range strategies {
			a := aggression(s)
			ours[i][j] = o.ExpectedValue - a*hostility*o.Risk - 0.2*a*(1-o.Attributes[AttrQuality])
			// cooperative opponents gain from our success, hostile ones from our exposure
			theirs[i][j] = a*(hostility*o.Risk+0.3) + opp.Stance*0.5*o.ExpectedValue - 0.2*a*a
		}
	}
	return ours, theirs, strategies
}

// gameTheoretic scores each option by its payoff in a pure-strategy Nash
// equilibrium, or by its maximin security level when it is in none. Scores
// are averaged over opponents.
func gameTheoretic(options []Option, opponents []Opponent) ([]float64, []map[string]interface{}) {
	scores := make([]float64, len(options))
	var equilibria []map[string]interface{}
	for _, opp := range opponents {
		ours, theirs, strategies := payoffs(options, opp)

		inEq := make([]float64, len(options))
		found := make([]bool, len(options))
		for i := range options {
			for j := range strategies {
				if isBestResponseRow(ours, i, j) && isBestResponseCol(theirs, i, j) {
					if !found[i] || ours[i][j] > inEq[i] {
						inEq[i] = ours[i][j]
					}
					found[i] = true
					equilibria = append(equilibria, map[string]interface{}{
						"opponent": opp.Name, "option": options[i].Name, "strategy": strategies[j],
					})
				}
			}
		}
		for i := range options {
			if found[i] {
				scores[i] += inEq[i]
				continue
			}
			security := math.Inf(1)
			for j := range strategies {
				security = math.Min(security, ours[i][j])
			}
			scores[i] += security
		}
	}
	for i := range scores {
		scores[i] /= float64(len(opponents))
	}
	return scores, equilibria
}

// isBestResponseRow reports whether our row i is a best response to column j
func isBestResponseRow(ours [][]float64, i, j int) bool {
	for k := range ours {
		if ours[k][j] > ours[i][j]+1e-12 {
			return false
		}
	}
	return true
}

// isBestResponseCol reports whether their column j is a best response to row i
func isBestResponseCol(theirs [][]float64, i, j int) bool {
	for k := range theirs[i] {
		if theirs[i][k] > theirs[i][j]+1e-12 {
			return false
		}
	}
	return true
}

type mctsNode struct {
	visits int
	total  float64
	// outcome children of an option node
	children []mctsNode
}

func (n *mctsNode) mean() float64 {
	if n.visits == 0 {
		return 0
	}
	return n.total / float64(n.visits)
}

// seededRand returns a PCG generator keyed by seed and text
func seededRand(seed uint64, text string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(text))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// mcts runs UCT over a root -> option -> outcome tree. Rollouts sample an
// outcome by probability and perturb its value by the uncertainty.
func (e *Engine) mcts(ctx context.Context, options []Option, c *Context) ([]float64, error) {
	rng := seededRand(e.config.Seed, c.Situation)
	root := make([]mctsNode, len(options))
	for i, o := range options {
		root[i].children = make([]mctsNode, len(o.PredictedOutcomes))
	}

	totalVisits := 0
	for sim := 0; sim < e.config.Simulations; sim++ {
		if sim%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// selection: unvisited first, then UCT
		best, bestUCT := 0, math.Inf(-1)
		for i := range root {
			if root[i].visits == 0 {
				best = i
				break
			}
			uct := root[i].mean() + e.config.Exploration*math.Sqrt(math.Log(float64(totalVisits))/float64(root[i].visits))
			if uct > bestUCT {
				best, bestUCT = i, uct
			}
		}

		// expansion and simulation
		outcomes := options[best].PredictedOutcomes
		r := rng.Float64()
		pick := len(outcomes) - 1
		acc := 0.0
		for k, o := range outcomes {
			acc += o.Probability
			if r < acc {
				pick = k
				break
			}
		}
		reward := outcomes[pick].Value + (rng.Float64()*2-1)*c.Uncertainty*0.2

		// backpropagation
		root[best].visits++
		root[best].total += reward
		root[best].children[pick].visits++
		root[best].children[pick].total += reward
		totalVisits++
	}

	scores := make([]float64, len(options))
	for i := range root {
		scores[i] = root[i].mean()
	}
	return scores, nil
}

var (
	favourableWords   = []string{"growth", "boom", "strong", "rising", "demand", "opportunity", "bull"}
	unfavourableWords = []string{"recession", "decline", "crisis", "volatile", "downturn", "falling", "bear", "inflation"}
)

// situationSignals derives signals from the situation text
func situationSignals(situation string) []Signal {
	var out []Signal
	for _, w := range favourableWords {
		if textproc.HasWord(situation, w) {
			out = append(out, Signal{Name: w, Likelihood: map[string]float64{StateFavourable: 0.7, StateNeutral: 0.2, StateUnfavourable: 0.1}})
		}
	}
	for _, w := range unfavourableWords {
		if textproc.HasWord(situation, w) {
			out = append(out, Signal{Name: w, Likelihood: map[string]float64{StateFavourable: 0.1, StateNeutral: 0.2, StateUnfavourable: 0.7}})
		}
	}
	return out
}

var worldStates = []string{StateFavourable, StateNeutral, StateUnfavourable}

// posterior updates the uncertainty-derived prior with each signal by Bayes' rule
func posterior(uncertainty float64, signals []Signal) map[string]float64 {
	u := models.Clamp01(uncertainty)
	belief := map[string]float64{
		StateFavourable:   (1-u)*0.45 + u/3,
		StateUnfavourable: (1-u)*0.20 + u/3,
	}
	belief[StateNeutral] = 1 - belief[StateFavourable] - belief[StateUnfavourable]

	for _, s := range signals {
		total := 0.0
		for _, st := range worldStates {
			l, ok := s.Likelihood[st]
			if !ok {
				l = 1.0 / 3
			}
			belief[st] *= l
			total += belief[st]
		}
		if total == 0 {
			continue
		}
		for _, st := range worldStates {
			belief[st] /= total
		}
	}
	return belief
}

// bayesian returns expected utility under the posterior. Outcomes map onto
// states in order: success favourable, stall neutral, failure unfavourable.
func bayesian(options []Option, belief map[string]float64) []float64 {
	scores := make([]float64, len(options))
	for i, o := range options {
		for k, st := range worldStates {
			if k < len(o.PredictedOutcomes) {
				scores[i] += belief[st] * o.PredictedOutcomes[k].Value
			}
		}
	}
	return scores
}

// normalize min-max scales scores to [0,1]. Equal scores all map to 1.
func normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	for i, s := range scores {
		if hi-lo < 1e-12 {
			out[i] = 1
			continue
		}
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}
