package reasoning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

type causalGraph struct {
	label    map[string]string
	forward  map[string][]CausalLink
	backward map[string][]CausalLink
}

func nodeKey(statement string) string {
	key, neg := textproc.Polarity(statement)
	return factID(key, neg)
}

func buildCausalGraph(links []CausalLink) *causalGraph {
	g := &causalGraph{
		label:    make(map[string]string),
		forward:  make(map[string][]CausalLink),
		backward: make(map[string][]CausalLink),
	}
	for _, l := range links {
		c, ef := nodeKey(l.Cause), nodeKey(l.Effect)
		if _, ok := g.label[c]; !ok {
			g.label[c] = l.Cause
		}
		if _, ok := g.label[ef]; !ok {
			g.label[ef] = l.Effect
		}
		g.forward[c] = append(g.forward[c], l)
		g.backward[ef] = append(g.backward[ef], l)
	}
	return g
}

// focus returns the graph node best matching text
func (g *causalGraph) focus(text string) (string, bool) {
	words := textproc.Set(textproc.ContentWords(text))
	best, bestScore := "", 0.0
	for _, key := range sortedKeys(g.label) {
		nodeWords := textproc.Set(textproc.ContentWords(g.label[key]))
		score := textproc.JaccardSets(nodeWords, words)
		covered := len(nodeWords) > 0
		for w := range nodeWords {
			if !words[w] {
				covered = false
				break
			}
		}
		if covered {
			score += 1
		}
		if score > bestScore {
			best, bestScore = key, score
		}
	}
	return best, bestScore >= 0.3
}

// walk runs a depth-limited BFS and returns the strongest path product per node
func (g *causalGraph) walk(start string, depth int, forward bool) map[string]float64 {
	strength := map[string]float64{}
	type item struct {
		key   string
		s     float64
		depth int
	}
	queue := []item{{start, 1, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		edges := g.backward[cur.key]
		if forward {
			edges = g.forward[cur.key]
		}
		for _, l := range edges {
			next := nodeKey(l.Cause)
			if forward {
				next = nodeKey(l.Effect)
			}
			if next == start {
				continue
			}
			s := cur.s * l.Strength
			if old, ok := strength[next]; ok && old >= s {
				continue
			}
			strength[next] = s
			queue = append(queue, item{next, s, cur.depth + 1})
		}
	}
	return strength
}

func (g *causalGraph) strongest(m map[string]float64) (string, float64) {
	best, bestS := "", 0.0
	for _, k := range sortedKeys(m) {
		if m[k] > bestS {
			best, bestS = k, m[k]
		}
	}
	return best, bestS
}

func (g *causalGraph) labels(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[g.label[k]] = v
	}
	return out
}

func (e *Engine) causal(subGoal string, k *knowledge) Node {
	g := buildCausalGraph(k.links)
	focus, ok := g.focus(subGoal)
	if !ok {
		return Node{Conclusion: "no causal knowledge about " + subGoal, Confidence: 0.1, Inconclusive: true}
	}

	effects := g.walk(focus, e.config.MaxCausalDepth, true)
	causes := g.walk(focus, e.config.MaxCausalDepth, false)

	var interventions []string
	for _, c := range sortedKeys(causes) {
		if len(g.backward[c]) == 0 {
			interventions = append(interventions, g.label[c])
		}
	}

	node := Node{
		Premises: []string{g.label[focus]},
		Details: map[string]interface{}{
			"focus":         g.label[focus],
			"causes":        g.labels(causes),
			"effects":       g.labels(effects),
			"interventions": interventions,
		},
	}
	cause, cs := g.strongest(causes)
	effect, es := g.strongest(effects)
	switch {
	case cs > 0:
		node.Conclusion = fmt.Sprintf("%s is caused by %s", g.label[focus], g.label[cause])
		node.Confidence = max(cs, es)
	case es > 0:
		node.Conclusion = fmt.Sprintf("%s leads to %s", g.label[focus], g.label[effect])
		node.Confidence = es
	default:
		node.Conclusion = "no causal knowledge about " + g.label[focus]
		node.Confidence = 0.1
	}
	for _, l := range k.links {
		key := nodeKey(l.Cause)
		if _, ok := causes[key]; ok || key == focus {
			node.Premises = append(node.Premises, fmt.Sprintf("%s causes %s", l.Cause, l.Effect))
		}
	}
	node.Evidence = relevantEvidence(k.evidence, node.Premises)
	return node
}

var whatIfPrefixes = []string{"what if", "suppose", "imagine", "if"}

// counterfactual flips one variable, re-runs deduction in both worlds and
// reports what changes. The variable is vars["variable"] when set,
// otherwise the fact closest to the sub-goal.
func (e *Engine) counterfactual(subGoal string, k *knowledge, vars map[string]interface{}) Node {
	if len(k.facts) == 0 && len(k.rules) == 0 {
		return Node{Conclusion: "no model to vary for: " + subGoal, Confidence: 0.1, Inconclusive: true}
	}

	probe := subGoal
	if v, ok := vars["variable"].(string); ok && v != "" {
		probe = v
	}

	bestIdx, bestSim := -1, 0.0
	for i, f := range k.facts {
		if sim := textproc.Jaccard(f.statement, probe); sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}

	hypothetical := make([]fact, 0, len(k.facts)+1)
	var change string
	if bestIdx >= 0 {
		flipped := k.facts[bestIdx]
		flipped.negated = !flipped.negated
		flipped.statement = negate(flipped.statement, flipped.negated)
		change = flipped.statement
		for i, f := range k.facts {
			if i == bestIdx {
				hypothetical = append(hypothetical, flipped)
				continue
			}
			hypothetical = append(hypothetical, f)
		}
	} else {
		added := newFact(stripWhatIf(probe), 1)
		change = added.statement
		hypothetical = append(append(hypothetical, k.facts...), added)
	}

	actual := forwardChain(k.facts, k.rules, e.config.MaxIterations)
	alternative := forwardChain(hypothetical, k.rules, e.config.MaxIterations)

	var lost, gained []string
	var total float64
	for _, id := range sortedKeys(actual) {
		f := actual[id]
		if _, ok := alternative[id]; f.depth > 0 && !ok {
			lost = append(lost, f.statement)
			total += f.confidence
		}
	}
	for _, id := range sortedKeys(alternative) {
		f := alternative[id]
		if _, ok := actual[id]; f.depth > 0 && !ok {
			gained = append(gained, f.statement)
			total += f.confidence
		}
	}

	node := Node{
		Premises: []string{change},
		Details:  map[string]interface{}{"change": change, "lost": lost, "gained": gained},
	}
	switch {
	case len(lost) > 0:
		node.Conclusion = fmt.Sprintf("if %s, then %s would no longer follow", change, strings.Join(lost, ", "))
	case len(gained) > 0:
		node.Conclusion = fmt.Sprintf("if %s, then %s would follow", change, strings.Join(gained, ", "))
	default:
		node.Conclusion = fmt.Sprintf("outcome unchanged if %s", change)
		node.Confidence = 0.5
		return node
	}
	node.Confidence = total / float64(len(lost)+len(gained))
	node.Evidence = relevantEvidence(k.evidence, append(lost, gained...))
	return node
}

// negate rewrites a statement with the requested polarity
func negate(statement string, negated bool) string {
	if !negated {
		var kept []string
		for _, w := range strings.Fields(statement) {
			if !textproc.IsNegation(strings.ToLower(strings.Trim(w, ".,"))) {
				kept = append(kept, w)
			}
		}
		return strings.Join(kept, " ")
	}
	return "not " + statement
}

func stripWhatIf(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, "?"))
	lower := strings.ToLower(s)
	for _, p := range whatIfPrefixes {
		if strings.HasPrefix(lower, p+" ") {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// metacognitive reviews a previous chain and feeds the verdict back into the
// strategy statistics used by auto-selection
func (e *Engine) metacognitive(prev *Chain) Node {
	if prev == nil || len(prev.Nodes) == 0 {
		return Node{Conclusion: "no previous reasoning to review", Confidence: 0.1, Inconclusive: true}
	}

	strong := 0
	for _, n := range prev.Nodes {
		if n.Confidence >= 0.5 {
			strong++
		}
	}
	efficiency := float64(strong) / float64(len(prev.Nodes))
	accuracy := prev.OverallConfidence

	biases := detectBiases(prev)
	confidence := models.Clamp01((efficiency + accuracy) / 2 * (1 - 0.1*float64(len(biases))))

	e.mu.Lock()
	for _, n := range prev.Nodes {
		if s, ok := e.stats[n.Type]; ok && n.Type != Metacognitive {
			s.Reviews++
			s.TotalAccuracy += accuracy
		}
	}
	e.mu.Unlock()

	conclusion := fmt.Sprintf("review of %q: efficiency %.2f, accuracy %.2f", prev.Goal, efficiency, accuracy)
	if len(biases) > 0 {
		conclusion += ", biases: " + strings.Join(biases, ", ")
	}
	return Node{
		Premises:   []string{prev.FinalConclusion},
		Conclusion: conclusion,
		Confidence: confidence,
		Details: map[string]interface{}{
			"efficiency": efficiency,
			"accuracy":   accuracy,
			"biases":     biases,
			"reviewed":   prev.ID,
		},
	}
}

func detectBiases(prev *Chain) []string {
	var biases []string

	sameType := len(prev.Nodes) >= 2
	sources := make(map[string]bool)
	evidenceCount := 0
	for _, n := range prev.Nodes {
		if n.Type != prev.Nodes[0].Type {
			sameType = false
		}
		for _, ev := range n.Evidence {
			sources[ev.Source] = true
			evidenceCount++
		}
	}
	singleSource := evidenceCount >= 2 && len(sources) == 1 && !sources[""]
	if sameType || singleSource {
		biases = append(biases, "confirmation_bias")
	}

	for _, n := range prev.Nodes {
		if n.Confidence > 0.9 && len(n.Evidence) < 2 {
			biases = append(biases, "overconfidence")
			break
		}
	}

	// the first answer won although every later step went elsewhere
	if len(prev.Nodes) >= 2 && prev.FinalConclusion == prev.Nodes[0].Conclusion {
		anchored := true
		for _, n := range prev.Nodes[1:] {
			if textproc.Jaccard(n.Conclusion, prev.Nodes[0].Conclusion) >= 0.2 {
				anchored = false
				break
			}
		}
		if anchored {
			biases = append(biases, "anchoring")
		}
	}
	sort.Strings(biases)
	return biases
}
