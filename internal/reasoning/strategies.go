package reasoning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

func factID(key string, negated bool) string {
	if negated {
		return "!" + key
	}
	return key
}

// forwardChain applies Modus Ponens until no rule adds or strengthens a
// derived fact. Base facts are never replaced.
func forwardChain(base []fact, rules []Rule, maxIterations int) map[string]fact {
	known := make(map[string]fact, len(base))
	for _, f := range base {
		id := factID(f.key, f.negated)
		if old, ok := known[id]; !ok || f.confidence > old.confidence {
			known[id] = f
		}
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, r := range rules {
			conf, depth, ok := r.Reliability, 0, true
			for _, ant := range r.Antecedents {
				key, neg := textproc.Polarity(ant)
				f, found := known[factID(key, neg)]
				if !found {
					ok = false
					break
				}
				conf *= f.confidence
				depth = max(depth, f.depth)
			}
			if !ok {
				continue
			}
			derived := newFact(r.Consequent, conf)
			derived.depth = depth + 1
			derived.rule = r.ID
			id := factID(derived.key, derived.negated)
			old, found := known[id]
			if !found || (old.depth > 0 && conf > old.confidence+1e-12) {
				known[id] = derived
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return known
}

// trace returns the base facts a derived fact rests on
func trace(f fact, known map[string]fact, rules map[string]Rule, seen map[string]bool) []string {
	id := factID(f.key, f.negated)
	if seen[id] {
		return nil
	}
	seen[id] = true
	if f.depth == 0 {
		return []string{f.statement}
	}
	var out []string
	for _, ant := range rules[f.rule].Antecedents {
		key, neg := textproc.Polarity(ant)
		if af, ok := known[factID(key, neg)]; ok {
			out = append(out, trace(af, known, rules, seen)...)
		}
	}
	return out
}

func (e *Engine) deductive(subGoal string, k *knowledge) Node {
	known := forwardChain(k.facts, k.rules, e.config.MaxIterations)

	var derived []fact
	for _, f := range known {
		if f.depth > 0 {
			derived = append(derived, f)
		}
	}
	if len(derived) == 0 {
		premises := make([]string, 0, len(k.facts))
		for _, f := range k.facts {
			premises = append(premises, f.statement)
		}
		return Node{
			Premises:     premises,
			Conclusion:   "insufficient premises to deduce: " + subGoal,
			Confidence:   0.2,
			Inconclusive: true,
			Details:      map[string]interface{}{"rules": len(k.rules)},
		}
	}

	_, goalNeg := textproc.Polarity(subGoal)
	relevance := func(f fact) float64 { return textproc.Jaccard(f.statement, subGoal) }
	sort.SliceStable(derived, func(i, j int) bool {
		a, b := derived[i], derived[j]
		ra, rb := relevance(a) > 0, relevance(b) > 0
		if ra != rb {
			return ra
		}
		if a.depth != b.depth {
			return a.depth > b.depth
		}
		if pa, pb := a.negated == goalNeg, b.negated == goalNeg; pa != pb {
			return pa
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		return a.statement < b.statement
	})

	best := derived[0]
	ruleByID := make(map[string]Rule, len(k.rules))
	for _, r := range k.rules {
		ruleByID[r.ID] = r
	}
	premises := trace(best, known, ruleByID, make(map[string]bool))

	return Node{
		Premises:   premises,
		Conclusion: best.statement,
		Confidence: best.confidence,
		Evidence:   relevantEvidence(k.evidence, append(premises, best.statement)),
		Details: map[string]interface{}{
			"depth":   best.depth,
			"derived": len(derived),
			"rule":    best.rule,
		},
	}
}

func (e *Engine) inductive(subGoal string, k *knowledge) Node {
	observations := k.observations
	if len(observations) == 0 {
		for _, f := range k.facts {
			observations = append(observations, f.statement)
		}
	}
	n := len(observations)
	if n == 0 {
		return Node{Conclusion: "no observations to generalise from", Confidence: 0.1, Inconclusive: true}
	}

	counts := make(map[string]int)
	for _, o := range observations {
		for w := range textproc.Set(textproc.ContentWords(o)) {
			counts[w]++
		}
	}
	type pattern struct {
		term    string
		support float64
	}
	var patterns []pattern
	for _, term := range sortedKeys(counts) {
		patterns = append(patterns, pattern{term, float64(counts[term]) / float64(n)})
	}
	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].support > patterns[j].support })

	top := 0.0
	if len(patterns) > 0 {
		top = patterns[0].support
	}
	confidence := top * float64(n) / float64(n+1)

	var terms []string
	supports := make(map[string]float64)
	for _, p := range patterns {
		if p.support < e.config.MinSupport {
			break
		}
		supports[p.term] = p.support
		if len(terms) < 3 {
			terms = append(terms, p.term)
		}
	}
	if len(terms) == 0 {
		return Node{
			Premises:     observations,
			Conclusion:   fmt.Sprintf("no recurring pattern across %d observations", n),
			Confidence:   confidence,
			Inconclusive: true,
		}
	}
	return Node{
		Premises:   observations,
		Conclusion: fmt.Sprintf("observations consistently involve %s", strings.Join(terms, ", ")),
		Confidence: confidence,
		Evidence:   relevantEvidence(k.evidence, observations),
		Details:    map[string]interface{}{"patterns": supports, "observations": n},
	}
}

type hypothesis struct {
	text         string
	plausibility float64
	simplicity   float64
	consistency  float64
}

func (h hypothesis) score() float64 {
	return 0.5*h.plausibility + 0.3*h.simplicity + 0.2*h.consistency
}

// explains reports whether an effect statement matches any target text
func explains(effect string, targets []string) bool {
	eff := textproc.Set(textproc.ContentWords(effect))
	if len(eff) == 0 {
		return false
	}
	for _, t := range targets {
		words := textproc.Set(textproc.ContentWords(t))
		covered := true
		for w := range eff {
			if !words[w] {
				covered = false
				break
			}
		}
		if covered || textproc.JaccardSets(eff, words) >= 0.3 {
			return true
		}
	}
	return false
}

// consistencyWith scores statements against the known facts: supported 1,
// unknown 0.7, contradicted 0
func consistencyWith(statements []string, facts []fact) float64 {
	if len(statements) == 0 {
		return 1
	}
	byKey := make(map[string]bool, len(facts))
	for _, f := range facts {
		byKey[factID(f.key, f.negated)] = true
	}
	total := 0.0
	for _, s := range statements {
		key, neg := textproc.Polarity(s)
		switch {
		case byKey[factID(key, neg)]:
			total += 1
		case byKey[factID(key, !neg)]:
		default:
			total += 0.7
		}
	}
	return total / float64(len(statements))
}

func (e *Engine) abductive(subGoal string, k *knowledge) Node {
	targets := append([]string{subGoal}, k.observations...)

	candidates := []hypothesis{{text: "an unknown cause", plausibility: 0.2, simplicity: 0.5, consistency: 1}}
	for _, l := range k.links {
		if explains(l.Effect, targets) {
			candidates = append(candidates, hypothesis{
				text:         l.Cause,
				plausibility: l.Strength,
				simplicity:   1,
				consistency:  consistencyWith([]string{l.Cause}, k.facts),
			})
		}
	}
	for _, r := range k.rules {
		if explains(r.Consequent, targets) {
			candidates = append(candidates, hypothesis{
				text:         strings.Join(r.Antecedents, " and "),
				plausibility: r.Reliability,
				simplicity:   1 / float64(len(r.Antecedents)),
				consistency:  consistencyWith(r.Antecedents, k.facts),
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score() > candidates[j].score() })

	ranked := make([]map[string]interface{}, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, map[string]interface{}{"hypothesis": c.text, "score": c.score()})
	}
	best := candidates[0]
	return Node{
		Premises:   targets,
		Conclusion: "best explanation: " + best.text,
		Confidence: best.score(),
		Evidence:   relevantEvidence(k.evidence, targets),
		Details:    map[string]interface{}{"candidates": ranked},
	}
}

func lemmaSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[textproc.Lemma(strings.ToLower(strings.TrimSpace(w)))] = true
	}
	return out
}

func caseText(c Case) string {
	parts := []string{c.Name}
	for _, k := range sortedKeys(c.Attributes) {
		parts = append(parts, c.Attributes[k])
	}
	return strings.Join(append(parts, c.Outcome), " ")
}

// attributeSimilarity compares attribute maps, falling back to text overlap
// when the target has no attributes
func attributeSimilarity(source, target Case) float64 {
	if len(target.Attributes) == 0 {
		return textproc.Jaccard(caseText(source), caseText(target))
	}
	keys := make(map[string]bool)
	for k := range source.Attributes {
		keys[k] = true
	}
	for k := range target.Attributes {
		keys[k] = true
	}
	match := 0
	for k := range keys {
		sv, ok1 := source.Attributes[k]
		tv, ok2 := target.Attributes[k]
		if ok1 && ok2 && strings.EqualFold(sv, tv) {
			match++
		}
	}
	return float64(match) / float64(len(keys))
}

func (e *Engine) analogical(subGoal string, k *knowledge, target *Case) Node {
	t := Case{Name: subGoal, Relations: textproc.ContentWords(subGoal)}
	if target != nil {
		t = *target
	}
	if len(k.cases) == 0 {
		return Node{Conclusion: "no analogous case found for " + t.Name, Confidence: 0.1, Inconclusive: true}
	}

	targetRel := lemmaSet(t.Relations)
	bestIdx, bestSim, bestStruct, bestAttr := -1, 0.0, 0.0, 0.0
	for i, c := range k.cases {
		structural := textproc.JaccardSets(lemmaSet(c.Relations), targetRel)
		attr := attributeSimilarity(c, t)
		if sim := (structural + attr) / 2; sim > bestSim {
			bestIdx, bestSim, bestStruct, bestAttr = i, sim, structural, attr
		}
	}
	if bestIdx < 0 {
		return Node{Conclusion: "no analogous case found for " + t.Name, Confidence: 0.1, Inconclusive: true}
	}

	source := k.cases[bestIdx]
	transferred := make(map[string]string)
	for key, v := range source.Attributes {
		if _, ok := t.Attributes[key]; !ok {
			transferred[key] = v
		}
	}
	conclusion := fmt.Sprintf("%s is analogous to %s", t.Name, source.Name)
	if source.Outcome != "" {
		conclusion += "; expect " + source.Outcome
	}
	return Node{
		Premises:   []string{source.Name, t.Name},
		Conclusion: conclusion,
		Confidence: bestSim,
		Details: map[string]interface{}{
			"source":                source.Name,
			"structural_similarity": bestStruct,
			"attribute_similarity":  bestAttr,
			"transferred":           transferred,
		},
	}
}

// relevantEvidence returns evidence whose content overlaps any of texts
func relevantEvidence(evidence []models.Evidence, texts []string) []models.Evidence {
	var out []models.Evidence
	for _, ev := range evidence {
		for _, t := range texts {
			if strings.EqualFold(strings.TrimSpace(ev.Content), strings.TrimSpace(t)) || textproc.Jaccard(ev.Content, t) >= 0.3 {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
