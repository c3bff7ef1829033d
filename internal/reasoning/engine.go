package reasoning

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// Config holds reasoning engine configuration
type Config struct {
	DefaultReliability float64 // reliability of rules parsed from evidence without one
	MaxCausalDepth     int
	MaxIterations      int     // forward chaining passes
	MinSupport         float64 // inductive pattern threshold
	SuccessThreshold   float64
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultReliability: 0.9,
		MaxCausalDepth:     3,
		MaxIterations:      50,
		MinSupport:         0.5,
		SuccessThreshold:   0.5,
	}
}

// Engine performs multi-strategy reasoning over evidence and a persistent
// rule base, causal graph and case library.
type Engine struct {
	config *Config
	log    zerolog.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	rules []Rule
	links []CausalLink
	cases []Case
	stats map[Type]*StrategyStats
	last  *Chain
}

// NewEngine creates a reasoning engine
func NewEngine(config *Config, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	stats := make(map[Type]*StrategyStats, len(Types))
	for _, t := range Types {
		stats[t] = &StrategyStats{}
	}
	return &Engine{
		config: config,
		log:    log,
		clock:  time.Now,
		stats:  stats,
	}
}

// SetClock overrides the time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// AddRule adds a rule to the persistent rule base
func (e *Engine) AddRule(r Rule) error {
	if len(r.Antecedents) == 0 || strings.TrimSpace(r.Consequent) == "" {
		return fmt.Errorf("rule needs antecedents and a consequent")
	}
	if r.Reliability <= 0 {
		r.Reliability = e.config.DefaultReliability
	}
	r.Reliability = models.Clamp01(r.Reliability)
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	e.mu.Lock()
	e.rules = append(e.rules, r)
	e.mu.Unlock()
	return nil
}

// AddCausalLink adds an edge to the causal graph
func (e *Engine) AddCausalLink(l CausalLink) error {
	if strings.TrimSpace(l.Cause) == "" || strings.TrimSpace(l.Effect) == "" {
		return fmt.Errorf("causal link needs a cause and an effect")
	}
	if l.Strength <= 0 {
		l.Strength = e.config.DefaultReliability
	}
	l.Strength = models.Clamp01(l.Strength)
	e.mu.Lock()
	e.links = append(e.links, l)
	e.mu.Unlock()
	return nil
}

// AddCase adds a source case for analogical reasoning
func (e *Engine) AddCase(c Case) {
	e.mu.Lock()
	e.cases = append(e.cases, c)
	e.mu.Unlock()
}

// StrategyStats returns a copy of the per-strategy statistics
func (e *Engine) StrategyStats() map[Type]StrategyStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Type]StrategyStats, len(e.stats))
	for t, s := range e.stats {
		out[t] = *s
	}
	return out
}

// LastChain returns the most recent chain, or nil
func (e *Engine) LastChain() *Chain {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// fact is a statement held during one reasoning call
type fact struct {
	statement  string
	key        string
	negated    bool
	confidence float64
	depth      int
	rule       string
}

func newFact(statement string, confidence float64) fact {
	key, neg := textproc.Polarity(statement)
	return fact{statement: strings.TrimSpace(statement), key: key, negated: neg, confidence: confidence}
}

// knowledge is the working set for one Reason call
type knowledge struct {
	facts        []fact
	observations []string
	rules        []Rule
	links        []CausalLink
	cases        []Case
	evidence     []models.Evidence
}

var (
	ruleRe   = regexp.MustCompile(`(?i)^\s*if\s+(.+?)\s*,?\s+then\s+(.+?)\s*\.?\s*$`)
	causalRe = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:causes|leads to|results in|drives)\s+(.+?)\s*\.?\s*$`)
	andRe    = regexp.MustCompile(`(?i)\s+and\s+`)
)

// parseRule reads "if A and B then C"
func parseRule(content string, reliability float64) (Rule, bool) {
	m := ruleRe.FindStringSubmatch(content)
	if m == nil {
		return Rule{}, false
	}
	return Rule{
		ID:          uuid.New().String(),
		Antecedents: andRe.Split(m[1], -1),
		Consequent:  m[2],
		Reliability: reliability,
	}, true
}

func (e *Engine) gather(evidence []models.Evidence) *knowledge {
	e.mu.RLock()
	k := &knowledge{
		rules:    append([]Rule(nil), e.rules...),
		links:    append([]CausalLink(nil), e.links...),
		cases:    append([]Case(nil), e.cases...),
		evidence: evidence,
	}
	e.mu.RUnlock()

	for _, ev := range evidence {
		rel := ev.Reliability
		if rel <= 0 {
			rel = e.config.DefaultReliability
		}
		if r, ok := parseRule(ev.Content, rel); ok {
			k.rules = append(k.rules, r)
			continue
		}
		if ev.Kind == models.EvidenceRule {
			e.log.Debug().Str("evidence", ev.ID).Msg("Rule evidence without if/then form ignored")
			continue
		}
		if m := causalRe.FindStringSubmatch(ev.Content); m != nil {
			k.links = append(k.links, CausalLink{Cause: m[1], Effect: m[2], Strength: rel})
		}
		k.facts = append(k.facts, newFact(ev.Content, 1))
		if ev.Kind == models.EvidenceObservation {
			k.observations = append(k.observations, ev.Content)
		}
	}
	return k
}

// decompose splits a goal into sub-goals
var splitRe = regexp.MustCompile(`(?i)\s*;\s*|\s+and then\s+|\s+and also\s+|\s+then\s+`)

func decompose(goal string) []string {
	// "if A then B" is one statement, not two steps
	if ruleRe.MatchString(goal) {
		return []string{strings.TrimSpace(goal)}
	}
	var out []string
	for _, part := range splitRe.Split(goal, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var ifWereRe = regexp.MustCompile(`(?i)\bif\b.*\bwere\b`)

// selectStrategy picks a strategy for a sub-goal
func (e *Engine) selectStrategy(subGoal string, k *knowledge) Type {
	switch {
	case textproc.HasWord(subGoal, "why") || textproc.ContainsAny(subGoal, "cause", "effect"):
		return Causal
	case textproc.ContainsAny(subGoal, "what if", " had ", "would have") || ifWereRe.MatchString(subGoal):
		return Counterfactual
	case textproc.ContainsAny(subGoal, "similar", "analogous", "compare to", "compared to") || textproc.HasWord(subGoal, "like"):
		return Analogical
	case textproc.ContainsAny(subGoal, "explain", "hypothes", "best explanation", "diagnos"):
		return Abductive
	case textproc.ContainsAny(subGoal, "pattern", "usually", "trend", "generally") || len(k.observations) >= 3:
		return Inductive
	case textproc.ContainsAny(subGoal, "review", "reflect", "evaluate reasoning"):
		return Metacognitive
	case len(k.rules) > 0:
		return Deductive
	}
	return e.bestStrategy()
}

// bestStrategy returns the non-specialised strategy with the best record
func (e *Engine) bestStrategy() Type {
	e.mu.RLock()
	defer e.mu.RUnlock()
	best, bestScore := Deductive, -1.0
	for _, t := range []Type{Deductive, Inductive, Abductive, Analogical, Causal} {
		if s := e.stats[t].Score(); s > bestScore {
			best, bestScore = t, s
		}
	}
	return best
}

// Reason decomposes goal into sub-goals, runs one strategy per sub-goal and
// aggregates the nodes into a chain.
func (e *Engine) Reason(ctx context.Context, goal string, evidence []models.Evidence, c *Constraints) (*Chain, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}
	if c == nil {
		c = &Constraints{}
	}
	start := e.clock()
	k := e.gather(evidence)

	chain := &Chain{
		ID:        uuid.New().String(),
		Goal:      goal,
		CreatedAt: start,
	}

	for i, sub := range decompose(goal) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		strategy := c.Method
		if strategy == "" {
			strategy = e.selectStrategy(sub, k)
		}
		node := e.run(strategy, sub, k, c)
		node.ID = fmt.Sprintf("%s-%d", chain.ID[:8], i+1)
		node.Type = strategy
		node.SubGoal = sub
		node.Confidence = models.Clamp01(node.Confidence)
		chain.Nodes = append(chain.Nodes, node)
	}

	chain.Contradictions = contradictions(chain.Nodes)
	chain.Consistent = len(chain.Contradictions) == 0
	chain.OverallConfidence = aggregate(chain.Nodes, chain.Consistent)
	chain.Success = chain.Consistent && chain.OverallConfidence > e.config.SuccessThreshold
	chain.FinalConclusion = finalConclusion(chain.Nodes)
	chain.Duration = e.clock().Sub(start)

	e.mu.Lock()
	for _, n := range chain.Nodes {
		s := e.stats[n.Type]
		s.Uses++
		s.TotalConfidence += n.Confidence
		if chain.Success {
			s.Successes++
		}
	}
	e.last = chain
	e.mu.Unlock()

	e.log.Debug().
		Str("chain", chain.ID).
		Int("nodes", len(chain.Nodes)).
		Float64("confidence", chain.OverallConfidence).
		Bool("consistent", chain.Consistent).
		Msg("Reasoning complete")

	return chain, nil
}

func (e *Engine) run(t Type, subGoal string, k *knowledge, c *Constraints) Node {
	switch t {
	case Inductive:
		return e.inductive(subGoal, k)
	case Abductive:
		return e.abductive(subGoal, k)
	case Analogical:
		return e.analogical(subGoal, k, c.Target)
	case Causal:
		return e.causal(subGoal, k)
	case Counterfactual:
		return e.counterfactual(subGoal, k, c.Context)
	case Metacognitive:
		prev := c.Previous
		if prev == nil {
			prev = e.LastChain()
		}
		return e.metacognitive(prev)
	}
	return e.deductive(subGoal, k)
}

// contradictions returns node pairs whose conclusions share a polarity key
// but disagree in polarity. Inconclusive nodes are skipped.
func contradictions(nodes []Node) [][2]string {
	var out [][2]string
	for i := 0; i < len(nodes); i++ {
		if nodes[i].Inconclusive {
			continue
		}
		ki, ni := textproc.Polarity(nodes[i].Conclusion)
		if ki == "" {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			if nodes[j].Inconclusive {
				continue
			}
			kj, nj := textproc.Polarity(nodes[j].Conclusion)
			if ki == kj && ni != nj {
				out = append(out, [2]string{nodes[i].ID, nodes[j].ID})
			}
		}
	}
	return out
}

// aggregate is the geometric mean of node confidences, halved when inconsistent
func aggregate(nodes []Node, consistent bool) float64 {
	if len(nodes) == 0 {
		return 0
	}
	logSum := 0.0
	for _, n := range nodes {
		if n.Confidence <= 0 {
			return 0
		}
		logSum += math.Log(n.Confidence)
	}
	overall := math.Exp(logSum / float64(len(nodes)))
	if !consistent {
		overall *= 0.5
	}
	return models.Clamp01(overall)
}

func finalConclusion(nodes []Node) string {
	if len(nodes) == 0 {
		return ""
	}
	best := 0
	for i, n := range nodes {
		if n.Confidence > nodes[best].Confidence {
			best = i
		}
	}
	return nodes[best].Conclusion
}

func sortedKeys[V interface{}](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
