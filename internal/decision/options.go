package decision

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// Attribute names every option carries, all in [0,1]
const (
	AttrReturn  = "return"
	AttrRisk    = "risk"
	AttrCost    = "cost"
	AttrTime    = "time"
	AttrQuality = "quality"
	AttrImpact  = "impact"
)

var attributeNames = []string{AttrReturn, AttrRisk, AttrCost, AttrTime, AttrQuality, AttrImpact}

type profile struct {
	attrs   map[string]float64
	actions []string
}

func attrs(ret, risk, cost, tm, quality, impact float64) map[string]float64 {
	return map[string]float64{
		AttrReturn: ret, AttrRisk: risk, AttrCost: cost,
		AttrTime: tm, AttrQuality: quality, AttrImpact: impact,
	}
}

// lexicon holds known option profiles keyed by lemma
var lexicon = map[string]profile{
	"stock":        {attrs(0.80, 0.70, 0.30, 0.50, 0.60, 0.70), []string{"allocate capital to equities", "diversify across sectors", "rebalance quarterly"}},
	"bond":         {attrs(0.45, 0.25, 0.20, 0.60, 0.60, 0.40), []string{"select investment-grade issuers", "ladder maturities", "reinvest coupons"}},
	"cash":         {attrs(0.10, 0.05, 0.05, 0.10, 0.50, 0.20), []string{"move funds to a savings account"}},
	"real estate":  {attrs(0.60, 0.50, 0.80, 0.80, 0.60, 0.60), []string{"survey markets", "secure financing", "acquire property"}},
	"crypto":       {attrs(0.90, 0.95, 0.30, 0.30, 0.30, 0.60), nil},
	"index fund":   {attrs(0.65, 0.45, 0.10, 0.50, 0.70, 0.50), []string{"pick a low-cost index fund", "automate monthly contributions"}},
	"conservative": {attrs(0.35, 0.20, 0.30, 0.50, 0.60, 0.40), nil},
	"balanced":     {attrs(0.55, 0.45, 0.50, 0.50, 0.65, 0.55), nil},
	"aggressive":   {attrs(0.80, 0.75, 0.60, 0.40, 0.55, 0.75), nil},
	"hire":         {attrs(0.60, 0.40, 0.70, 0.60, 0.70, 0.60), []string{"define the role", "interview candidates", "onboard the hire"}},
	"outsource":    {attrs(0.50, 0.50, 0.50, 0.30, 0.50, 0.50), []string{"shortlist vendors", "negotiate contract", "review deliverables"}},
	"build":        {attrs(0.70, 0.50, 0.70, 0.80, 0.80, 0.70), []string{"design the solution", "implement it", "test and release"}},
	"buy":          {attrs(0.50, 0.30, 0.60, 0.20, 0.60, 0.50), []string{"evaluate vendors", "purchase", "integrate"}},
	"wait":         {attrs(0.10, 0.20, 0.00, 0.90, 0.40, 0.10), []string{"monitor the situation", "revisit the decision"}},
	"expand":       {attrs(0.75, 0.60, 0.70, 0.70, 0.60, 0.80), nil},
	"cut":          {attrs(0.40, 0.40, 0.10, 0.30, 0.40, 0.40), nil},
}

// criterionAliases map criterion names onto option attributes. Inverted
// aliases read 1-v.
var criterionAliases = map[string]struct {
	attr     string
	inverted bool
	dir      Direction
}{
	"return":   {AttrReturn, false, Benefit},
	"profit":   {AttrReturn, false, Benefit},
	"gain":     {AttrReturn, false, Benefit},
	"yield":    {AttrReturn, false, Benefit},
	"growth":   {AttrReturn, false, Benefit},
	"risk":     {AttrRisk, false, Cost},
	"safety":   {AttrRisk, true, Benefit},
	"security": {AttrRisk, true, Benefit},
	"cost":     {AttrCost, false, Cost},
	"price":    {AttrCost, false, Cost},
	"expense":  {AttrCost, false, Cost},
	"budget":   {AttrCost, false, Cost},
	"time":     {AttrTime, false, Cost},
	"duration": {AttrTime, false, Cost},
	"speed":    {AttrTime, true, Benefit},
	"quality":  {AttrQuality, false, Benefit},
	"impact":   {AttrImpact, false, Benefit},
	"value":    {AttrImpact, false, Benefit},
}

// hashUnit maps a string to a stable value in [0.2,0.8]
func hashUnit(s string) float64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(s)))
	return 0.2 + 0.6*float64(h.Sum64()%1000)/999
}

// lookupProfile finds the lexicon entry for an option name, trying the full
// name, then multi-word entries, then single lemmas
func lookupProfile(name string) (profile, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if p, ok := lexicon[lower]; ok {
		return p, true
	}
	lemmas := make([]string, 0)
	for _, t := range textproc.Tokenize(lower) {
		lemmas = append(lemmas, textproc.Lemma(t))
	}
	joined := " " + strings.Join(lemmas, " ") + " "
	for _, key := range sortedLexiconKeys() {
		if strings.Contains(key, " ") && strings.Contains(joined, " "+key+" ") {
			return lexicon[key], true
		}
	}
	for _, l := range lemmas {
		if p, ok := lexicon[l]; ok {
			return p, true
		}
	}
	return profile{}, false
}

func sortedLexiconKeys() []string {
	keys := make([]string, 0, len(lexicon))
	for k := range lexicon {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// newOption builds an option with attributes, outcomes and expected value
func newOption(id int, name string, c *Context) Option {
	p, known := lookupProfile(name)
	values := make(map[string]float64, len(attributeNames))
	for _, a := range attributeNames {
		if known {
			values[a] = p.attrs[a]
		} else {
			values[a] = hashUnit(name + ":" + a)
		}
	}
	for key, override := range c.OptionAttributes {
		if strings.EqualFold(key, name) {
			for a, v := range override {
				values[a] = models.Clamp01(v)
			}
		}
	}

	opt := Option{
		ID:         fmt.Sprintf("option-%d", id),
		Name:       name,
		Actions:    append([]string(nil), p.actions...),
		Attributes: values,
		Risk:       values[AttrRisk],
	}
	opt.PredictedOutcomes = predictOutcomes(name, values, c.Uncertainty)
	for _, o := range opt.PredictedOutcomes {
		opt.ExpectedValue += o.Probability * o.Value
	}
	opt.Confidence = 1 - 0.5*c.Uncertainty
	if !known {
		opt.Confidence -= 0.2
	}
	opt.Confidence = models.Clamp01(opt.Confidence)
	return opt
}

// predictOutcomes produces success, stall and failure outcomes
func predictOutcomes(name string, a map[string]float64, uncertainty float64) []Outcome {
	success := 0.6*a[AttrReturn] + 0.2*a[AttrQuality] + 0.2*a[AttrImpact]
	pSuccess := clamp(0.9-0.6*a[AttrRisk]-0.2*uncertainty, 0.05, 0.95)
	pFailure := (1 - pSuccess) * clamp(a[AttrRisk]+0.2*uncertainty, 0.1, 0.9)
	return []Outcome{
		{Description: name + " meets its goals", Probability: pSuccess, Value: success},
		{Description: name + " stalls", Probability: 1 - pSuccess - pFailure, Value: 0.4 * success},
		{Description: name + " fails with losses", Probability: pFailure, Value: -(0.5*a[AttrRisk] + 0.5*a[AttrCost]), Failure: true},
	}
}

var alternativesRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+?)(?:[.?!,]|$)`),
	regexp.MustCompile(`(?i)\b([\w-]+(?:\s[\w-]+)?)\s+or\s+([\w-]+(?:\s[\w-]+)?)(?:[.?!,]|$)`),
}

var archetypes = []string{"conservative approach", "balanced approach", "aggressive approach"}

// candidateNames returns hints, alternatives named in the situation, or
// goal-derived options plus the three archetypes
func candidateNames(c *Context) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			return
		}
		seen[strings.ToLower(n)] = true
		names = append(names, n)
	}

	for _, h := range c.Options {
		add(h)
	}
	if len(names) > 0 {
		return names
	}
	for _, re := range alternativesRe {
		if m := re.FindStringSubmatch(c.Situation); m != nil {
			add(stripLeadingStopwords(m[1]))
			add(stripLeadingStopwords(m[2]))
			return names
		}
	}
	for _, g := range c.Goals {
		add("pursue " + g)
	}
	for _, a := range archetypes {
		add(a)
	}
	return names
}

func stripLeadingStopwords(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 && (textproc.IsStopword(strings.ToLower(words[0])) || strings.EqualFold(words[0], "choose")) {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

var (
	excludeRe = regexp.MustCompile(`(?i)^(?:no|avoid|exclude|without|not)\s+(.+)$`)
	limitRe   = regexp.MustCompile(`(?i)^(?:max(?:imum)?\s+)?(risk|cost|time)\s*(?:<=|<|below|under|max|at most)?\s*([0-9.]+)$`)
)

// applyConstraints drops options that violate exclusion or limit constraints
func applyConstraints(options []Option, constraints []string) []Option {
	out := options[:0]
next:
	for _, o := range options {
		for _, raw := range constraints {
			raw = strings.TrimSpace(raw)
			if m := excludeRe.FindStringSubmatch(raw); m != nil {
				if strings.Contains(strings.ToLower(o.Name), strings.ToLower(strings.TrimSpace(m[1]))) {
					continue next
				}
				continue
			}
			if m := limitRe.FindStringSubmatch(raw); m != nil {
				limit, err := strconv.ParseFloat(m[2], 64)
				if err == nil && o.Attributes[strings.ToLower(m[1])] > limit {
					continue next
				}
			}
		}
		out = append(out, o)
	}
	return out
}

// resolveCriteria normalises criteria: directions from aliases, weights
// summing to 1, defaults when none are given
func resolveCriteria(criteria []Criterion) []Criterion {
	if len(criteria) == 0 {
		criteria = []Criterion{
			{Name: AttrReturn, Weight: 0.4},
			{Name: AttrRisk, Weight: 0.3},
			{Name: AttrCost, Weight: 0.3},
		}
	}
	out := make([]Criterion, len(criteria))
	total := 0.0
	for i, c := range criteria {
		if c.Direction == "" {
			c.Direction = Benefit
			if alias, ok := criterionAliases[criterionKey(c.Name)]; ok {
				c.Direction = alias.dir
			}
		}
		if c.Weight <= 0 {
			c.Weight = 1
		}
		total += c.Weight
		out[i] = c
	}
	for i := range out {
		out[i].Weight /= total
	}
	return out
}

func criterionKey(name string) string {
	return textproc.Lemma(strings.ToLower(strings.TrimSpace(name)))
}

// criterionValue reads an option's raw value for a criterion
func criterionValue(o Option, c Criterion) float64 {
	if alias, ok := criterionAliases[criterionKey(c.Name)]; ok {
		v := o.Attributes[alias.attr]
		if alias.inverted {
			return 1 - v
		}
		return v
	}
	if v, ok := o.Attributes[strings.ToLower(c.Name)]; ok {
		return v
	}
	return hashUnit(o.Name + ":" + c.Name)
}

var (
	uncertainWords = []string{"uncertain", "volatile", "unknown", "unpredictable", "unclear"}
	criticalWords  = []string{"critical", "life", "safety", "irreversible", "emergency"}
	shortWords     = []string{"today", "now", "immediately", "asap", "this week", "urgent"}
	longWords      = []string{"long term", "long-term", "years", "decade", "retirement"}
)

// analyze fills unset context fields from the situation text
func (e *Engine) analyze(c *Context) {
	if c.Uncertainty == 0 && textproc.ContainsAny(c.Situation, uncertainWords...) {
		c.Uncertainty = 0.7
	}
	if c.Criticality == 0 && textproc.ContainsAny(c.Situation, criticalWords...) {
		c.Criticality = 0.8
	}
	if c.RiskTolerance == 0 {
		c.RiskTolerance = e.config.DefaultRiskTolerance
		switch {
		case textproc.ContainsAny(c.Situation, "conservative", "risk-averse", "cautious", "safe"):
			c.RiskTolerance = 0.2
		case textproc.ContainsAny(c.Situation, "aggressive", "bold", "high risk"):
			c.RiskTolerance = 0.8
		}
	}
	if c.TimeHorizon == "" {
		c.TimeHorizon = HorizonMedium
		switch {
		case textproc.ContainsAny(c.Situation, shortWords...):
			c.TimeHorizon = HorizonShort
		case textproc.ContainsAny(c.Situation, longWords...):
			c.TimeHorizon = HorizonLong
		}
	}
	c.Uncertainty = models.Clamp01(c.Uncertainty)
	c.Criticality = models.Clamp01(c.Criticality)
	c.RiskTolerance = models.Clamp01(c.RiskTolerance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
