package creativity

import (
	"regexp"
	"strings"

	"github.com/quantumflow/cognicore/internal/textproc"
)

type domainTemplate struct {
	keywords   []string
	dimensions []Dimension
}

var domains = map[string]domainTemplate{
	"product": {
		keywords: []string{"product", "device", "gadget", "packaging", "bottle", "furniture", "toy", "sell"},
		dimensions: []Dimension{
			{Name: "form", Values: []string{"compact", "modular", "wearable", "foldable"}},
			{Name: "material", Values: []string{"recycled plastic", "bamboo", "smart fabric", "aluminium"}},
			{Name: "user", Values: []string{"children", "seniors", "professionals", "travellers"}},
			{Name: "channel", Values: []string{"subscription", "rental", "marketplace", "direct sale"}},
		},
	},
	"service": {
		keywords: []string{"service", "customer", "delivery", "support", "booking", "restaurant", "client"},
		dimensions: []Dimension{
			{Name: "delivery", Values: []string{"on-demand", "scheduled", "self-service", "community-run"}},
			{Name: "channel", Values: []string{"mobile app", "in-person", "chat", "kiosk"}},
			{Name: "pricing", Values: []string{"freemium", "subscription", "pay-per-use", "sponsored"}},
		},
	},
	"process": {
		keywords: []string{"process", "workflow", "pipeline", "operation", "procedure", "onboarding", "efficiency"},
		dimensions: []Dimension{
			{Name: "automation", Values: []string{"manual", "assisted", "automated", "autonomous"}},
			{Name: "cadence", Values: []string{"continuous", "batch", "event-driven", "weekly"}},
			{Name: "ownership", Values: []string{"central team", "distributed", "outsourced", "crowd"}},
		},
	},
	"technology": {
		keywords: []string{"software", "app", "platform", "technology", "system", "data", "ai", "digital"},
		dimensions: []Dimension{
			{Name: "platform", Values: []string{"mobile", "web", "edge device", "cloud"}},
			{Name: "data", Values: []string{"sensor data", "user feedback", "open data", "transaction logs"}},
			{Name: "intelligence", Values: []string{"rules", "recommendations", "prediction", "simulation"}},
		},
	},
	"education": {
		keywords: []string{"learn", "teach", "student", "school", "course", "education", "training", "classroom"},
		dimensions: []Dimension{
			{Name: "format", Values: []string{"game", "workshop", "peer tutoring", "micro-lesson"}},
			{Name: "medium", Values: []string{"video", "virtual reality", "print", "live session"}},
			{Name: "assessment", Values: []string{"project", "quiz", "portfolio", "peer review"}},
		},
	},
	"health": {
		keywords: []string{"health", "patient", "therapy", "rehabilitation", "fitness", "recover", "wellbeing", "clinic", "care"},
		dimensions: []Dimension{
			{Name: "setting", Values: []string{"home", "clinic", "community centre", "workplace"}},
			{Name: "support", Values: []string{"coach", "peer group", "wearable", "telehealth"}},
			{Name: "focus", Values: []string{"prevention", "recovery", "monitoring", "habit building"}},
		},
	},
	"general": {
		dimensions: []Dimension{
			{Name: "approach", Values: []string{"collaborative", "automated", "minimalist", "gamified"}},
			{Name: "scale", Values: []string{"personal", "team", "citywide", "global"}},
			{Name: "resource", Values: []string{"volunteers", "sponsors", "open source", "existing assets"}},
		},
	},
}

var domainOrder = []string{"health", "education", "technology", "process", "service", "product"}

// DetectDomain picks the domain whose keywords best match the problem
func DetectDomain(problem string) string {
	best, bestScore := "general", 0
	tokens := textproc.Tokenize(problem)
	for _, d := range domainOrder {
		score := 0
		for _, kw := range domains[d].keywords {
			for _, tok := range tokens {
				if textproc.MatchesKeyword(tok, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

var (
	forbiddenRe = regexp.MustCompile(`(?i)\b(?:no|without|avoid|exclude)\s+([a-z][a-z\-]*)`)
	leadRe      = regexp.MustCompile(`(?i)^(?:how (?:can|could|do|should) (?:we|i) |how to |ways to |find ways to |ideas? (?:for|to) )`)
)

// subject strips question framing from a problem statement
func subject(problem string) string {
	s := strings.TrimSpace(problem)
	s = strings.TrimRight(s, "?.! ")
	s = leadRe.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// expandSpace builds the conceptual space: dimensions from the domain
// template, boundaries from the constraints. Values mentioning a forbidden
// word are dropped.
func expandSpace(c Challenge) Space {
	domain := strings.ToLower(strings.TrimSpace(c.Domain))
	if _, ok := domains[domain]; !ok {
		domain = DetectDomain(c.Problem)
	}
	sp := Space{Domain: domain, Subject: subject(c.Problem), Boundaries: append([]string(nil), c.Constraints...)}

	for _, con := range c.Constraints {
		for _, m := range forbiddenRe.FindAllStringSubmatch(con, -1) {
			sp.Forbidden = append(sp.Forbidden, textproc.Lemma(strings.ToLower(m[1])))
		}
	}

	for _, d := range domains[domain].dimensions {
		dim := Dimension{Name: d.Name}
		for _, v := range d.Values {
			if !mentionsAny(v, sp.Forbidden) {
				dim.Values = append(dim.Values, v)
			}
		}
		if len(dim.Values) > 0 {
			sp.Dimensions = append(sp.Dimensions, dim)
		}
	}
	return sp
}

// mentionsAny reports whether text contains any of the lemmas
func mentionsAny(text string, lemmas []string) bool {
	if len(lemmas) == 0 {
		return false
	}
	for _, tok := range textproc.Tokenize(text) {
		l := textproc.Lemma(tok)
		for _, f := range lemmas {
			if l == f || tok == f {
				return true
			}
		}
	}
	return false
}
