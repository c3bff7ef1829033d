package agent

import (
	"context"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

type rule struct {
	taskType models.TaskType
	keywords []string
}

// rules are scored in order; earlier rules win ties
var rules = []rule{
	{models.TaskTypePlanning, []string{"plan", "schedule", "organize", "roadmap", "timeline", "milestone", "launch"}},
	{models.TaskTypeDecision, []string{"decide", "choose", "select", "pick", "compare", "prefer", "option"}},
	{models.TaskTypeCreativity, []string{"create", "invent", "imagine", "brainstorm", "design", "idea", "innovate"}},
	{models.TaskTypeLearning, []string{"learn", "remember", "memorize", "study", "teach", "train", "practice"}},
	{models.TaskTypeReasoning, []string{"why", "explain", "reason", "infer", "analyze", "deduce", "cause"}},
}

// generalRule only applies when no specialist rule matched
var generalRule = rule{models.TaskTypeGeneral, []string{"solve", "achieve", "accomplish", "handle", "figure out"}}

// RuleClassifier maps input to a task type with a fixed keyword table
type RuleClassifier struct{}

// NewRuleClassifier creates a keyword rule classifier
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify never fails: input that matches no rule is routed to reasoning
// with Fallback set.
func (c *RuleClassifier) Classify(ctx context.Context, input string) (Classification, error) {
	tokens := textproc.Tokenize(input)
	lower := strings.ToLower(input)

	best := Classification{Type: models.TaskTypeReasoning, Fallback: true}
	bestScore := 0
	for _, r := range rules {
		matched := matchKeywords(tokens, lower, r.keywords)
		if len(matched) > bestScore {
			bestScore = len(matched)
			best = Classification{Type: r.taskType, Matched: matched}
		}
	}
	if bestScore == 0 {
		if matched := matchKeywords(tokens, lower, generalRule.keywords); len(matched) > 0 {
			bestScore = len(matched)
			best = Classification{Type: models.TaskTypeGeneral, Matched: matched}
		}
	}

	best.Confidence = 0.3
	if bestScore > 0 {
		best.Confidence = models.Clamp01(0.5 + 0.15*float64(bestScore))
	}
	return best, nil
}

// matchKeywords returns the keywords present in the input. Single words
// match any inflection of a token; phrases match as substrings.
func matchKeywords(tokens []string, lower string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
			continue
		}
		for _, t := range tokens {
			if textproc.MatchesKeyword(t, kw) {
				matched = append(matched, kw)
				break
			}
		}
	}
	return matched
}

// normalizeTaskType converts an explicit task type to a known constant.
// Unknown values fall back to reasoning.
func normalizeTaskType(s string) (models.TaskType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, tt := range models.TaskTypes {
		if string(tt) == normalized {
			return tt, true
		}
	}
	switch normalized {
	case "plan":
		return models.TaskTypePlanning, true
	case "decide":
		return models.TaskTypeDecision, true
	case "create", "creative":
		return models.TaskTypeCreativity, true
	case "learn":
		return models.TaskTypeLearning, true
	case "reason":
		return models.TaskTypeReasoning, true
	}
	return models.TaskTypeReasoning, false
}

// capabilities lists the engines a task type needs
func capabilities(tt models.TaskType) []string {
	switch tt {
	case models.TaskTypeGeneral:
		return []string{"understanding", "reasoning", "planning", "decision", "learning"}
	case models.TaskTypeLearning:
		return []string{"understanding", "learning"}
	}
	return []string{"understanding", string(tt), "learning"}
}
