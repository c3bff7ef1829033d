package reasoning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// ErrEmptyGoal is returned when Reason is called without a goal
var ErrEmptyGoal = errors.New("reasoning goal is empty")

// Type is an inference strategy
type Type string

const (
	Deductive      Type = "deductive"
	Inductive      Type = "inductive"
	Abductive      Type = "abductive"
	Analogical     Type = "analogical"
	Causal         Type = "causal"
	Counterfactual Type = "counterfactual"
	Metacognitive  Type = "metacognitive"
)

// Types lists every strategy
var Types = []Type{Deductive, Inductive, Abductive, Analogical, Causal, Counterfactual, Metacognitive}

// ParseType validates a strategy name. An empty name means auto-selection.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return "", nil
	}
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown reasoning type %q", s)
}

// Rule is a Modus Ponens rule: all antecedents imply the consequent
type Rule struct {
	ID          string   `json:"id"`
	Antecedents []string `json:"antecedents"`
	Consequent  string   `json:"consequent"`
	Reliability float64  `json:"reliability"`
}

// CausalLink is a weighted cause -> effect edge
type CausalLink struct {
	Cause    string  `json:"cause"`
	Effect   string  `json:"effect"`
	Strength float64 `json:"strength"`
}

// Case is a source or target for analogical reasoning
type Case struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Relations  []string          `json:"relations,omitempty"` // structural predicates, e.g. "orbits", "attracts"
	Outcome    string            `json:"outcome,omitempty"`
}

// Constraints steer a single Reason call
type Constraints struct {
	Method   Type                   // forced strategy, empty for auto
	Previous *Chain                 // input for metacognitive review
	Target   *Case                  // target for analogical reasoning
	Context  map[string]interface{} // counterfactual variables
}

// Node is one inference step
type Node struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	SubGoal    string                 `json:"sub_goal"`
	Premises   []string               `json:"premises"`
	Conclusion string                 `json:"conclusion"`
	Confidence float64                `json:"confidence"`
	Evidence   []models.Evidence      `json:"evidence,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	// Inconclusive marks a node that found nothing to conclude
	Inconclusive bool `json:"inconclusive,omitempty"`
}

// Chain is an ordered sequence of inference nodes with an aggregate conclusion
type Chain struct {
	ID                string        `json:"id"`
	Goal              string        `json:"goal"`
	Nodes             []Node        `json:"nodes"`
	FinalConclusion   string        `json:"final_conclusion"`
	OverallConfidence float64       `json:"overall_confidence"`
	Consistent        bool          `json:"consistent"`
	Contradictions    [][2]string   `json:"contradictions,omitempty"` // node id pairs
	Success           bool          `json:"success"`
	CreatedAt         time.Time     `json:"created_at"`
	Duration          time.Duration `json:"duration"`
}

// StrategyStats is the running record used to adapt strategy selection
type StrategyStats struct {
	Uses            int     `json:"uses"`
	Successes       int     `json:"successes"`
	TotalConfidence float64 `json:"total_confidence"`
	Reviews         int     `json:"reviews"`
	TotalAccuracy   float64 `json:"total_accuracy"`
}

// Score blends mean confidence with reviewed accuracy. Unused strategies
// score a neutral 0.5.
func (s StrategyStats) Score() float64 {
	if s.Uses == 0 {
		return 0.5
	}
	score := s.TotalConfidence / float64(s.Uses)
	if s.Reviews > 0 {
		score = 0.5*score + 0.5*s.TotalAccuracy/float64(s.Reviews)
	}
	return score
}
