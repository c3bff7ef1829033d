package decision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoOptions is returned when no candidate option survives generation and constraints
	ErrNoOptions = errors.New("no decision options available")
	// ErrEthicalDisqualification is returned when every option falls below the ethical floor
	ErrEthicalDisqualification = errors.New("all options ethically disqualified")
	// ErrExecutionAborted is wrapped by ExecutionError
	ErrExecutionAborted = errors.New("execution aborted")
	// ErrNotFound is returned by Get for unknown result ids
	ErrNotFound = errors.New("decision result not found")
)

// DisqualificationError lists the options that failed the ethical floor.
// It matches ErrEthicalDisqualification.
type DisqualificationError struct {
	Floor   float64
	Options []Option
}

func (e *DisqualificationError) Error() string {
	names := make([]string, len(e.Options))
	for i, o := range e.Options {
		names[i] = fmt.Sprintf("%s (%.2f)", o.Name, o.EthicalScore)
	}
	return fmt.Sprintf("%v: floor %.2f, options %s", ErrEthicalDisqualification, e.Floor, strings.Join(names, ", "))
}

func (e *DisqualificationError) Is(target error) bool {
	return target == ErrEthicalDisqualification
}

// ExecutionError describes a failed or aborted execution step
type ExecutionError struct {
	StepID      string
	Action      string
	Reason      string
	Contingency *Contingency
}

func (e *ExecutionError) Error() string {
	if e.Contingency != nil {
		return fmt.Sprintf("step %s (%s) aborted: %s; contingency %q applied", e.StepID, e.Action, e.Reason, e.Contingency.Alternative)
	}
	return fmt.Sprintf("step %s (%s) aborted: %s", e.StepID, e.Action, e.Reason)
}

func (e *ExecutionError) Unwrap() error {
	return ErrExecutionAborted
}

// Algorithm is a scoring method
type Algorithm string

const (
	MCDA          Algorithm = "mcda"
	GameTheoretic Algorithm = "game_theoretic"
	MCTS          Algorithm = "mcts"
	Bayesian      Algorithm = "bayesian"
	RiskAdjusted  Algorithm = "risk_adjusted"
)

// TimeHorizon is how soon a decision plays out
type TimeHorizon string

const (
	HorizonShort  TimeHorizon = "short"
	HorizonMedium TimeHorizon = "medium"
	HorizonLong   TimeHorizon = "long"
)

// Direction tells whether more of a criterion is better
type Direction string

const (
	Benefit Direction = "benefit"
	Cost    Direction = "cost"
)

// Criterion is one weighted decision criterion
type Criterion struct {
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	Direction Direction `json:"direction"`
}

// Opponent is another party whose strategy affects our payoff.
// Stance runs from -1 (adversarial) to 1 (cooperative).
type Opponent struct {
	Name       string   `json:"name"`
	Strategies []string `json:"strategies,omitempty"`
	Stance     float64  `json:"stance"`
}

// World states used by Bayesian scoring
const (
	StateFavourable   = "favourable"
	StateNeutral      = "neutral"
	StateUnfavourable = "unfavourable"
)

// Signal is an observation with a likelihood per world state
type Signal struct {
	Name       string             `json:"name"`
	Likelihood map[string]float64 `json:"likelihood"`
}

// Context describes the situation to decide on. Zero RiskTolerance and
// TimeHorizon are replaced with defaults.
type Context struct {
	Situation        string                        `json:"situation"`
	Goals            []string                      `json:"goals,omitempty"`
	Options          []string                      `json:"options,omitempty"` // candidate hints
	Criteria         []Criterion                   `json:"criteria,omitempty"`
	Constraints      []string                      `json:"constraints,omitempty"`
	Resources        map[string]float64            `json:"resources,omitempty"`
	Uncertainty      float64                       `json:"uncertainty"`
	Criticality      float64                       `json:"criticality"`
	RiskTolerance    float64                       `json:"risk_tolerance"`
	TimeHorizon      TimeHorizon                   `json:"time_horizon"`
	Stakeholders     []string                      `json:"stakeholders,omitempty"`
	Opponents        []Opponent                    `json:"opponents,omitempty"`
	Signals          []Signal                      `json:"signals,omitempty"`
	Algorithms       []Algorithm                   `json:"algorithms,omitempty"`
	OptionAttributes map[string]map[string]float64 `json:"option_attributes,omitempty"` // per-option attribute overrides
}

// Outcome is a predicted consequence of an option
type Outcome struct {
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
	Value       float64 `json:"value"`
	Failure     bool    `json:"failure"`
}

// Option is a candidate course of action
type Option struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Actions           []string              `json:"actions,omitempty"`
	PredictedOutcomes []Outcome             `json:"predicted_outcomes"`
	Attributes        map[string]float64    `json:"attributes"`
	ExpectedValue     float64               `json:"expected_value"`
	Risk              float64               `json:"risk"`
	Confidence        float64               `json:"confidence"`
	EthicalScore      float64               `json:"ethical_score"`
	Ethics            map[string]float64    `json:"ethics,omitempty"`
	Scores            map[Algorithm]float64 `json:"scores,omitempty"`
	Score             float64               `json:"score"`
	Disqualified      bool                  `json:"disqualified"`
}

// Checkpoint turns step progress into a verdict
type Checkpoint struct {
	Name       string  `json:"name"`
	ContinueAt float64 `json:"continue_at"`
	AbortBelow float64 `json:"abort_below"`
}

// Verdict is a checkpoint outcome
type Verdict string

const (
	VerdictContinue Verdict = "continue"
	VerdictAdapt    Verdict = "adapt"
	VerdictAbort    Verdict = "abort"
)

// Evaluate maps progress in [0,1] to a verdict
func (c Checkpoint) Evaluate(progress float64) Verdict {
	switch {
	case progress >= c.ContinueAt:
		return VerdictContinue
	case progress < c.AbortBelow:
		return VerdictAbort
	}
	return VerdictAdapt
}

// ExecutionStep is one ordered action of an execution plan
type ExecutionStep struct {
	ID         string        `json:"id"`
	Order      int           `json:"order"`
	Action     string        `json:"action"`
	Duration   time.Duration `json:"duration"`
	Checkpoint Checkpoint    `json:"checkpoint"`
}

// Contingency is the fallback registered for a failure outcome
type Contingency struct {
	Trigger     string  `json:"trigger"`
	Condition   string  `json:"condition"`
	Alternative string  `json:"alternative"`
	Probability float64 `json:"probability"`
}

// ExecutionPlan is the ordered step list for the selected option
type ExecutionPlan struct {
	Steps         []ExecutionStep `json:"steps"`
	Contingencies []Contingency   `json:"contingencies"`
}

// Metric is a monitored quantity with alert thresholds
type Metric struct {
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Warning   float64 `json:"warning"`
	Alert     float64 `json:"alert"`
	HigherBad bool    `json:"higher_bad"`
}

// MonitoringPlan lists what to watch while executing
type MonitoringPlan struct {
	Metrics   []Metric      `json:"metrics"`
	Frequency time.Duration `json:"frequency"`
}

// Result is the outcome of Decide
type Result struct {
	ID             string         `json:"id"`
	Context        Context        `json:"context"`
	SelectedOption Option         `json:"selected_option"`
	Alternatives   []Option       `json:"alternatives"` // ranked, disqualified options last
	Algorithms     []Algorithm    `json:"algorithms"`
	ExecutionPlan  ExecutionPlan  `json:"execution_plan"`
	MonitoringPlan MonitoringPlan `json:"monitoring_plan"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `json:"created_at"`
}

// StepReport records one executed step
type StepReport struct {
	StepID   string  `json:"step_id"`
	Action   string  `json:"action"`
	Progress float64 `json:"progress"`
	Verdict  Verdict `json:"verdict"`
	Attempts int     `json:"attempts"`
}

// ExecutionReport summarises an Execute call
type ExecutionReport struct {
	ResultID        string       `json:"result_id"`
	Steps           []StepReport `json:"steps"`
	Completed       bool         `json:"completed"`
	Adapted         int          `json:"adapted"`
	ContingencyUsed *Contingency `json:"contingency_used,omitempty"`
}
