package planning

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPlanningInfeasible is matched by every *InfeasibleError
	ErrPlanningInfeasible = errors.New("planning infeasible")
	// ErrPlanNotFound is returned for unknown plan ids
	ErrPlanNotFound = errors.New("plan not found")
	// ErrAlreadyMonitoring is returned when a plan already has a monitor
	ErrAlreadyMonitoring = errors.New("plan already monitored")
	// ErrEmptyGoal is returned when a goal has no description
	ErrEmptyGoal = errors.New("goal description is empty")
)

// InfeasibleError reports that a search found no plan
type InfeasibleError struct {
	Algorithm Algorithm
	Goal      string
	Reason    string
	Explored  int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%v: %s for %q: %s (explored %d)", ErrPlanningInfeasible, e.Algorithm, e.Goal, e.Reason, e.Explored)
}

func (e *InfeasibleError) Is(target error) bool {
	return target == ErrPlanningInfeasible
}

// GoalType describes what kind of outcome a goal seeks
type GoalType string

const (
	GoalAchievement  GoalType = "achievement"
	GoalMaintenance  GoalType = "maintenance"
	GoalAvoidance    GoalType = "avoidance"
	GoalOptimization GoalType = "optimization"
	GoalExploration  GoalType = "exploration"
)

// GoalStatus is a goal's lifecycle state
type GoalStatus string

const (
	GoalPending   GoalStatus = "pending"
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalSuspended GoalStatus = "suspended"
)

// Horizon is the planning time scale
type Horizon string

const (
	HorizonImmediate Horizon = "immediate"
	HorizonShort     Horizon = "short_term"
	HorizonMedium    Horizon = "medium_term"
	HorizonLong      Horizon = "long_term"
)

// Algorithm is a planning method
type Algorithm string

const (
	HTN            Algorithm = "htn"
	STRIPS         Algorithm = "strips"
	POP            Algorithm = "pop"
	MultiObjective Algorithm = "multi_objective"
)

// Goal is something to plan for. Progress runs from 0 to 100.
type Goal struct {
	ID              string             `json:"id"`
	Description     string             `json:"description"`
	Type            GoalType           `json:"type"`
	Priority        float64            `json:"priority"`
	Deadline        *time.Time         `json:"deadline,omitempty"`
	Dependencies    []string           `json:"dependencies,omitempty"`
	Constraints     []string           `json:"constraints,omitempty"`
	SuccessCriteria []string           `json:"success_criteria,omitempty"`
	Status          GoalStatus         `json:"status"`
	Progress        float64            `json:"progress"`
	SubGoals        []Goal             `json:"subgoals,omitempty"`
	Resources       map[string]float64 `json:"resources,omitempty"`
}

// Action is a STRIPS operator
type Action struct {
	Name          string        `json:"name"`
	Preconditions []string      `json:"preconditions,omitempty"`
	Add           []string      `json:"add,omitempty"`
	Delete        []string      `json:"delete,omitempty"`
	Cost          float64       `json:"cost"`
	Duration      time.Duration `json:"duration"`
}

// StepStatus is the execution state of a plan step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
)

// Step is one primitive action of a plan. Start and End are offsets from
// the schedule start.
type Step struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	GoalID        string        `json:"goal_id,omitempty"`
	Phase         string        `json:"phase,omitempty"`
	Dependencies  []string      `json:"dependencies,omitempty"`
	Preconditions []string      `json:"preconditions,omitempty"`
	Effects       []string      `json:"effects,omitempty"`
	Deletes       []string      `json:"deletes,omitempty"`
	Duration      time.Duration `json:"duration"`
	Cost          float64       `json:"cost"`
	Start         time.Duration `json:"start"`
	End           time.Duration `json:"end"`
	Status        StepStatus    `json:"status"`
}

// ScheduleEntry pins a step to wall-clock time
type ScheduleEntry struct {
	StepID string    `json:"step_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Schedule is the timed layout of a plan
type Schedule struct {
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Entries []ScheduleEntry `json:"entries"`
}

// Contingency is a prepared response to a plan risk
type Contingency struct {
	Trigger     string  `json:"trigger"`
	Response    string  `json:"response"`
	Probability float64 `json:"probability"`
}

// MonitoringStrategy says how often and what to poll
type MonitoringStrategy struct {
	Frequency time.Duration `json:"frequency"`
	Metrics   []string      `json:"metrics"`
}

// AdaptationPolicy bounds replanning
type AdaptationPolicy struct {
	ReplanningThreshold float64 `json:"replanning_threshold"`
	MaxAdaptations      int     `json:"max_adaptations"`
}

// Plan statuses
const (
	StatusReady   = "ready"
	StatusAtRisk  = "at_risk"
	StatusAdapted = "adapted"
)

// Objectives are the scores of a multi-objective candidate. Makespan, cost
// and risk are minimised; coverage is maximised.
type Objectives struct {
	Label    string        `json:"label"`
	Order    []string      `json:"order"`
	Makespan time.Duration `json:"makespan"`
	Cost     float64       `json:"cost"`
	Risk     float64       `json:"risk"`
	Coverage float64       `json:"coverage"`
}

// Plan is a scheduled set of steps for a goal. Steps are in a topological
// order of their dependencies.
type Plan struct {
	ID                string             `json:"id"`
	Goal              Goal               `json:"goal"`
	Horizon           Horizon            `json:"horizon"`
	Algorithm         Algorithm          `json:"algorithm"`
	Steps             []Step             `json:"steps"`
	Schedule          Schedule           `json:"schedule"`
	Contingencies     []Contingency      `json:"contingencies,omitempty"`
	Monitoring        MonitoringStrategy `json:"monitoring_strategy"`
	Adaptation        AdaptationPolicy   `json:"adaptation_policy"`
	EstimatedDuration time.Duration      `json:"estimated_duration"`
	EstimatedCost     float64            `json:"estimated_cost"`
	Resources         map[string]float64 `json:"resources,omitempty"`
	Frontier          []Objectives       `json:"frontier,omitempty"`
	Confidence        float64            `json:"confidence"`
	Status            string             `json:"status"`
	Version           int                `json:"version"`
	History           [][]Step           `json:"history,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Request is the full planning input. Zero Horizon is classified from the
// goal deadline, zero Algorithm is selected automatically.
type Request struct {
	Goal         Goal               `json:"goal"`
	Horizon      Horizon            `json:"horizon,omitempty"`
	Algorithm    Algorithm          `json:"algorithm,omitempty"`
	InitialState []string           `json:"initial_state,omitempty"`
	Actions      []Action           `json:"actions,omitempty"`
	Goals        []Goal             `json:"goals,omitempty"`      // joint goals for multi-objective planning
	Priorities   map[string]float64 `json:"priorities,omitempty"` // objective weights: makespan, cost, risk, coverage
}

// Metrics is one execution observation. Progress runs from 0 to 100; zero
// Elapsed means time since the plan was created.
type Metrics struct {
	Progress  float64       `json:"progress"`
	CostSpent float64       `json:"cost_spent"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Deviation is the outcome of comparing metrics with the plan
type Deviation struct {
	PlanID        string  `json:"plan_id"`
	Expected      float64 `json:"expected_progress"`
	Shortfall     float64 `json:"shortfall"`
	CostOverrun   float64 `json:"cost_overrun"`
	Value         float64 `json:"value"`
	Significant   bool    `json:"significant"`
	Adapted       bool    `json:"adapted"`
	Version       int     `json:"version"`
	LimitExceeded bool    `json:"limit_exceeded"`
}

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case HTN, STRIPS, POP, MultiObjective:
		return a, nil
	case "mcts":
		return MultiObjective, nil
	}
	return "", fmt.Errorf("unknown planning algorithm %q", s)
}

// ParseHorizon validates a horizon name
func ParseHorizon(s string) (Horizon, error) {
	switch h := Horizon(s); h {
	case HorizonImmediate, HorizonShort, HorizonMedium, HorizonLong:
		return h, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown planning horizon %q", s)
}

func cloneGoal(g Goal) Goal {
	c := g
	c.Dependencies = append([]string(nil), g.Dependencies...)
	c.Constraints = append([]string(nil), g.Constraints...)
	c.SuccessCriteria = append([]string(nil), g.SuccessCriteria...)
	if g.Deadline != nil {
		d := *g.Deadline
		c.Deadline = &d
	}
	if g.Resources != nil {
		c.Resources = make(map[string]float64, len(g.Resources))
		for k, v := range g.Resources {
			c.Resources[k] = v
		}
	}
	c.SubGoals = nil
	for _, s := range g.SubGoals {
		c.SubGoals = append(c.SubGoals, cloneGoal(s))
	}
	return c
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s
		out[i].Dependencies = append([]string(nil), s.Dependencies...)
		out[i].Preconditions = append([]string(nil), s.Preconditions...)
		out[i].Effects = append([]string(nil), s.Effects...)
		out[i].Deletes = append([]string(nil), s.Deletes...)
	}
	return out
}

func (p *Plan) clone() *Plan {
	c := *p
	c.Goal = cloneGoal(p.Goal)
	c.Steps = cloneSteps(p.Steps)
	c.Schedule.Entries = append([]ScheduleEntry(nil), p.Schedule.Entries...)
	c.Contingencies = append([]Contingency(nil), p.Contingencies...)
	c.Monitoring.Metrics = append([]string(nil), p.Monitoring.Metrics...)
	c.Frontier = append([]Objectives(nil), p.Frontier...)
	c.History = nil
	for _, h := range p.History {
		c.History = append(c.History, cloneSteps(h))
	}
	if p.Resources != nil {
		c.Resources = make(map[string]float64, len(p.Resources))
		for k, v := range p.Resources {
			c.Resources[k] = v
		}
	}
	return &c
}
