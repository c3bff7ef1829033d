// Package planning turns goals into scheduled, monitored plans. Goals are
// decomposed into hierarchical task networks, searched with STRIPS or
// partial-order planning when explicit actions are given, or planned jointly
// over a Pareto frontier when several goals compete.
package planning

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds planning engine configuration
type Config struct {
	MaxDepth            int
	MaxExpansions       int
	ReplanningThreshold float64
	MaxAdaptations      int
	StepCost            float64       // cost of a unit-weight step
	MonitorInterval     time.Duration // fixed poll interval; zero derives it from the plan duration
	MonitorChecks       int           // polls per plan duration when MonitorInterval is zero
	Samples             int           // sampled orderings beyond six goals
	Seed                uint64
	MaxPlans            int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:            5,
		MaxExpansions:       10000,
		ReplanningThreshold: 0.2,
		MaxAdaptations:      3,
		StepCost:            1000,
		MonitorChecks:       20,
		Samples:             24,
		Seed:                42,
		MaxPlans:            200,
	}
}

type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine creates, stores and monitors plans
type Engine struct {
	config *Config
	log    zerolog.Logger
	clock  func() time.Time

	mu        sync.RWMutex
	plans     map[string]*Plan
	order     []string
	monitors  map[string]*monitor
	observers []func(Plan)
	wg        sync.WaitGroup
}

// NewEngine creates a planning engine
func NewEngine(config *Config, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.MaxDepth <= 0 {
		config.MaxDepth = defaults.MaxDepth
	}
	if config.MaxExpansions <= 0 {
		config.MaxExpansions = defaults.MaxExpansions
	}
	if config.StepCost <= 0 {
		config.StepCost = defaults.StepCost
	}
	if config.MonitorChecks <= 0 {
		config.MonitorChecks = defaults.MonitorChecks
	}
	if config.Samples <= 0 {
		config.Samples = defaults.Samples
	}
	return &Engine{
		config:   config,
		log:      log,
		clock:    time.Now,
		plans:    make(map[string]*Plan),
		monitors: make(map[string]*monitor),
	}
}

// SetClock overrides the time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// OnAdapted registers an observer called with a snapshot after every adaptation
func (e *Engine) OnAdapted(fn func(Plan)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// CreatePlan plans a single goal. An empty horizon is classified from the deadline.
func (e *Engine) CreatePlan(ctx context.Context, goal Goal, horizon Horizon) (*Plan, error) {
	return e.Plan(ctx, Request{Goal: goal, Horizon: horizon})
}

// Plan runs the full pipeline: classify the horizon, select an algorithm,
// build steps, schedule them and attach contingencies and monitoring.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goal := req.Goal
	if goal.Description == "" && len(req.Goals) == 1 {
		goal = req.Goals[0]
	}
	now := e.clock()
	alg := selectAlgorithm(req)

	var joint []Goal
	if alg == MultiObjective {
		joint = append([]Goal(nil), req.Goals...)
		if len(joint) == 0 {
			joint = []Goal{goal}
		}
		for i := range joint {
			joint[i] = normalizeGoal(joint[i])
		}
		if goal.Description == "" {
			goal = jointGoal(joint)
		}
	}
	if strings.TrimSpace(goal.Description) == "" {
		return nil, ErrEmptyGoal
	}
	goal = normalizeGoal(goal)

	horizon, atRisk := ClassifyHorizon(goal.Deadline, now)
	if req.Horizon != "" {
		horizon = req.Horizon
	}
	avail := available(horizon, goal.Deadline, now)

	e.log.Debug().Str("goal", goal.Description).Str("horizon", string(horizon)).Str("algorithm", string(alg)).Msg("Planning started")

	var (
		steps    []Step
		frontier []Objectives
		err      error
	)
	switch alg {
	case HTN:
		var root *task
		steps, root, err = e.htn(ctx, goal, horizon)
		if err == nil && len(goal.SubGoals) == 0 {
			goal.SubGoals = subGoals(root)
		}
	case STRIPS:
		steps, err = e.strips(ctx, goal, req.InitialState, req.Actions)
	case POP:
		steps, err = e.pop(ctx, goal, req.InitialState, req.Actions)
	case MultiObjective:
		steps, frontier, goal.SubGoals, err = e.multiObjective(ctx, joint, req.Priorities, now)
	default:
		err = fmt.Errorf("unknown planning algorithm %q", alg)
	}
	if err != nil {
		e.log.Debug().Err(err).Str("goal", goal.Description).Msg("Planning failed")
		return nil, fmt.Errorf("plan %s: %w", alg, err)
	}
	e.assignEffort(steps, avail)

	goal.Status = GoalActive
	plan := &Plan{
		ID:        uuid.New().String(),
		Goal:      goal,
		Horizon:   horizon,
		Algorithm: alg,
		Steps:     steps,
		Frontier:  frontier,
		Status:    StatusReady,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Adaptation: AdaptationPolicy{
			ReplanningThreshold: e.config.ReplanningThreshold,
			MaxAdaptations:      e.config.MaxAdaptations,
		},
	}
	if atRisk {
		plan.Status = StatusAtRisk
	}
	schedule(plan, now, 0)
	if len(goal.Resources) > 0 {
		plan.Resources = make(map[string]float64, len(goal.Resources))
		for k, v := range goal.Resources {
			plan.Resources[k] = v
		}
		if budget, ok := goal.Resources["budget"]; ok && budget > 0 {
			fitBudget(plan, budget, 0)
		}
	}
	plan.Contingencies = e.contingencies(plan, atRisk)
	plan.Monitoring = e.monitoringStrategy(plan)
	plan.Confidence = e.confidence(plan, avail, atRisk)

	e.store(plan)
	e.log.Info().
		Str("plan", plan.ID).
		Str("algorithm", string(alg)).
		Str("horizon", string(horizon)).
		Int("steps", len(plan.Steps)).
		Dur("duration", plan.EstimatedDuration).
		Float64("cost", plan.EstimatedCost).
		Msg("Plan created")
	return plan.clone(), nil
}

// selectAlgorithm picks by the shape of the request: several goals plan
// jointly, explicit actions search state space, everything else decomposes
func selectAlgorithm(req Request) Algorithm {
	switch {
	case req.Algorithm != "":
		return req.Algorithm
	case len(req.Goals) > 1:
		return MultiObjective
	case len(req.Actions) > 0 && len(req.Goal.SuccessCriteria) > 2:
		return POP
	case len(req.Actions) > 0:
		return STRIPS
	}
	return HTN
}

func normalizeGoal(g Goal) Goal {
	g = cloneGoal(g)
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.Type == "" {
		g.Type = GoalAchievement
	}
	if g.Status == "" {
		g.Status = GoalPending
	}
	if g.Priority <= 0 {
		g.Priority = 0.5
	}
	return g
}

// jointGoal summarises several goals: earliest deadline, highest priority, summed resources
func jointGoal(goals []Goal) Goal {
	g := Goal{Type: GoalOptimization}
	names := make([]string, len(goals))
	for i, sg := range goals {
		names[i] = sg.Description
		if sg.Priority > g.Priority {
			g.Priority = sg.Priority
		}
		if sg.Deadline != nil && (g.Deadline == nil || sg.Deadline.Before(*g.Deadline)) {
			d := *sg.Deadline
			g.Deadline = &d
		}
		for k, v := range sg.Resources {
			if g.Resources == nil {
				g.Resources = make(map[string]float64)
			}
			g.Resources[k] += v
		}
		g.SuccessCriteria = append(g.SuccessCriteria, sg.SuccessCriteria...)
	}
	g.Description = "joint plan: " + strings.Join(names, "; ")
	return g
}

func (e *Engine) store(p *Plan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plans[p.ID] = p
	e.order = append(e.order, p.ID)
	if limit := e.config.MaxPlans; limit > 0 && len(e.order) > limit {
		oldest := e.order[0]
		if _, monitored := e.monitors[oldest]; !monitored {
			delete(e.plans, oldest)
			e.order = e.order[1:]
		}
	}
}

// Get returns a snapshot of a stored plan. Re-fetch after an adaptation.
func (e *Engine) Get(id string) (*Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p.clone(), nil
}

// Plans returns snapshots of every stored plan, oldest first
func (e *Engine) Plans() []*Plan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Plan, 0, len(e.order))
	for _, id := range e.order {
		if p, ok := e.plans[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out
}

// Close stops every monitor and waits for them to exit
func (e *Engine) Close() error {
	e.mu.Lock()
	for id, m := range e.monitors {
		m.cancel()
		delete(e.monitors, id)
	}
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}
