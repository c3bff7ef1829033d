package agent

import (
	"context"
	"runtime"

	"github.com/google/uuid"

	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
)

// surfaceTask describes a direct call for the learning follow-up. It is not
// registered and does not touch the cognitive state.
func (o *Orchestrator) surfaceTask(tt models.TaskType, description string) *models.Task {
	return &models.Task{
		ID:          uuid.New().String(),
		Type:        tt,
		Description: description,
		Priority:    Priority(description, nil, o.clock()),
		CreatedAt:   o.clock(),
	}
}

// Reason builds a reasoning chain for goal. An empty method lets the engine
// pick the reasoning types from the goal.
func (o *Orchestrator) Reason(ctx context.Context, goal string, evidence []models.Evidence, method string) (*reasoning.Chain, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	c := &reasoning.Constraints{}
	if method != "" {
		m, err := reasoning.ParseType(method)
		if err != nil {
			return nil, err
		}
		c.Method = m
	}
	chain, err := o.reason(ctx, goal, evidence, c)
	if err != nil {
		return nil, err
	}
	o.learnFollowUp(ctx, &Result{Task: o.surfaceTask(models.TaskTypeReasoning, goal), Reasoning: chain})
	return chain, nil
}

// Learn records data as an experience. data may be a models.Experience, a
// map of experience fields or free text.
func (o *Orchestrator) Learn(ctx context.Context, data interface{}, mode string) (*learning.Outcome, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	exp := experienceFromData(data, mode)
	if exp.TaskType == "" {
		exp.TaskType = models.TaskTypeLearning
	}
	out, err := o.learn(ctx, exp)
	if err != nil {
		return nil, err
	}
	if exp.Input != "" {
		o.state.remember(exp.Input)
	}
	return out, nil
}

// Decide chooses among options for situation. Criteria are given by name;
// risk and cost style names are minimised.
func (o *Orchestrator) Decide(ctx context.Context, situation string, options, criteria []string) (*decision.Result, error) {
	return o.DecideContext(ctx, decision.Context{
		Situation: situation,
		Options:   options,
		Criteria:  criteriaFrom(criteria),
	})
}

// DecideContext decides with a fully specified context
func (o *Orchestrator) DecideContext(ctx context.Context, dc decision.Context) (*decision.Result, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	r, err := o.decide(ctx, dc)
	if err != nil {
		return nil, err
	}
	o.learnFollowUp(ctx, &Result{Task: o.surfaceTask(models.TaskTypeDecision, dc.Situation), Decision: r})
	return r, nil
}

// ExecuteDecision runs the execution plan of an earlier decision
func (o *Orchestrator) ExecuteDecision(ctx context.Context, id string) (*decision.ExecutionReport, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	r, err := track(o, "decision", "get", func() (*decision.Result, error) {
		return o.decision.Get(id)
	})
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, r)
}

// Create generates scored ideas for a creative challenge
func (o *Orchestrator) Create(ctx context.Context, problem string, constraints, outcomes []string, domain string) (*creativity.Result, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	r, err := o.create(ctx, creativity.Challenge{
		Problem:     problem,
		Constraints: constraints,
		Outcomes:    outcomes,
		Domain:      domain,
	})
	if err != nil {
		return nil, err
	}
	o.learnFollowUp(ctx, &Result{Task: o.surfaceTask(models.TaskTypeCreativity, problem), Creative: r})
	return r, nil
}

// Plan builds a plan for in.Goal. A zero horizon is classified from the
// deadline.
func (o *Orchestrator) Plan(ctx context.Context, in PlanInput) (*planning.Plan, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	task := o.surfaceTask(models.TaskTypePlanning, in.Goal)
	task.Deadline = in.Deadline
	p, err := o.plan(ctx, planning.Request{
		Goal: planning.Goal{
			Description: in.Goal,
			Type:        planning.GoalAchievement,
			Priority:    task.Priority,
			Deadline:    in.Deadline,
			Constraints: in.Constraints,
			Resources:   in.Resources,
			Status:      planning.GoalPending,
		},
		Horizon: in.Horizon,
	})
	if err != nil {
		return nil, err
	}
	o.learnFollowUp(ctx, &Result{Task: task, Plan: p})
	return p, nil
}

// DecidePlanSteps makes one decision per step of a stored plan, in parallel.
// The results are in step order.
func (o *Orchestrator) DecidePlanSteps(ctx context.Context, planID string) ([]*decision.Result, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	p, err := o.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	batch := make([]decideStepCommand, len(p.Steps))
	for i, s := range p.Steps {
		batch[i] = decideStepCommand{plan: p, step: s, index: i}
	}
	res := &Result{Task: o.surfaceTask(models.TaskTypeDecision, p.Goal.Description), Plan: p}
	if err := o.decideSteps(ctx, batch, res); err != nil {
		return nil, err
	}
	return res.Decisions, nil
}

// GetPlan returns a stored plan
func (o *Orchestrator) GetPlan(id string) (*planning.Plan, error) {
	return track(o, "planning", "get", func() (*planning.Plan, error) {
		return o.planning.Get(id)
	})
}

// MonitorPlan polls source for the plan's metrics until StopMonitor, Close
// or ctx ends. Adaptations are published as plan:adapted.
func (o *Orchestrator) MonitorPlan(ctx context.Context, planID string, source planning.MetricSource) error {
	if o.isClosed() {
		return ErrClosed
	}
	_, err := track(o, "planning", "monitor", func() (struct{}, error) {
		return struct{}{}, o.planning.StartMonitoring(ctx, planID, source)
	})
	return err
}

// StopMonitor ends monitoring of a plan
func (o *Orchestrator) StopMonitor(planID string) {
	o.planning.StopMonitoring(planID)
}

// State returns a copy of the cognitive state
func (o *Orchestrator) State() CognitiveState {
	return o.state.Snapshot()
}

// History returns the finished tasks, oldest first
func (o *Orchestrator) History() []TaskRecord {
	return o.tasks.recent(0)
}

// Status reports the health of the orchestrator and its engines
func (o *Orchestrator) Status() StatusSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return StatusSnapshot{
		Uptime:     o.clock().Sub(o.startedAt),
		Cycle:      o.cycleStatus(),
		State:      o.state.Snapshot(),
		Components: o.metrics.snapshot(),
		Memory:     o.memory.GetStats(),
		Tasks:      o.tasks.counts(),
		Workers:    o.pool.Metrics(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
	}
}
