package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/events"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
	"github.com/quantumflow/cognicore/internal/understanding"
)

// track times one engine call, records it and wraps any failure
func track[T interface{}](o *Orchestrator, component, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	o.metrics.record(component, time.Since(start), err != nil)
	if err != nil {
		o.log.Error().Err(err).Str("component", component).Str("op", op).Msg("Engine call failed")
		var zero T
		return zero, &EngineExecutionError{Component: component, Op: op, Err: err}
	}
	return v, nil
}

func (o *Orchestrator) understand(ctx context.Context, input string, prev *understanding.ContextModel) (*understanding.ContextModel, error) {
	return track(o, "understanding", "understand", func() (*understanding.ContextModel, error) {
		return o.understanding.Understand(ctx, input, prev)
	})
}

func (o *Orchestrator) reason(ctx context.Context, goal string, evidence []models.Evidence, c *reasoning.Constraints) (*reasoning.Chain, error) {
	chain, err := track(o, "reasoning", "reason", func() (*reasoning.Chain, error) {
		return o.reasoning.Reason(ctx, goal, evidence, c)
	})
	if err != nil {
		return nil, err
	}
	o.bus.Publish(events.ReasoningComplete, map[string]interface{}{
		"chain_id":   chain.ID,
		"conclusion": chain.FinalConclusion,
		"confidence": chain.OverallConfidence,
		"success":    chain.Success,
	})
	return chain, nil
}

func (o *Orchestrator) decide(ctx context.Context, dc decision.Context) (*decision.Result, error) {
	r, err := track(o, "decision", "decide", func() (*decision.Result, error) {
		return o.decision.Decide(ctx, dc)
	})
	if err != nil {
		return nil, err
	}
	o.bus.Publish(events.DecisionMade, map[string]interface{}{
		"decision_id": r.ID,
		"selected":    r.SelectedOption.Name,
		"confidence":  r.Confidence,
	})
	return r, nil
}

// execute runs a decision's plan. An aborted execution is an outcome, not a
// failure: the report comes back with Completed false.
func (o *Orchestrator) execute(ctx context.Context, r *decision.Result) (*decision.ExecutionReport, error) {
	start := time.Now()
	report, err := o.decision.Execute(ctx, r, o.runner)
	aborted := errors.Is(err, decision.ErrExecutionAborted)
	o.metrics.record("decision", time.Since(start), err != nil && !aborted)

	if report != nil && report.ContingencyUsed != nil {
		o.bus.Publish(events.ContingencyTriggered, map[string]interface{}{
			"decision_id": r.ID,
			"trigger":     report.ContingencyUsed.Trigger,
			"alternative": report.ContingencyUsed.Alternative,
		})
	}
	if err != nil && !aborted {
		o.log.Error().Err(err).Str("decision", r.ID).Msg("Decision execution failed")
		return report, &EngineExecutionError{Component: "decision", Op: "execute", Err: err}
	}
	if aborted {
		o.log.Warn().Err(err).Str("decision", r.ID).Msg("Decision execution aborted")
	}
	o.bus.Publish(events.DecisionExecuted, map[string]interface{}{
		"decision_id": r.ID,
		"completed":   report.Completed,
		"adapted":     report.Adapted,
	})
	return report, nil
}

func (o *Orchestrator) plan(ctx context.Context, req planning.Request) (*planning.Plan, error) {
	p, err := track(o, "planning", "plan", func() (*planning.Plan, error) {
		return o.planning.Plan(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	o.bus.Publish(events.PlanCreated, map[string]interface{}{
		"plan_id":   p.ID,
		"horizon":   string(p.Horizon),
		"algorithm": string(p.Algorithm),
		"steps":     len(p.Steps),
	})
	return p, nil
}

func (o *Orchestrator) create(ctx context.Context, c creativity.Challenge) (*creativity.Result, error) {
	r, err := track(o, "creativity", "generate", func() (*creativity.Result, error) {
		return o.creativity.Generate(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	o.bus.Publish(events.CreativityComplete, map[string]interface{}{
		"result_id": r.ID,
		"ideas":     len(r.Outputs),
	})
	return r, nil
}

func (o *Orchestrator) learn(ctx context.Context, exp models.Experience) (*learning.Outcome, error) {
	out, err := track(o, "learning", "learn", func() (*learning.Outcome, error) {
		return o.learning.Learn(ctx, exp)
	})
	if err != nil {
		return nil, err
	}
	o.publishLearning(exp)
	return out, nil
}

// evidenceFor collects pctx["evidence"] and the propositions of the context
// model as observations
func evidenceFor(cm *understanding.ContextModel, pctx map[string]interface{}) []models.Evidence {
	var out []models.Evidence
	switch ev := pctx["evidence"].(type) {
	case []models.Evidence:
		out = append(out, ev...)
	default:
		for _, s := range stringSlice(ev) {
			out = append(out, models.Evidence{Content: s, Source: "input", Kind: models.EvidenceObservation, Reliability: 0.8})
		}
	}
	if cm == nil {
		return out
	}
	for _, p := range cm.Propositions {
		if p.Negated || p.Action == "" {
			continue
		}
		content := strings.TrimSpace(strings.Join([]string{p.Agent, p.Action, p.Patient}, " "))
		out = append(out, models.Evidence{
			Content:     content,
			Source:      "understanding",
			Kind:        models.EvidenceObservation,
			Reliability: models.Clamp01(cm.Confidence),
		})
	}
	return out
}

// decisionContext builds a decision context from a task and its grounding
func decisionContext(task *models.Task, cm *understanding.ContextModel, pctx map[string]interface{}) decision.Context {
	dc := decision.Context{
		Situation:   task.Description,
		Options:     stringSlice(pctx["options"]),
		Criteria:    criteriaFrom(pctx["criteria"]),
		Constraints: stringSlice(pctx["constraints"]),
		Goals:       stringSlice(pctx["goals"]),
		Criticality: task.Priority,
	}
	if cm != nil {
		dc.Uncertainty = models.Clamp01(1 - cm.Confidence)
		if budget, ok := cm.Budget(); ok {
			dc.Resources = map[string]float64{"budget": budget}
		}
		for _, e := range cm.Entities(understanding.LabelPerson) {
			dc.Stakeholders = append(dc.Stakeholders, e.Value)
		}
		for _, e := range cm.Entities(understanding.LabelOrg) {
			dc.Stakeholders = append(dc.Stakeholders, e.Value)
		}
	}
	if rt, ok := pctx["riskTolerance"].(float64); ok {
		dc.RiskTolerance = rt
	}
	if task.Deadline != nil {
		dc.TimeHorizon = horizonFor(task.Deadline.Sub(task.CreatedAt))
	}
	return dc
}

func horizonFor(d time.Duration) decision.TimeHorizon {
	switch {
	case d <= 7*24*time.Hour:
		return decision.HorizonShort
	case d <= 90*24*time.Hour:
		return decision.HorizonMedium
	default:
		return decision.HorizonLong
	}
}

// criteriaFrom accepts criterion names or full criteria. Names are benefit
// criteria of equal weight, except risk and cost which are minimised.
func criteriaFrom(v interface{}) []decision.Criterion {
	if cs, ok := v.([]decision.Criterion); ok {
		return cs
	}
	names := stringSlice(v)
	if len(names) == 0 {
		return nil
	}
	out := make([]decision.Criterion, 0, len(names))
	for _, n := range names {
		dir := decision.Benefit
		switch strings.ToLower(n) {
		case "risk", "cost", "price", "effort", "intensity":
			dir = decision.Cost
		}
		out = append(out, decision.Criterion{Name: n, Weight: 1 / float64(len(names)), Direction: dir})
	}
	return out
}

// planRequest builds a planning request from a task. The horizon comes from
// pctx["horizon"] or is left for the planner to classify.
func planRequest(task *models.Task, cm *understanding.ContextModel, pctx map[string]interface{}) (planning.Request, error) {
	goal := planning.Goal{
		Description: task.Description,
		Type:        planning.GoalAchievement,
		Priority:    task.Priority,
		Deadline:    task.Deadline,
		Constraints: stringSlice(pctx["constraints"]),
		Status:      planning.GoalPending,
	}
	if res, ok := pctx["resources"].(map[string]float64); ok {
		goal.Resources = res
	}
	if cm != nil {
		if budget, ok := cm.Budget(); ok {
			if goal.Resources == nil {
				goal.Resources = map[string]float64{}
			}
			if _, set := goal.Resources["budget"]; !set {
				goal.Resources["budget"] = budget
			}
		}
	}
	req := planning.Request{Goal: goal}
	if h := stringValue(pctx["horizon"]); h != "" {
		horizon, err := planning.ParseHorizon(h)
		if err != nil {
			return req, err
		}
		req.Horizon = horizon
	}
	return req, nil
}

// experienceFromData turns an arbitrary learning payload into an experience
func experienceFromData(data interface{}, mode string) models.Experience {
	var exp models.Experience
	switch d := data.(type) {
	case models.Experience:
		exp = d
	case *models.Experience:
		if d != nil {
			exp = *d
		}
	case string:
		exp.Input = d
	case map[string]interface{}:
		exp.Input = stringValue(d["input"])
		exp.Outcome = stringValue(d["outcome"])
		exp.Label = stringValue(d["label"])
		exp.Actions = stringSlice(d["actions"])
		exp.Context = d
		if tt, ok := d["taskType"].(string); ok {
			exp.TaskType, _ = normalizeTaskType(tt)
		}
		if r, ok := d["reward"].(float64); ok {
			exp.Reward = r
		}
		if s, ok := d["success"].(bool); ok {
			exp.Success = s
		}
		if f, ok := d["features"].(map[string]float64); ok {
			exp.Features = f
		}
	case nil:
	default:
		exp.Input = fmt.Sprint(d)
	}
	if mode != "" {
		exp.Mode = mode
	}
	return exp
}

func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, x := range s {
			if str, ok := x.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
