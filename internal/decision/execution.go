package decision

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// StepRunner performs one execution step and reports progress in [0,1]
type StepRunner interface {
	Run(ctx context.Context, step ExecutionStep) (float64, error)
}

// StepRunnerFunc adapts a function to StepRunner
type StepRunnerFunc func(ctx context.Context, step ExecutionStep) (float64, error)

// Run calls f
func (f StepRunnerFunc) Run(ctx context.Context, step ExecutionStep) (float64, error) {
	return f(ctx, step)
}

// SimulatedRunner completes every step with deterministic progress in [0.75,1]
type SimulatedRunner struct{}

// Run returns a stable progress value derived from the action
func (SimulatedRunner) Run(ctx context.Context, step ExecutionStep) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h := fnv.New32a()
	h.Write([]byte(step.Action))
	return 0.75 + 0.25*float64(h.Sum32()%101)/100, nil
}

func (e *Engine) buildExecutionPlan(c *Context, selected Option, runnerUp *Option) ExecutionPlan {
	actions := selected.Actions
	if len(actions) == 0 {
		actions = []string{"prepare " + selected.Name, "execute " + selected.Name, "review " + selected.Name}
	}
	if len(c.Stakeholders) > 0 {
		actions = append(actions, "inform stakeholders: "+strings.Join(c.Stakeholders, ", "))
	}

	stepDuration := e.horizonDuration(c.TimeHorizon) / time.Duration(len(actions))
	plan := ExecutionPlan{Steps: make([]ExecutionStep, len(actions))}
	for i, a := range actions {
		plan.Steps[i] = ExecutionStep{
			ID:       fmt.Sprintf("step-%d", i+1),
			Order:    i + 1,
			Action:   a,
			Duration: time.Duration(float64(stepDuration) * (0.5 + selected.Attributes[AttrTime])),
			Checkpoint: Checkpoint{
				Name:       fmt.Sprintf("after %s", a),
				ContinueAt: e.config.CheckpointContinue,
				AbortBelow: e.config.CheckpointAbort,
			},
		}
	}

	alternative := "halt and reassess the decision"
	if runnerUp != nil {
		alternative = "switch to " + runnerUp.Name
	}
	for _, o := range selected.PredictedOutcomes {
		if !o.Failure {
			continue
		}
		plan.Contingencies = append(plan.Contingencies, Contingency{
			Trigger:     o.Description,
			Condition:   fmt.Sprintf("step progress below %.2f or step error", e.config.CheckpointAbort),
			Alternative: alternative,
			Probability: o.Probability,
		})
	}
	return plan
}

func (e *Engine) horizonDuration(h TimeHorizon) time.Duration {
	switch h {
	case HorizonShort:
		return 24 * time.Hour
	case HorizonLong:
		return 90 * 24 * time.Hour
	}
	return 14 * 24 * time.Hour
}

func (e *Engine) buildMonitoringPlan(c *Context, criteria []Criterion, selected Option) MonitoringPlan {
	plan := MonitoringPlan{Frequency: e.horizonDuration(c.TimeHorizon) / 24}
	for _, cr := range criteria {
		target := criterionValue(selected, cr)
		m := Metric{Name: strings.ToLower(cr.Name), Target: target}
		if cr.Direction == Cost {
			m.HigherBad = true
			m.Warning, m.Alert = target*1.1, target*1.25
		} else {
			m.Warning, m.Alert = target*0.9, target*0.75
		}
		plan.Metrics = append(plan.Metrics, m)
	}
	plan.Metrics = append(plan.Metrics,
		Metric{Name: "progress", Target: 1, Warning: e.config.CheckpointContinue, Alert: e.config.CheckpointAbort},
		Metric{Name: "risk_exposure", Target: selected.Risk, Warning: selected.Risk + 0.1, Alert: selected.Risk + 0.25, HigherBad: true},
	)
	if budget, ok := c.Resources["budget"]; ok {
		plan.Metrics = append(plan.Metrics, Metric{Name: "budget_used", Target: budget, Warning: budget * 0.9, Alert: budget, HigherBad: true})
	}
	return plan
}

// Execute runs the result's execution plan step by step. An adapt verdict
// retries the step once with an adjusted action. On failure or abort the
// first contingency's alternative runs before an *ExecutionError is returned.
func (e *Engine) Execute(ctx context.Context, result *Result, runner StepRunner) (*ExecutionReport, error) {
	if runner == nil {
		runner = SimulatedRunner{}
	}
	report := &ExecutionReport{ResultID: result.ID}

	for _, step := range result.ExecutionPlan.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		progress, err := runner.Run(ctx, step)
		sr := StepReport{StepID: step.ID, Action: step.Action, Progress: progress, Attempts: 1}
		if err != nil {
			sr.Verdict = VerdictAbort
			report.Steps = append(report.Steps, sr)
			return report, e.contingency(ctx, result, runner, report, step, err.Error())
		}

		sr.Verdict = step.Checkpoint.Evaluate(progress)
		if sr.Verdict == VerdictAdapt {
			adapted := step
			adapted.Action = "adjust and retry: " + step.Action
			progress, err = runner.Run(ctx, adapted)
			sr.Attempts++
			sr.Progress = progress
			report.Adapted++
			if err != nil {
				sr.Verdict = VerdictAbort
				report.Steps = append(report.Steps, sr)
				return report, e.contingency(ctx, result, runner, report, step, err.Error())
			}
			if sr.Verdict = step.Checkpoint.Evaluate(progress); sr.Verdict == VerdictAdapt {
				sr.Verdict = VerdictContinue
			}
		}
		report.Steps = append(report.Steps, sr)

		if sr.Verdict == VerdictAbort {
			return report, e.contingency(ctx, result, runner, report, step,
				fmt.Sprintf("progress %.2f below %.2f", sr.Progress, step.Checkpoint.AbortBelow))
		}
	}

	report.Completed = true
	e.log.Info().Str("decision", result.ID).Int("steps", len(report.Steps)).Int("adapted", report.Adapted).Msg("Decision executed")
	return report, nil
}

func (e *Engine) contingency(ctx context.Context, result *Result, runner StepRunner, report *ExecutionReport, step ExecutionStep, reason string) error {
	execErr := &ExecutionError{StepID: step.ID, Action: step.Action, Reason: reason}
	if len(result.ExecutionPlan.Contingencies) == 0 {
		e.log.Warn().Str("decision", result.ID).Str("step", step.ID).Msg("Execution aborted without contingency")
		return execErr
	}

	c := result.ExecutionPlan.Contingencies[0]
	execErr.Contingency = &c
	report.ContingencyUsed = &c
	fallback := ExecutionStep{ID: step.ID + "-contingency", Order: step.Order, Action: c.Alternative}
	if _, err := runner.Run(ctx, fallback); err != nil {
		e.log.Error().Err(err).Str("decision", result.ID).Msg("Contingency failed")
	}
	e.log.Warn().Str("decision", result.ID).Str("step", step.ID).Str("contingency", c.Alternative).Msg("Execution aborted, contingency applied")
	return execErr
}
