package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/events"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
)

// command is a follow-up queued by an engine run
type command interface {
	name() string
	run(ctx context.Context, o *Orchestrator, q *commandQueue, res *Result) error
}

// commandQueue is a bounded FIFO drained after dispatch
type commandQueue struct {
	items []command
	limit int
}

func newCommandQueue(limit int) *commandQueue {
	if limit <= 0 {
		limit = 64
	}
	return &commandQueue{limit: limit}
}

func (q *commandQueue) push(c command) error {
	if len(q.items) >= q.limit {
		return fmt.Errorf("command queue full (%d): dropping %s", q.limit, c.name())
	}
	q.items = append(q.items, c)
	return nil
}

func (q *commandQueue) pop() command {
	c := q.items[0]
	q.items = q.items[1:]
	return c
}

// drain runs commands in order until the queue is empty. Consecutive step
// decisions run together on the worker pool.
func (q *commandQueue) drain(ctx context.Context, o *Orchestrator, res *Result) error {
	for len(q.items) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := q.items[0].(decideStepCommand); ok {
			var batch []decideStepCommand
			for len(q.items) > 0 {
				step, ok := q.items[0].(decideStepCommand)
				if !ok {
					break
				}
				batch = append(batch, step)
				q.pop()
			}
			if err := o.decideSteps(ctx, batch, res); err != nil {
				return err
			}
			continue
		}
		c := q.pop()
		if err := c.run(ctx, o, q, res); err != nil {
			return err
		}
	}
	return nil
}

// decideStepCommand chooses how to carry out one plan step
type decideStepCommand struct {
	plan  *planning.Plan
	step  planning.Step
	index int
}

func (decideStepCommand) name() string { return "decide_step" }

func (c decideStepCommand) run(ctx context.Context, o *Orchestrator, _ *commandQueue, res *Result) error {
	r, err := o.decide(ctx, c.context(res.Task))
	if err != nil {
		return err
	}
	res.Decisions = append(res.Decisions, r)
	return nil
}

func (c decideStepCommand) context(task *models.Task) decision.Context {
	return decision.Context{
		Situation:   fmt.Sprintf("%s: %s", c.plan.Goal.Description, c.step.Name),
		Goals:       []string{c.step.Name},
		Constraints: c.plan.Goal.Constraints,
		Resources:   c.plan.Resources,
		Criticality: task.Priority,
		Uncertainty: 1 - c.plan.Confidence,
	}
}

// decideSteps runs a batch of step decisions on the pool. Results keep the
// step order whatever order the workers finish in.
func (o *Orchestrator) decideSteps(ctx context.Context, batch []decideStepCommand, res *Result) error {
	out := make([]*decision.Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range batch {
		i, c := i, c
		g.Go(func() error {
			pr, err := o.pool.SubmitSync(gctx, func(jctx context.Context) (interface{}, error) {
				return o.decide(jctx, c.context(res.Task))
			})
			if err != nil {
				return err
			}
			if pr.Err != nil {
				return pr.Err
			}
			out[i] = pr.Value.(*decision.Result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	res.Decisions = append(res.Decisions, out...)
	return nil
}

// executeDecisionCommand carries out a confident short-horizon decision
type executeDecisionCommand struct {
	result *decision.Result
}

func (executeDecisionCommand) name() string { return "execute_decision" }

func (c executeDecisionCommand) run(ctx context.Context, o *Orchestrator, _ *commandQueue, res *Result) error {
	report, err := o.execute(ctx, c.result)
	res.Execution = report
	return err
}

// learnCommand feeds the finished task back as an experience
type learnCommand struct{}

func (learnCommand) name() string { return "learn" }

func (learnCommand) run(ctx context.Context, o *Orchestrator, _ *commandQueue, res *Result) error {
	outcome, err := o.learn(ctx, experienceFromResult(res))
	if err != nil {
		return err
	}
	res.Learning = outcome
	return nil
}

// experienceFromResult summarises a result. Reward is the mean confidence
// of the engines that ran.
func experienceFromResult(res *Result) models.Experience {
	var (
		actions []string
		confs   []float64
		success = true
		outcome string
	)
	if c := res.Reasoning; c != nil {
		for _, n := range c.Nodes {
			actions = append(actions, string(n.Type))
		}
		confs = append(confs, c.OverallConfidence)
		success = success && c.Success
		outcome = c.FinalConclusion
	}
	if d := res.Decision; d != nil {
		actions = append(actions, d.SelectedOption.Name)
		confs = append(confs, d.Confidence)
		outcome = d.SelectedOption.Name
	}
	for _, d := range res.Decisions {
		confs = append(confs, d.Confidence)
	}
	if p := res.Plan; p != nil {
		for _, s := range p.Steps {
			actions = append(actions, s.Name)
		}
		confs = append(confs, p.Confidence)
		if outcome == "" {
			outcome = fmt.Sprintf("plan with %d steps", len(p.Steps))
		}
	}
	if cr := res.Creative; cr != nil && len(cr.Outputs) > 0 {
		top := cr.Outputs[0]
		actions = append(actions, string(top.Technique))
		confs = append(confs, top.Scores.Overall)
		outcome = top.Description
	}
	if ex := res.Execution; ex != nil {
		success = success && ex.Completed
	}

	reward := 0.0
	if len(confs) > 0 {
		for _, c := range confs {
			reward += c
		}
		reward /= float64(len(confs))
	}
	task := res.Task
	return models.Experience{
		TaskType:   task.Type,
		Input:      task.Description,
		Context:    task.Context,
		Actions:    actions,
		Outcome:    outcome,
		Reward:     reward,
		Success:    success && reward >= 0.5,
		Importance: task.Priority,
		Features: map[string]float64{
			"priority": task.Priority,
			"reward":   reward,
		},
	}
}

// learnFollowUp is the learning step the direct surface calls share
func (o *Orchestrator) learnFollowUp(ctx context.Context, res *Result) {
	if _, err := o.learn(ctx, experienceFromResult(res)); err != nil {
		o.log.Warn().Err(err).Str("task", res.Task.ID).Msg("Learning follow-up failed")
	}
}

// publishLearning announces a learning outcome
func (o *Orchestrator) publishLearning(exp models.Experience) {
	o.bus.Publish(events.LearningComplete, map[string]interface{}{
		"task_type": string(exp.TaskType),
		"reward":    exp.Reward,
		"success":   exp.Success,
	})
}
