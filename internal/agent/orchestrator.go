// Package agent is the cognitive orchestrator. It classifies input into
// tasks, dispatches them to the specialist engines, drains the follow-up
// command queue and merges every outcome into the shared cognitive state.
// A background cycle perceives, attends, consolidates, reflects and
// maintains independently of request traffic.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quantumflow/cognicore/internal/audit"
	"github.com/quantumflow/cognicore/internal/config"
	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/events"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/logging"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
	"github.com/quantumflow/cognicore/internal/understanding"
	"github.com/quantumflow/cognicore/internal/workers"
)

// Option configures an Orchestrator
type Option func(*options)

type options struct {
	log        zerolog.Logger
	bus        *events.Bus
	audit      audit.Logger
	clock      func() time.Time
	backends   *memory.Backends
	runner     decision.StepRunner
	classifier Classifier
}

// WithLogger sets the root logger. Components log through sub-loggers.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBus publishes observer events to bus instead of a private one
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithAudit records every finished task in l
func WithAudit(l audit.Logger) Option {
	return func(o *options) { o.audit = l }
}

// WithClock overrides the time source of the orchestrator and every engine
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithMemoryBackends mirrors memory to b instead of the configured stores
func WithMemoryBackends(b memory.Backends) Option {
	return func(o *options) { o.backends = &b }
}

// WithStepRunner sets the runner used to execute decisions
func WithStepRunner(r decision.StepRunner) Option {
	return func(o *options) { o.runner = r }
}

// WithClassifier replaces the keyword rule classifier
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// Orchestrator owns the engines and the cognitive state
type Orchestrator struct {
	config *config.Config
	log    zerolog.Logger
	clock  func() time.Time

	bus     *events.Bus
	ownsBus bool
	audit   audit.Logger
	limiter *rate.Limiter
	pool    *workers.Pool
	runner  decision.StepRunner

	understanding *understanding.Engine
	reasoning     *reasoning.Engine
	decision      *decision.Engine
	planning      *planning.Engine
	creativity    *creativity.Engine
	learning      *learning.Engine
	memory        *memory.System

	classifier Classifier
	cache      *ClassificationCache
	state      *stateStore
	tasks      *taskRegistry
	metrics    *componentMetrics
	cycle      cycleState

	ctxMu       sync.Mutex
	lastContext *understanding.ContextModel

	startedAt time.Time
	runMu     sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	closed    bool
}

// New builds an orchestrator from cfg. A nil cfg uses config.Default().
// Background work only begins with Start.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log

	var backends memory.Backends
	if o.backends != nil {
		backends = *o.backends
	} else {
		b, err := memory.OpenBackends(cfg.Memory.SystemConfig(), logging.Component(log, "memory"))
		if err != nil {
			return nil, fmt.Errorf("open memory backends: %w", err)
		}
		backends = b
	}
	mem := memory.NewSystem(cfg.Memory.SystemConfig(), backends, logging.Component(log, "memory"))

	orch := &Orchestrator{
		config:        cfg,
		log:           logging.Component(log, "orchestrator"),
		clock:         time.Now,
		bus:           o.bus,
		audit:         o.audit,
		pool:          workers.NewPool(cfg.Workers.PoolConfig()),
		runner:        o.runner,
		understanding: understanding.NewEngine(cfg.Understanding.EngineConfig(), mem, logging.Component(log, "understanding")),
		reasoning:     reasoning.NewEngine(cfg.Reasoning.EngineConfig(), logging.Component(log, "reasoning")),
		decision:      decision.NewEngine(cfg.Decision.EngineConfig(), logging.Component(log, "decision")),
		planning:      planning.NewEngine(cfg.Planning.EngineConfig(), logging.Component(log, "planning")),
		creativity:    creativity.NewEngine(cfg.Creativity.EngineConfig(), logging.Component(log, "creativity")),
		learning:      learning.NewEngine(cfg.Learning.EngineConfig(), mem, logging.Component(log, "learning")),
		memory:        mem,
		classifier:    o.classifier,
		cache:         NewClassificationCache(cfg.Orchestrator.CacheTTL, cfg.Orchestrator.CacheSize),
		state:         newStateStore(cfg.Memory.WorkingCapacity),
		tasks:         newTaskRegistry(cfg.Orchestrator.HistorySize),
		metrics:       newComponentMetrics(),
		cycle:         cycleState{phase: PhaseIdle},
	}
	if orch.bus == nil {
		orch.bus = events.NewBus(100, logging.Component(log, "events"))
		orch.ownsBus = true
	}
	if orch.runner == nil {
		orch.runner = decision.SimulatedRunner{}
	}
	if orch.classifier == nil {
		orch.classifier = NewRuleClassifier()
	}
	if orch.audit == nil && cfg.Audit.Enabled {
		l, err := audit.NewSQLiteLog(cfg.Audit.Path)
		if err != nil {
			orch.pool.Shutdown(time.Second)
			mem.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		orch.audit = l
	}
	if rps := cfg.Orchestrator.RequestsPerSecond; rps > 0 {
		orch.limiter = rate.NewLimiter(rate.Limit(rps), cfg.Orchestrator.Burst)
	}
	if o.clock != nil {
		orch.setClock(o.clock)
	}
	orch.startedAt = orch.clock()

	orch.planning.OnAdapted(func(p planning.Plan) {
		orch.bus.Publish(events.PlanAdapted, map[string]interface{}{
			"plan_id": p.ID,
			"version": p.Version,
			"status":  p.Status,
		})
	})
	orch.learning.OnConsolidated(func(r learning.ConsolidationReport) {
		orch.bus.Publish(events.ConsolidationComplete, map[string]interface{}{
			"merged":     r.Merged,
			"reinforced": r.Reinforced,
			"pruned":     r.Pruned,
			"rules":      r.Rules,
		})
	})
	return orch, nil
}

func (o *Orchestrator) setClock(clock func() time.Time) {
	o.clock = clock
	o.understanding.SetClock(clock)
	o.reasoning.SetClock(clock)
	o.decision.SetClock(clock)
	o.planning.SetClock(clock)
	o.creativity.SetClock(clock)
	o.learning.SetClock(clock)
	o.cache.setClock(clock)
}

// Bus returns the event bus observers subscribe to
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Memory returns the memory system
func (o *Orchestrator) Memory() *memory.System {
	return o.memory
}

// Start restores persisted memory and launches the cognitive cycle and the
// consolidation scheduler. Both stop when ctx ends or Close is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.started {
		return nil
	}
	if err := o.memory.Load(ctx); err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.started = true
	o.learning.Start(runCtx)

	o.wg.Add(1)
	go o.runCycles(runCtx)

	o.log.Info().
		Dur("cycle_interval", o.config.Orchestrator.CycleInterval).
		Dur("consolidation_interval", o.config.Learning.ConsolidationInterval).
		Msg("Orchestrator started")
	return nil
}

// Close stops background work and releases the memory mirrors, the worker
// pool and the audit log
func (o *Orchestrator) Close() error {
	o.runMu.Lock()
	if o.closed {
		o.runMu.Unlock()
		return nil
	}
	o.closed = true
	cancel := o.cancel
	o.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
	o.cache.Close()

	var errs []error
	if err := o.planning.Close(); err != nil {
		errs = append(errs, fmt.Errorf("planning: %w", err))
	}
	if err := o.pool.Shutdown(5 * time.Second); err != nil {
		errs = append(errs, fmt.Errorf("workers: %w", err))
	}
	if err := o.learning.Close(); err != nil {
		errs = append(errs, fmt.Errorf("learning: %w", err))
	}
	if o.audit != nil {
		if err := o.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}
	if o.ownsBus {
		o.bus.Close()
	}
	o.log.Info().Msg("Orchestrator closed")
	return errors.Join(errs...)
}

func (o *Orchestrator) isClosed() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.closed
}

// Process understands, classifies and dispatches input, then drains the
// follow-up commands and merges the outcome into the cognitive state.
// Recognised pctx keys: previousContext (*understanding.ContextModel),
// continue (bool), taskType, evidence, method, options, criteria,
// constraints, outcomes, domain, horizon, mode and experience.
func (o *Orchestrator) Process(ctx context.Context, input string, pctx map[string]interface{}) (*Result, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	start := o.clock()
	o.bus.Publish(events.ProcessStart, map[string]interface{}{"input": input})

	cm, err := o.understand(ctx, input, o.previousContext(pctx))
	if err != nil {
		o.bus.Publish(events.ProcessError, map[string]interface{}{"input": input, "error": err.Error()})
		return nil, err
	}
	o.setLastContext(cm)

	cl := o.classify(ctx, input, pctx)
	task := models.Task{
		ID:                   uuid.New().String(),
		Type:                 cl.Type,
		Description:          input,
		Priority:             Priority(input, cm.Deadline(), start),
		Context:              pctx,
		Deadline:             cm.Deadline(),
		RequiredCapabilities: capabilities(cl.Type),
		Fallback:             cl.Fallback,
		CreatedAt:            start,
	}
	o.tasks.register(task, start)
	o.publishState(&task, StatusPending)
	o.transition(&task, StatusRouted)
	o.transition(&task, StatusExecuting)

	res := &Result{Task: &task, Status: StatusExecuting, Context: cm}
	queue := newCommandQueue(o.config.Orchestrator.CommandQueueSize)
	err = o.dispatch(ctx, res, pctx, queue)
	if err == nil {
		err = queue.drain(ctx, o, res)
	}

	now := o.clock()
	res.Duration = now.Sub(start)
	if err != nil {
		res.Status = StatusFailed
		rec := o.tasks.finish(task.ID, StatusFailed, err, now)
		o.publishState(&task, StatusFailed)
		o.record(ctx, rec, res.Duration)
		o.log.Error().Err(err).Str("task", task.ID).Str("type", string(task.Type)).Msg("Task failed")
		o.bus.Publish(events.ProcessError, map[string]interface{}{
			"task_id": task.ID,
			"type":    string(task.Type),
			"error":   err.Error(),
		})
		return res, err
	}

	o.state.applyOutcome(&task, succeeded(res))
	res.Status = StatusCompleted
	rec := o.tasks.finish(task.ID, StatusCompleted, nil, now)
	o.publishState(&task, StatusCompleted)
	o.record(ctx, rec, res.Duration)
	o.bus.Publish(events.ProcessComplete, map[string]interface{}{
		"task_id":  task.ID,
		"type":     string(task.Type),
		"priority": task.Priority,
		"duration": res.Duration,
	})
	return res, nil
}

func (o *Orchestrator) previousContext(pctx map[string]interface{}) *understanding.ContextModel {
	if prev, ok := pctx["previousContext"].(*understanding.ContextModel); ok && prev != nil {
		return prev
	}
	if cont, _ := pctx["continue"].(bool); cont {
		o.ctxMu.Lock()
		defer o.ctxMu.Unlock()
		return o.lastContext
	}
	return nil
}

func (o *Orchestrator) setLastContext(cm *understanding.ContextModel) {
	o.ctxMu.Lock()
	o.lastContext = cm
	o.ctxMu.Unlock()
}

// classify honours an explicit taskType, then the cache, then the classifier
func (o *Orchestrator) classify(ctx context.Context, input string, pctx map[string]interface{}) Classification {
	if explicit, ok := pctx["taskType"].(string); ok && explicit != "" {
		tt, known := normalizeTaskType(explicit)
		return Classification{Type: tt, Confidence: 1, Fallback: !known}
	}
	if cl, ok := o.cache.Get(input); ok {
		return cl
	}
	cl, err := o.classifier.Classify(ctx, input)
	if err != nil {
		o.log.Warn().Err(err).Msg("Classification failed, falling back to reasoning")
		return Classification{Type: models.TaskTypeReasoning, Fallback: true}
	}
	o.cache.Set(input, cl)
	return cl
}

func (o *Orchestrator) transition(task *models.Task, status TaskStatus) {
	o.tasks.transition(task.ID, status)
	o.publishState(task, status)
}

func (o *Orchestrator) publishState(task *models.Task, status TaskStatus) {
	o.log.Debug().Str("task", task.ID).Str("status", string(status)).Msg("task state")
	o.bus.Publish(events.TaskState, map[string]interface{}{
		"task_id": task.ID,
		"type":    string(task.Type),
		"status":  string(status),
	})
}

// record writes the audit row. Audit failures are logged, never returned.
func (o *Orchestrator) record(ctx context.Context, rec TaskRecord, d time.Duration) {
	if o.audit == nil {
		return
	}
	entry := &audit.Entry{
		TaskID:    rec.Task.ID,
		Timestamp: rec.FinishedAt,
		TaskType:  string(rec.Task.Type),
		Status:    string(rec.Status),
		Priority:  rec.Task.Priority,
		Fallback:  rec.Task.Fallback,
		Duration:  d,
		Error:     rec.Error,
	}
	if err := o.audit.Log(context.WithoutCancel(ctx), entry); err != nil {
		o.log.Warn().Err(err).Str("task", rec.Task.ID).Msg("Failed to write audit entry")
	}
}

// dispatch runs the engine for the task type and queues its follow-ups
func (o *Orchestrator) dispatch(ctx context.Context, res *Result, pctx map[string]interface{}, q *commandQueue) error {
	task, cm := res.Task, res.Context

	switch task.Type {
	case models.TaskTypeReasoning:
		c := &reasoning.Constraints{Context: pctx}
		if m, ok := pctx["method"].(string); ok && m != "" {
			method, err := reasoning.ParseType(m)
			if err != nil {
				return err
			}
			c.Method = method
		}
		chain, err := o.reason(ctx, task.Description, evidenceFor(cm, pctx), c)
		if err != nil {
			return err
		}
		res.Reasoning = chain

	case models.TaskTypeDecision:
		r, err := o.decide(ctx, decisionContext(task, cm, pctx))
		if err != nil {
			return err
		}
		res.Decision = r
		if r.Context.TimeHorizon == decision.HorizonShort && r.Confidence > o.config.Orchestrator.AutoExecuteConfidence {
			if err := q.push(executeDecisionCommand{result: r}); err != nil {
				return err
			}
		}

	case models.TaskTypePlanning:
		req, err := planRequest(task, cm, pctx)
		if err != nil {
			return err
		}
		p, err := o.plan(ctx, req)
		if err != nil {
			return err
		}
		res.Plan = p

	case models.TaskTypeCreativity:
		cr, err := o.create(ctx, creativity.Challenge{
			Problem:     task.Description,
			Constraints: stringSlice(pctx["constraints"]),
			Outcomes:    stringSlice(pctx["outcomes"]),
			Domain:      stringValue(pctx["domain"]),
		})
		if err != nil {
			return err
		}
		res.Creative = cr

	case models.TaskTypeLearning:
		exp := experienceFromData(pctx["experience"], stringValue(pctx["mode"]))
		if exp.Input == "" {
			exp.Input = task.Description
		}
		outcome, err := o.learn(ctx, exp)
		if err != nil {
			return err
		}
		res.Learning = outcome
		return nil

	case models.TaskTypeGeneral:
		chain, err := o.reason(ctx, task.Description, evidenceFor(cm, pctx), &reasoning.Constraints{Context: pctx})
		if err != nil {
			return err
		}
		res.Reasoning = chain
		req, err := planRequest(task, cm, pctx)
		if err != nil {
			return err
		}
		p, err := o.plan(ctx, req)
		if err != nil {
			return err
		}
		res.Plan = p
		for i, step := range p.Steps {
			if err := q.push(decideStepCommand{plan: p, step: step, index: i}); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("no engine for task type %q", task.Type)
	}

	return q.push(learnCommand{})
}

// succeeded decides whether a finished task counts as a success for the
// cognitive state
func succeeded(res *Result) bool {
	if res.Reasoning != nil && !res.Reasoning.Success {
		return false
	}
	if res.Execution != nil && !res.Execution.Completed {
		return false
	}
	return true
}
