package planning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// MetricSource reports execution metrics for a plan
type MetricSource interface {
	Metrics(ctx context.Context, planID string) (Metrics, error)
}

// MetricSourceFunc adapts a function to MetricSource
type MetricSourceFunc func(ctx context.Context, planID string) (Metrics, error)

// Metrics calls f
func (f MetricSourceFunc) Metrics(ctx context.Context, planID string) (Metrics, error) {
	return f(ctx, planID)
}

// StartMonitoring polls source at the plan's monitoring frequency until ctx
// is cancelled, StopMonitoring is called or the engine closes
func (e *Engine) StartMonitoring(ctx context.Context, planID string, source MetricSource) error {
	e.mu.Lock()
	p, ok := e.plans[planID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if _, running := e.monitors[planID]; running {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyMonitoring, planID)
	}
	mctx, cancel := context.WithCancel(ctx)
	m := &monitor{cancel: cancel, done: make(chan struct{})}
	e.monitors[planID] = m
	freq := p.Monitoring.Frequency
	e.wg.Add(1)
	e.mu.Unlock()

	go e.monitorLoop(mctx, planID, freq, source, m)
	e.log.Debug().Str("plan", planID).Dur("frequency", freq).Msg("Monitoring started")
	return nil
}

func (e *Engine) monitorLoop(ctx context.Context, planID string, freq time.Duration, source MetricSource, m *monitor) {
	defer e.wg.Done()
	defer close(m.done)
	defer func() {
		e.mu.Lock()
		if e.monitors[planID] == m {
			delete(e.monitors, planID)
		}
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(freq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics, err := source.Metrics(ctx, planID)
			if err != nil {
				e.log.Warn().Err(err).Str("plan", planID).Msg("Metric poll failed")
				continue
			}
			if _, err := e.CheckDeviation(ctx, planID, metrics); err != nil {
				e.log.Error().Err(err).Str("plan", planID).Msg("Deviation check failed")
			}
		}
	}
}

// StopMonitoring stops a plan's monitor and waits for it to exit
func (e *Engine) StopMonitoring(planID string) {
	e.mu.Lock()
	m, ok := e.monitors[planID]
	if ok {
		m.cancel()
		delete(e.monitors, planID)
	}
	e.mu.Unlock()
	if ok {
		<-m.done
		e.log.Debug().Str("plan", planID).Msg("Monitoring stopped")
	}
}

// Monitoring reports whether a plan has a running monitor
func (e *Engine) Monitoring(planID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.monitors[planID]
	return ok
}

// CheckDeviation compares metrics with the plan. The deviation is the larger
// of the relative progress shortfall and the relative cost overrun; above the
// replanning threshold the plan is adapted in place.
func (e *Engine) CheckDeviation(ctx context.Context, planID string, m Metrics) (Deviation, error) {
	if err := ctx.Err(); err != nil {
		return Deviation{}, err
	}

	e.mu.Lock()
	p, ok := e.plans[planID]
	if !ok {
		e.mu.Unlock()
		return Deviation{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	now := e.clock()
	if m.Elapsed <= 0 {
		m.Elapsed = now.Sub(p.CreatedAt)
	}
	dev := measure(p, m)

	var snapshot *Plan
	var observers []func(Plan)
	if dev.Significant {
		if p.Version-1 >= p.Adaptation.MaxAdaptations {
			dev.LimitExceeded = true
			e.log.Warn().Str("plan", planID).Int("version", p.Version).Msg("Adaptation limit reached")
		} else {
			e.adapt(p, m, dev, now)
			dev.Adapted = true
			snapshot = p.clone()
			observers = append(observers, e.observers...)
		}
	}
	dev.Version = p.Version
	e.mu.Unlock()

	for _, fn := range observers {
		fn(*snapshot)
	}
	return dev, nil
}

func measure(p *Plan, m Metrics) Deviation {
	dev := Deviation{PlanID: p.ID, Expected: 100}
	if p.EstimatedDuration > 0 {
		dev.Expected = math.Min(100, 100*float64(m.Elapsed)/float64(p.EstimatedDuration))
	}
	if dev.Expected > 0 {
		dev.Shortfall = math.Max(0, (dev.Expected-m.Progress)/dev.Expected)
	}
	if expectedCost := p.EstimatedCost * dev.Expected / 100; expectedCost > 0 {
		dev.CostOverrun = math.Max(0, (m.CostSpent-expectedCost)/expectedCost)
	}
	dev.Value = math.Max(dev.Shortfall, dev.CostOverrun)
	dev.Significant = dev.Value > p.Adaptation.ReplanningThreshold
	return dev
}

// adapt regenerates the remaining steps: finished steps are marked complete,
// a recovery step is inserted and the rest are re-estimated and rescheduled
// from now. Must hold e.mu.
func (e *Engine) adapt(p *Plan, m Metrics, dev Deviation, now time.Time) {
	p.History = append(p.History, cloneSteps(p.Steps))

	done := int(math.Floor(models.Clamp01(m.Progress/100) * float64(len(p.Steps))))
	completed := make(map[string]bool, done)
	for i := range p.Steps {
		if i < done {
			p.Steps[i].Status = StepCompleted
			completed[p.Steps[i].ID] = true
		}
	}

	reason := "progress shortfall"
	if dev.CostOverrun > dev.Shortfall {
		reason = "cost overrun"
	}
	var remaining time.Duration
	for _, s := range p.Steps {
		if !completed[s.ID] {
			remaining += s.Duration
		}
	}
	recovery := Step{
		ID:       fmt.Sprintf("recovery-%d", p.Version+1),
		Name:     fmt.Sprintf("recover from %s of %.0f%%", reason, dev.Value*100),
		GoalID:   p.Goal.ID,
		Phase:    "recovery",
		Duration: (remaining / 20).Truncate(time.Minute),
		Status:   StepPending,
	}

	steps := make([]Step, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		if completed[s.ID] {
			steps = append(steps, s)
		}
	}
	steps = append(steps, recovery)
	for _, s := range p.Steps {
		if completed[s.ID] {
			continue
		}
		s.Duration = time.Duration(float64(s.Duration) * (1 + dev.Shortfall)).Truncate(time.Minute)
		pendingDeps := 0
		for _, d := range s.Dependencies {
			if !completed[d] {
				pendingDeps++
			}
		}
		if pendingDeps == 0 {
			s.Dependencies = append(s.Dependencies, recovery.ID)
		}
		steps = append(steps, s)
	}
	p.Steps = steps

	schedule(p, p.CreatedAt, m.Elapsed)
	if budget, ok := p.Resources["budget"]; ok && budget > 0 {
		spent := m.CostSpent
		if spent == 0 {
			for _, s := range p.Steps {
				if s.Status == StepCompleted {
					spent += s.Cost
				}
			}
		}
		fitBudget(p, budget, spent)
	}

	p.Version++
	p.Status = StatusAdapted
	p.UpdatedAt = now
	p.Confidence = models.Clamp01(p.Confidence * (1 - dev.Value/2))
	e.log.Info().
		Str("plan", p.ID).
		Int("version", p.Version).
		Float64("deviation", dev.Value).
		Int("completed", done).
		Msg("Plan adapted")
}
