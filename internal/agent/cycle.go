package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantumflow/cognicore/internal/events"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
)

// Phase is a state of the cognitive cycle
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhasePerceive    Phase = "PERCEIVE"
	PhaseAttend      Phase = "ATTEND"
	PhaseConsolidate Phase = "CONSOLIDATE"
	PhaseReflect     Phase = "REFLECT"
	PhaseMaintain    Phase = "MAINTAIN"
)

const (
	workingDecay    = 0.98
	reflectionTasks = 20
)

type cycleState struct {
	run   sync.Mutex // serialises whole cycles
	mu    sync.Mutex
	phase Phase
	ticks int64
}

func (o *Orchestrator) runCycles(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.Orchestrator.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
				o.log.Warn().Err(err).Msg("Cognitive cycle failed")
			}
		}
	}
}

// RunCycle runs one perceive, attend, consolidate, reflect and maintain
// pass synchronously
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.cycle.run.Lock()
	defer o.cycle.run.Unlock()

	o.setPhase(PhasePerceive)
	active, queued := o.tasks.tasks()

	o.setPhase(PhaseAttend)
	switch {
	case len(active) > 0:
		o.state.focus(active[0].Description, descriptions(active[1:], queued))
	case len(queued) > 0:
		o.state.focus(queued[0].Description, descriptions(nil, queued[1:]))
	default:
		o.state.focus("idle", nil)
	}

	o.setPhase(PhaseConsolidate)
	if _, err := o.learning.Rehearse(ctx, 1); err != nil {
		o.setPhase(PhaseIdle)
		return fmt.Errorf("rehearse: %w", err)
	}

	ticks := o.nextTick()
	o.setPhase(PhaseReflect)
	if every := int64(o.config.Orchestrator.ReflectEvery); every > 0 && ticks%every == 0 {
		o.reflect()
	}

	o.setPhase(PhaseMaintain)
	o.state.maintain()
	o.memory.DecayWorking(workingDecay)

	o.setPhase(PhaseIdle)
	o.bus.Publish(events.CycleTick, map[string]interface{}{
		"tick":   ticks,
		"active": len(active),
		"queued": len(queued),
	})
	return nil
}

// reflect records the success rate of the recent tasks
func (o *Orchestrator) reflect() {
	recent := o.tasks.recent(reflectionTasks)
	if len(recent) == 0 {
		return
	}
	completed := 0
	for _, r := range recent {
		if r.Status == StatusCompleted {
			completed++
		}
	}
	rate := float64(completed) / float64(len(recent))
	st := o.state.Snapshot()

	insight := "performance is stable"
	switch {
	case rate < 0.5:
		insight = "most recent tasks failed; prefer simpler strategies"
	case rate >= 0.9:
		insight = "recent tasks succeed consistently"
	}
	o.memory.AddReflection(memory.Reflection{
		Topic:   "task performance",
		Insight: insight,
		Metrics: map[string]float64{
			"success_rate": rate,
			"tasks":        float64(len(recent)),
			"energy":       st.Energy,
			"stress":       st.Stress,
		},
	})
	o.log.Debug().Float64("success_rate", rate).Int("tasks", len(recent)).Msg("reflection recorded")
}

func (o *Orchestrator) setPhase(p Phase) {
	o.cycle.mu.Lock()
	o.cycle.phase = p
	o.cycle.mu.Unlock()
}

func (o *Orchestrator) nextTick() int64 {
	o.cycle.mu.Lock()
	defer o.cycle.mu.Unlock()
	o.cycle.ticks++
	return o.cycle.ticks
}

func (o *Orchestrator) cycleStatus() CycleStatus {
	o.cycle.mu.Lock()
	defer o.cycle.mu.Unlock()
	return CycleStatus{Phase: o.cycle.phase, Ticks: o.cycle.ticks}
}

func descriptions(a, b []models.Task) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		out = append(out, t.Description)
	}
	for _, t := range b {
		out = append(out, t.Description)
	}
	return out
}
