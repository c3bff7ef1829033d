package planning

import (
	"fmt"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

const day = 24 * time.Hour

// ClassifyHorizon maps a deadline's distance from now to a horizon. A
// deadline already in the past is immediate and reported as at risk.
func ClassifyHorizon(deadline *time.Time, now time.Time) (Horizon, bool) {
	if deadline == nil {
		return HorizonMedium, false
	}
	d := deadline.Sub(now)
	switch {
	case d < 0:
		return HorizonImmediate, true
	case d <= day:
		return HorizonImmediate, false
	case d <= 7*day:
		return HorizonShort, false
	case d <= 30*day:
		return HorizonMedium, false
	}
	return HorizonLong, false
}

func horizonSpan(h Horizon) time.Duration {
	switch h {
	case HorizonImmediate:
		return day
	case HorizonShort:
		return 7 * day
	case HorizonLong:
		return 90 * day
	}
	return 30 * day
}

// available is the time a plan may use: up to the deadline, or the horizon span
func available(h Horizon, deadline *time.Time, now time.Time) time.Duration {
	if deadline != nil && deadline.After(now) {
		return deadline.Sub(now)
	}
	return horizonSpan(h)
}

// assignEffort fills missing step durations and costs from step weights. The
// weighted critical path is stretched to 80% of the available time.
func (e *Engine) assignEffort(steps []Step, avail time.Duration) {
	longest := make(map[string]float64, len(steps))
	critical := 0.0
	for _, s := range steps {
		w := 0.0
		if s.Duration == 0 {
			w = stepWeight(s.Name)
		}
		prev := 0.0
		for _, d := range s.Dependencies {
			if longest[d] > prev {
				prev = longest[d]
			}
		}
		longest[s.ID] = prev + w
		if longest[s.ID] > critical {
			critical = longest[s.ID]
		}
	}

	unit := time.Hour
	if critical > 0 {
		unit = time.Duration(float64(avail) * 0.8 / critical).Truncate(time.Minute)
		if unit < time.Minute {
			unit = time.Minute
		}
	}
	for i := range steps {
		w := stepWeight(steps[i].Name)
		if steps[i].Duration == 0 {
			steps[i].Duration = time.Duration(w * float64(unit)).Truncate(time.Minute)
		}
		if steps[i].Cost == 0 {
			steps[i].Cost = w * e.config.StepCost
		}
	}
}

// schedule places pending steps at the latest finish of their dependencies,
// no earlier than from. Completed steps keep their slots.
func schedule(p *Plan, start time.Time, from time.Duration) {
	end := make(map[string]time.Duration, len(p.Steps))
	var makespan time.Duration
	p.Schedule = Schedule{Start: start, Entries: make([]ScheduleEntry, 0, len(p.Steps))}
	cost := 0.0

	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Status != StepCompleted {
			s.Start = from
			for _, d := range s.Dependencies {
				if end[d] > s.Start {
					s.Start = end[d]
				}
			}
			s.End = s.Start + s.Duration
		}
		end[s.ID] = s.End
		if s.End > makespan {
			makespan = s.End
		}
		cost += s.Cost
		p.Schedule.Entries = append(p.Schedule.Entries, ScheduleEntry{
			StepID: s.ID,
			Start:  start.Add(s.Start),
			End:    start.Add(s.End),
		})
	}
	p.Schedule.End = start.Add(makespan)
	p.EstimatedDuration = makespan
	p.EstimatedCost = cost
}

// fitBudget scales pending step costs so the plan total equals the budget
func fitBudget(p *Plan, budget, spent float64) {
	pending := 0.0
	for _, s := range p.Steps {
		if s.Status != StepCompleted {
			pending += s.Cost
		}
	}
	remaining := budget - spent
	if pending <= 0 || remaining <= 0 {
		return
	}
	factor := remaining / pending
	for i := range p.Steps {
		if p.Steps[i].Status != StepCompleted {
			p.Steps[i].Cost *= factor
		}
	}
	p.EstimatedCost = budget
}

func (e *Engine) contingencies(p *Plan, atRisk bool) []Contingency {
	var out []Contingency
	if len(p.Steps) > 0 {
		heaviest := p.Steps[0]
		for _, s := range p.Steps[1:] {
			if s.Duration > heaviest.Duration {
				heaviest = s
			}
		}
		out = append(out, Contingency{
			Trigger:     fmt.Sprintf("step %q overruns its slot", heaviest.Name),
			Response:    "move effort from parallel steps and re-sequence the remainder",
			Probability: 0.2,
		})
	}
	if p.Goal.Deadline != nil {
		prob := 0.15
		if atRisk {
			prob = 0.9
		}
		out = append(out, Contingency{
			Trigger:     "schedule variance exceeds the replanning threshold",
			Response:    "compress remaining steps or renegotiate the deadline",
			Probability: prob,
		})
	}
	if _, ok := p.Resources["budget"]; ok {
		out = append(out, Contingency{
			Trigger:     "cost overrun exceeds the replanning threshold",
			Response:    "descope the lowest-weight remaining steps",
			Probability: 0.25,
		})
	}
	if p.Algorithm == STRIPS || p.Algorithm == POP {
		out = append(out, Contingency{
			Trigger:     "an expected precondition does not hold",
			Response:    "replan from the observed state",
			Probability: 0.1,
		})
	}
	return out
}

func (e *Engine) monitoringStrategy(p *Plan) MonitoringStrategy {
	freq := e.config.MonitorInterval
	if freq <= 0 {
		freq = p.EstimatedDuration / time.Duration(e.config.MonitorChecks)
		if freq < time.Minute {
			freq = time.Minute
		}
		if freq > day {
			freq = day
		}
	}
	return MonitoringStrategy{Frequency: freq, Metrics: []string{"progress", "cost_spent", "schedule_variance"}}
}

var algorithmConfidence = map[Algorithm]float64{
	HTN:            0.8,
	STRIPS:         0.9,
	POP:            0.85,
	MultiObjective: 0.75,
}

func (e *Engine) confidence(p *Plan, avail time.Duration, atRisk bool) float64 {
	c := algorithmConfidence[p.Algorithm]
	if atRisk {
		c -= 0.3
	}
	if p.Goal.Deadline != nil && p.EstimatedDuration > avail {
		c -= 0.1
	}
	return models.Clamp01(c)
}
