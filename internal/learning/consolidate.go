package learning

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
)

// Consolidate runs the five consolidation phases in order: merge similar
// episodes, reinforce valuable ones, prune unimportant ones that survived a
// previous pass, extract one rule per well-sampled task type and journal a
// reflection. The context is checked between phases.
func (e *Engine) Consolidate(ctx context.Context) (*ConsolidationReport, error) {
	e.mu.Lock()
	start := e.clock()
	previous := e.lastConsolidation
	e.mu.Unlock()

	report := &ConsolidationReport{At: start}
	var err error

	if report.Merged, err = e.mem.MergeSimilarEpisodes(ctx, e.config.MergeThreshold); err != nil {
		return nil, fmt.Errorf("consolidate merge: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if report.Reinforced, err = e.reinforce(ctx); err != nil {
		return nil, fmt.Errorf("consolidate reinforce: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !previous.IsZero() {
		if report.Pruned, err = e.mem.PruneEpisodes(ctx, e.config.PruneImportance, previous); err != nil {
			return nil, fmt.Errorf("consolidate prune: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Rules = e.extractRules(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := e.mem.GetStats()
	refl := e.mem.AddReflection(memory.Reflection{
		Topic: "consolidation",
		Insight: fmt.Sprintf("merged %d, reinforced %d, pruned %d episodes; %d rules from %d episodes",
			report.Merged, report.Reinforced, report.Pruned, report.Rules, stats.EpisodicCount),
		Metrics: map[string]float64{
			"merged":     float64(report.Merged),
			"reinforced": float64(report.Reinforced),
			"pruned":     float64(report.Pruned),
			"rules":      float64(report.Rules),
			"episodes":   float64(stats.EpisodicCount),
		},
	})
	report.ReflectionID = refl.ID

	e.mu.Lock()
	now := e.clock()
	e.lastConsolidation = now
	e.consolidations++
	observers := append([]func(ConsolidationReport){}, e.observers...)
	e.mu.Unlock()
	e.mem.MarkCompacted(now)
	report.Duration = now.Sub(start)

	e.log.Info().
		Int("merged", report.Merged).
		Int("reinforced", report.Reinforced).
		Int("pruned", report.Pruned).
		Int("rules", report.Rules).
		Msg("Memory consolidated")
	for _, fn := range observers {
		fn(*report)
	}
	return report, nil
}

// reinforce marks every episode consolidated and raises the importance of
// those with a high reward or importance
func (e *Engine) reinforce(ctx context.Context) (int, error) {
	n := 0
	for _, ep := range e.mem.Episodes(memory.EpisodeFilter{}) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		valuable := ep.Reward >= e.config.ReinforceReward || ep.Importance >= e.config.ReinforceImportance
		if ep.Consolidated && !valuable {
			continue
		}
		err := e.mem.UpdateEpisode(ctx, ep.ID, func(stored *memory.Episode) {
			stored.Consolidated = true
			if valuable {
				stored.Importance = models.Clamp01(stored.Importance + 0.1)
			}
		})
		if err != nil {
			return n, err
		}
		if valuable {
			n++
		}
	}
	return n, nil
}

// extractRules generalises each task type with enough episodes into a rule
// concept holding its success rate, mean reward and most rewarding action
func (e *Engine) extractRules(ctx context.Context) int {
	byType := make(map[models.TaskType][]memory.Episode)
	for _, ep := range e.mem.Episodes(memory.EpisodeFilter{}) {
		byType[ep.TaskType] = append(byType[ep.TaskType], ep)
	}
	types := make([]models.TaskType, 0, len(byType))
	for tt := range byType {
		types = append(types, tt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	rules := 0
	for _, tt := range types {
		eps := byType[tt]
		if len(eps) < e.config.RuleMinEpisodes {
			continue
		}
		var successes int
		var reward float64
		actionReward := make(map[string]float64)
		actionCount := make(map[string]int)
		for _, ep := range eps {
			if ep.Success {
				successes++
			}
			reward += ep.Reward
			for _, a := range ep.Actions {
				actionReward[a] += ep.Reward
				actionCount[a]++
			}
		}
		best, bestMean := "", -1.0
		for a, sum := range actionReward {
			mean := sum / float64(actionCount[a])
			if mean > bestMean || (mean == bestMean && a < best) {
				best, bestMean = a, mean
			}
		}
		rate := float64(successes) / float64(len(eps))

		ruleID := e.mem.UpsertConcept(ctx, "rule:"+string(tt), "rule", map[string]string{
			"task_type":    string(tt),
			"episodes":     strconv.Itoa(len(eps)),
			"success_rate": strconv.FormatFloat(rate, 'f', 2, 64),
			"mean_reward":  strconv.FormatFloat(reward/float64(len(eps)), 'f', 2, 64),
			"best_action":  best,
		})
		ttID := e.mem.UpsertConcept(ctx, string(tt), "task_type", nil)
		e.relate(ctx, ttID, ruleID, "generalizes", rate)
		rules++
	}
	return rules
}

// Start runs Consolidate on the configured interval until Stop or ctx ends
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stop != nil {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.stop = stop
	interval := e.config.ConsolidationInterval
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if _, err := e.Consolidate(ctx); err != nil {
					e.log.Error().Err(err).Msg("Scheduled consolidation failed")
				}
			}
		}
	}()
	e.log.Debug().Dur("interval", interval).Msg("Consolidation scheduler started")
}

// Stop halts the consolidation scheduler and waits for it to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stop
	e.stop = nil
	e.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	e.wg.Wait()
}
