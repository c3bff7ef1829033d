package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

type modeUpdate func(ctx context.Context, exp models.Experience, termIDs []string, out *Outcome)

// updateFor returns the parameter update of mode. It is resolved before any
// memory write so an unknown mode leaves memory untouched.
func (e *Engine) updateFor(mode Mode) (modeUpdate, error) {
	switch mode {
	case Supervised:
		return func(_ context.Context, exp models.Experience, _ []string, out *Outcome) { e.supervised(exp, out) }, nil
	case Unsupervised:
		return e.unsupervised, nil
	case Reinforcement:
		return func(_ context.Context, exp models.Experience, _ []string, out *Outcome) { e.reinforcement(exp, out) }, nil
	case SelfSupervised:
		return e.selfSupervised, nil
	case MetaLearning:
		return func(_ context.Context, exp models.Experience, _ []string, out *Outcome) { e.metaLearning(exp, out) }, nil
	case Transfer:
		return func(_ context.Context, exp models.Experience, _ []string, out *Outcome) { e.transfer(exp, out) }, nil
	case MultiTask:
		return func(_ context.Context, exp models.Experience, _ []string, _ *Outcome) { e.multiTask(exp) }, nil
	case Curriculum:
		return func(_ context.Context, exp models.Experience, _ []string, out *Outcome) { e.curriculum(exp, out) }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// features returns the experience features in name order, falling back to
// reward and importance when none are given
func features(exp models.Experience) ([]string, map[string]float64) {
	f := exp.Features
	if len(f) == 0 {
		f = map[string]float64{"reward": exp.Reward, "importance": exp.Importance}
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, f
}

func label(exp models.Experience) string {
	if exp.Label != "" {
		return strings.ToLower(exp.Label)
	}
	if exp.Success {
		return "success"
	}
	return "failure"
}

// supervised predicts the nearest label prototype, then moves the true
// label's prototype toward the features
func (e *Engine) supervised(exp models.Experience, out *Outcome) {
	ns := string(exp.TaskType)
	names, f := features(exp)
	truth := label(exp)

	best, bestDist := "", math.Inf(1)
	for _, l := range e.labels[exp.TaskType] {
		var d float64
		for _, n := range names {
			p, _ := e.params.get(ns, "proto:"+l+":"+n)
			d += (f[n] - p) * (f[n] - p)
		}
		if d < bestDist {
			best, bestDist = l, d
		}
	}
	out.Prediction = best
	out.Correct = best == truth

	alpha := e.rate(exp.TaskType)
	fresh := true
	for _, l := range e.labels[exp.TaskType] {
		if l == truth {
			fresh = false
		}
	}
	for _, n := range names {
		name := "proto:" + truth + ":" + n
		if fresh {
			e.params.create(ns, name, exp.TaskType, f[n])
			continue
		}
		p, _ := e.params.get(ns, name)
		e.params.update(ns, name, exp.TaskType, f[n]-p, alpha)
	}
	if fresh {
		e.labels[exp.TaskType] = append(e.labels[exp.TaskType], truth)
	}
}

// unsupervised assigns the experience to the nearest cluster of its task
// type, opening a new cluster beyond the configured radius
func (e *Engine) unsupervised(ctx context.Context, exp models.Experience, termIDs []string, out *Outcome) {
	ns := string(exp.TaskType)
	names, f := features(exp)

	best, bestDist := "", math.Inf(1)
	for i := 1; i <= e.clusters[exp.TaskType]; i++ {
		c := fmt.Sprintf("c%d", i)
		var d float64
		for _, n := range names {
			p, _ := e.params.get(ns, "cluster:"+c+":"+n)
			d += (f[n] - p) * (f[n] - p)
		}
		if d = math.Sqrt(d); d < bestDist {
			best, bestDist = c, d
		}
	}

	if best == "" || bestDist > e.config.ClusterRadius {
		e.clusters[exp.TaskType]++
		best = fmt.Sprintf("c%d", e.clusters[exp.TaskType])
		for _, n := range names {
			e.params.create(ns, "cluster:"+best+":"+n, exp.TaskType, f[n])
		}
	} else {
		alpha := e.rate(exp.TaskType)
		for _, n := range names {
			p, _ := e.params.get(ns, "cluster:"+best+":"+n)
			e.params.update(ns, "cluster:"+best+":"+n, exp.TaskType, f[n]-p, alpha)
		}
	}
	out.Cluster = best

	cid := e.mem.UpsertConcept(ctx, fmt.Sprintf("%s cluster %s", exp.TaskType, best), "cluster", map[string]string{"task_type": ns})
	for _, id := range termIDs {
		e.relate(ctx, id, cid, "member_of", 0.5)
	}
}

// reinforcement applies Q += α(r − Q) per task:action
func (e *Engine) reinforcement(exp models.Experience, out *Outcome) {
	ns := string(exp.TaskType)
	alpha := e.rate(exp.TaskType)
	out.QValues = make(map[string]float64)
	for _, a := range actionsOrDefault(exp.Actions) {
		q, _ := e.params.get(ns, "q:"+a)
		out.QValues[a] = e.params.update(ns, "q:"+a, exp.TaskType, exp.Reward-q, alpha)
	}
}

// selfSupervised predicts the outcome from the most similar earlier episode
// of the same task type. The prediction error moves the confidence of the
// input's concepts.
func (e *Engine) selfSupervised(ctx context.Context, exp models.Experience, termIDs []string, out *Outcome) {
	var (
		predicted string
		bestSim   = -1.0
	)
	for _, ep := range e.mem.Episodes(memory.EpisodeFilter{TaskType: exp.TaskType}) {
		if ep.ID == exp.ID {
			continue
		}
		if s := textproc.Jaccard(ep.Input, exp.Input); s > bestSim {
			predicted, bestSim = ep.Outcome, s
		}
	}
	out.Prediction = predicted

	errVal := 1.0
	switch {
	case bestSim < 0:
	case predicted == "" && exp.Outcome == "":
		errVal = 0
	default:
		errVal = 1 - textproc.Jaccard(predicted, exp.Outcome)
	}
	out.PredictionError = errVal

	alpha := e.rate(exp.TaskType)
	for _, id := range termIDs {
		err := e.mem.UpdateConcept(ctx, id, func(c *memory.Concept) {
			c.Confidence = models.Clamp01(c.Confidence + alpha*((1-errVal)-c.Confidence))
		})
		if err != nil {
			e.log.Warn().Err(err).Str("concept", id).Msg("confidence update failed")
		}
	}
	p, _ := e.params.get(string(exp.TaskType), "self:error")
	e.params.update(string(exp.TaskType), "self:error", exp.TaskType, errVal-p, alpha)
}

// metaLearning adapts the task's learning rate from the variance of its
// recent rewards: steady rewards learn fast, noisy ones slow down
func (e *Engine) metaLearning(exp models.Experience, out *Outcome) {
	tt := exp.TaskType
	r := append(e.rewards[tt], exp.Reward)
	if len(r) > e.config.MetaWindow {
		r = r[len(r)-e.config.MetaWindow:]
	}
	e.rewards[tt] = r

	var mean float64
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	var variance float64
	for _, v := range r {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(r))

	rate := e.config.LearningRate * 1.5 / (1 + 8*variance)
	rate = math.Max(e.config.MinLearningRate, math.Min(e.config.MaxLearningRate, rate))
	e.rates[tt] = rate
	out.LearningRate = rate
}

// transfer initialises an empty namespace from the most similar known task
// type, scaled down, then fine-tunes feature weights
func (e *Engine) transfer(exp models.Experience, out *Outcome) {
	tt := exp.TaskType
	ns := string(tt)
	if !e.params.has(ns) {
		var (
			source  models.TaskType
			bestSim float64
		)
		for _, known := range e.knownOrder {
			if known == tt || !e.params.has(string(known)) {
				continue
			}
			if s := textproc.JaccardSets(e.vocab[tt], e.vocab[known]); s > bestSim {
				source, bestSim = known, s
			}
		}
		if source != "" {
			src := e.params.namespace(string(source))
			names := make([]string, 0, len(src))
			for n := range src {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				if e.params.create(ns, n, tt, src[n]*e.config.TransferScale) {
					out.Transferred++
				}
			}
			out.TransferredFrom = source
		}
	}

	names, f := features(exp)
	alpha := e.rate(tt)
	for _, n := range names {
		p, _ := e.params.get(ns, "w:"+n)
		e.params.update(ns, "w:"+n, tt, f[n]-p, alpha)
	}
}

// multiTask fits shared weights plus a task-specific residual. The shared
// weights belong to the first task that created them.
func (e *Engine) multiTask(exp models.Experience) {
	tt := exp.TaskType
	ns := string(tt)
	names, f := features(exp)
	alpha := e.rate(tt)
	for _, n := range names {
		shared, _ := e.params.get(sharedNamespace, "w:"+n)
		specific, _ := e.params.get(ns, "w:"+n)
		grad := f[n] - (shared + specific)
		e.params.update(sharedNamespace, "w:"+n, tt, grad, alpha/2)
		e.params.update(ns, "w:"+n, tt, grad, alpha)
	}
}

// curriculum advances the task's level once the success rate over the last
// window of attempts reaches the threshold; the window restarts after each
// advance
func (e *Engine) curriculum(exp models.Experience, out *Outcome) {
	c, ok := e.curricula[exp.TaskType]
	if !ok {
		c = &curriculum{level: 1}
		e.curricula[exp.TaskType] = c
	}
	c.window = append(c.window, exp.Success)
	if len(c.window) > e.config.CurriculumWindow {
		c.window = c.window[len(c.window)-e.config.CurriculumWindow:]
	}
	if len(c.window) == e.config.CurriculumWindow {
		wins := 0
		for _, s := range c.window {
			if s {
				wins++
			}
		}
		if float64(wins)/float64(len(c.window)) >= e.config.CurriculumAdvance {
			c.level++
			c.window = nil
			out.Advanced = true
		}
	}
	out.Level = c.level
}
