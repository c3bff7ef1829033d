// Package learning implements continual learning over the memory system.
// Every experience enters working memory, feeds the semantic graph, becomes
// an episode and may fold into a procedural skill before its mode-specific
// update runs. New task types get their own parameter namespace while the
// parameters of earlier tasks are anchored and protected by an elastic
// weight penalty and rehearsed through replay.
package learning

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// Config holds learning engine configuration
type Config struct {
	LearningRate          float64
	MinLearningRate       float64
	MaxLearningRate       float64
	EWCLambda             float64
	ReplaySamples         int
	SkillMatchThreshold   float64
	HabitUses             int
	ClusterRadius         float64
	TransferScale         float64
	MetaWindow            int
	CurriculumWindow      int
	CurriculumAdvance     float64
	MaxTerms              int
	Seed                  uint64
	ConsolidationInterval time.Duration
	MergeThreshold        float64
	ReinforceReward       float64
	ReinforceImportance   float64
	PruneImportance       float64
	RuleMinEpisodes       int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		LearningRate:          0.1,
		MinLearningRate:       0.01,
		MaxLearningRate:       0.5,
		EWCLambda:             4,
		ReplaySamples:         3,
		SkillMatchThreshold:   0.6,
		HabitUses:             5,
		ClusterRadius:         0.5,
		TransferScale:         0.5,
		MetaWindow:            10,
		CurriculumWindow:      5,
		CurriculumAdvance:     0.8,
		MaxTerms:              8,
		Seed:                  42,
		ConsolidationInterval: time.Hour,
		MergeThreshold:        0.9,
		ReinforceReward:       0.7,
		ReinforceImportance:   0.8,
		PruneImportance:       0.2,
		RuleMinEpisodes:       3,
	}
}

type curriculum struct {
	level  int
	window []bool
}

// Engine is the continual learning engine. It owns the memory system.
type Engine struct {
	config *Config
	mem    *memory.System
	log    zerolog.Logger
	clock  func() time.Time

	mu         sync.Mutex
	params     *paramStore
	known      map[models.TaskType]bool
	knownOrder []models.TaskType
	vocab      map[models.TaskType]map[string]bool
	labels     map[models.TaskType][]string
	clusters   map[models.TaskType]int
	rewards    map[models.TaskType][]float64
	rates      map[models.TaskType]float64
	curricula  map[models.TaskType]*curriculum

	experiences       int
	byMode            map[Mode]int
	replays           int
	consolidations    int
	lastConsolidation time.Time

	observers []func(ConsolidationReport)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewEngine creates a learning engine. A nil memory system is replaced by an
// in-memory one.
func NewEngine(config *Config, mem *memory.System, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.LearningRate <= 0 {
		config.LearningRate = defaults.LearningRate
	}
	if config.MinLearningRate <= 0 {
		config.MinLearningRate = defaults.MinLearningRate
	}
	if config.MaxLearningRate <= 0 {
		config.MaxLearningRate = defaults.MaxLearningRate
	}
	if config.SkillMatchThreshold <= 0 {
		config.SkillMatchThreshold = defaults.SkillMatchThreshold
	}
	if config.CurriculumWindow <= 0 {
		config.CurriculumWindow = defaults.CurriculumWindow
	}
	if config.MetaWindow <= 0 {
		config.MetaWindow = defaults.MetaWindow
	}
	if config.ConsolidationInterval <= 0 {
		config.ConsolidationInterval = defaults.ConsolidationInterval
	}
	if config.MaxTerms <= 0 {
		config.MaxTerms = defaults.MaxTerms
	}
	if mem == nil {
		mem = memory.NewSystem(nil, memory.Backends{}, log)
	}
	return &Engine{
		config:    config,
		mem:       mem,
		log:       log,
		clock:     time.Now,
		params:    newParamStore(config.EWCLambda),
		known:     make(map[models.TaskType]bool),
		vocab:     make(map[models.TaskType]map[string]bool),
		labels:    make(map[models.TaskType][]string),
		clusters:  make(map[models.TaskType]int),
		rewards:   make(map[models.TaskType][]float64),
		rates:     make(map[models.TaskType]float64),
		curricula: make(map[models.TaskType]*curriculum),
		byMode:    make(map[Mode]int),
	}
}

// SetClock overrides the time source of the engine and its memory system
func (e *Engine) SetClock(clock func() time.Time) {
	e.mu.Lock()
	e.clock = clock
	e.mu.Unlock()
	e.mem.SetClock(clock)
}

// OnConsolidated registers an observer called after every consolidation pass
func (e *Engine) OnConsolidated(fn func(ConsolidationReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Memory returns the memory system the engine writes to
func (e *Engine) Memory() *memory.System {
	return e.mem
}

// Learn stores an experience in every memory tier and runs the update path
// of its mode. An empty mode is inferred: a label means supervised, actions
// mean reinforcement, anything else is unsupervised.
func (e *Engine) Learn(ctx context.Context, exp models.Experience) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode, err := resolveMode(exp)
	if err != nil {
		return nil, err
	}
	update, err := e.updateFor(mode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(exp.Input) == "" && len(exp.Actions) == 0 {
		return nil, fmt.Errorf("learn: experience has no input")
	}
	if exp.TaskType == "" {
		exp.TaskType = models.TaskTypeGeneral
	}
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if exp.Timestamp.IsZero() {
		exp.Timestamp = e.clock()
	}
	if exp.Importance <= 0 {
		exp.Importance = models.Clamp01(0.4 + 0.4*math.Abs(exp.Reward))
	}
	tt := exp.TaskType
	out := &Outcome{ExperienceID: exp.ID, TaskType: tt, Mode: mode}

	e.mem.PushWorking(exp.Input, exp.Importance, "learning:"+string(mode))
	termIDs := e.extractPatterns(ctx, exp)
	out.Concepts = len(termIDs)

	if !e.known[tt] {
		out.NewTaskType = true
		if len(e.knownOrder) > 0 {
			out.Protected = e.params.snapshot()
			out.Replayed = e.replay(ctx, tt, e.config.ReplaySamples)
		}
		e.known[tt] = true
		e.knownOrder = append(e.knownOrder, tt)
		e.log.Debug().Str("task_type", string(tt)).Int("protected", out.Protected).Int("replayed", out.Replayed).Msg("New task type namespace")
	}

	out.EpisodeID = e.mem.AddEpisode(ctx, memory.Episode{
		ID:         exp.ID,
		TaskType:   tt,
		Input:      exp.Input,
		Context:    exp.Context,
		Actions:    exp.Actions,
		Outcome:    exp.Outcome,
		Reward:     exp.Reward,
		Importance: exp.Importance,
		Success:    exp.Success,
		Mode:       string(mode),
		CreatedAt:  exp.Timestamp,
	})
	out.Skill, out.NewSkill = e.foldProcedural(ctx, exp)

	update(ctx, exp, termIDs, out)
	out.LearningRate = e.rate(tt)

	e.experiences++
	e.byMode[mode]++
	e.log.Debug().
		Str("task_type", string(tt)).
		Str("mode", string(mode)).
		Int("concepts", out.Concepts).
		Str("skill", out.Skill).
		Msg("Experience learned")
	return out, nil
}

func resolveMode(exp models.Experience) (Mode, error) {
	if exp.Mode != "" {
		return ParseMode(exp.Mode)
	}
	switch {
	case exp.Label != "":
		return Supervised, nil
	case len(exp.Actions) > 0:
		return Reinforcement, nil
	}
	return Unsupervised, nil
}

func (e *Engine) rate(tt models.TaskType) float64 {
	if r, ok := e.rates[tt]; ok {
		return r
	}
	return e.config.LearningRate
}

// extractPatterns upserts the content words of the input as term concepts
// linked to the task type, with co-occurrence edges between neighbouring
// terms and usage edges to the actions taken. It returns the term ids.
func (e *Engine) extractPatterns(ctx context.Context, exp models.Experience) []string {
	tt := exp.TaskType
	ttID := e.mem.UpsertConcept(ctx, string(tt), "task_type", nil)
	if e.vocab[tt] == nil {
		e.vocab[tt] = make(map[string]bool)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, w := range textproc.ContentWords(exp.Input) {
		if len(w) < 3 || seen[w] || len(ids) >= e.config.MaxTerms {
			continue
		}
		seen[w] = true
		e.vocab[tt][w] = true
		id := e.mem.UpsertConcept(ctx, w, "term", nil)
		e.relate(ctx, id, ttID, "occurs_in", 0.5)
		if len(ids) > 0 {
			e.relate(ctx, ids[len(ids)-1], id, "co_occurs", 0.5)
		}
		ids = append(ids, id)
	}
	for _, a := range exp.Actions {
		aid := e.mem.UpsertConcept(ctx, a, "action", nil)
		e.relate(ctx, ttID, aid, "uses", models.Clamp01(exp.Reward))
	}
	return ids
}

func (e *Engine) relate(ctx context.Context, from, to, relType string, strength float64) {
	if _, err := e.mem.Relate(ctx, from, to, relType, strength); err != nil {
		e.log.Warn().Err(err).Str("type", relType).Msg("relate failed")
	}
}

// foldProcedural reinforces the best matching skill of the same task type,
// or records a new routine when there is no match and at least two actions.
func (e *Engine) foldProcedural(ctx context.Context, exp models.Experience) (string, bool) {
	if len(exp.Actions) == 0 {
		return "", false
	}
	steps := make([]string, len(exp.Actions))
	for i, a := range exp.Actions {
		steps[i] = strings.ToLower(strings.TrimSpace(a))
	}
	actions := textproc.Set(steps)

	var (
		best      string
		bestScore float64
	)
	for _, sk := range e.mem.Skills() {
		if sk.TaskType != exp.TaskType {
			continue
		}
		if s := textproc.JaccardSets(textproc.Set(sk.Steps), actions); s >= e.config.SkillMatchThreshold && s > bestScore {
			best, bestScore = sk.Name, s
		}
	}

	target := 0.0
	if exp.Success {
		target = 1
	}
	now := e.clock()
	alpha := e.rate(exp.TaskType)

	if best != "" {
		err := e.mem.UpdateSkill(ctx, best, func(sk *memory.Skill) {
			sk.Uses++
			if exp.Success {
				sk.Successes++
			}
			sk.Proficiency += alpha * (target - sk.Proficiency)
			sk.LastUsed = now
			if sk.Kind == memory.SkillKindRoutine && sk.Uses >= e.config.HabitUses && sk.SuccessRate() >= 0.8 {
				sk.Kind = memory.SkillKindHabit
			}
		})
		if err != nil {
			e.log.Warn().Err(err).Str("skill", best).Msg("skill update failed")
		}
		return best, false
	}
	if len(steps) < 2 {
		return "", false
	}

	name := string(exp.TaskType) + ":" + strings.Join(steps, ">")
	sk := memory.Skill{
		Name:        name,
		Kind:        memory.SkillKindRoutine,
		TaskType:    exp.TaskType,
		Steps:       steps,
		Proficiency: alpha * target,
		Uses:        1,
		LastUsed:    now,
	}
	if exp.Success {
		sk.Successes = 1
	}
	e.mem.UpsertSkill(ctx, sk)
	return name, true
}

// replay rehearses k sampled episodes from task types other than exclude,
// nudging their action values toward the recorded reward. The sample is
// drawn from a PCG seeded by the config seed and the task type.
func (e *Engine) replay(ctx context.Context, exclude models.TaskType, k int) int {
	if k <= 0 {
		return 0
	}
	var pool []memory.Episode
	for _, ep := range e.mem.Episodes(memory.EpisodeFilter{}) {
		if ep.TaskType != exclude {
			pool = append(pool, ep)
		}
	}
	if len(pool) == 0 {
		return 0
	}

	h := fnv.New64a()
	h.Write([]byte(exclude))
	h.Write([]byte{byte(e.replays)})
	rng := rand.New(rand.NewPCG(e.config.Seed, h.Sum64()))

	n := 0
	for _, idx := range rng.Perm(len(pool)) {
		if n >= k || ctx.Err() != nil {
			break
		}
		ep := pool[idx]
		alpha := e.rate(ep.TaskType)
		for _, a := range actionsOrDefault(ep.Actions) {
			q, _ := e.params.get(string(ep.TaskType), "q:"+a)
			e.params.update(string(ep.TaskType), "q:"+a, ep.TaskType, ep.Reward-q, alpha)
		}
		if err := e.mem.UpdateEpisode(ctx, ep.ID, func(stored *memory.Episode) { stored.Replays++ }); err != nil {
			e.log.Warn().Err(err).Str("episode", ep.ID).Msg("replay update failed")
		}
		n++
	}
	e.replays += n
	return n
}

// Rehearse replays k sampled episodes across every task type
func (e *Engine) Rehearse(ctx context.Context, k int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replay(ctx, "", k), ctx.Err()
}

func actionsOrDefault(actions []string) []string {
	if len(actions) == 0 {
		return []string{"*"}
	}
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = strings.ToLower(strings.TrimSpace(a))
	}
	return out
}

// Parameters returns the learned parameters of a task type namespace.
// The shared multi-task namespace is addressed as "shared".
func (e *Engine) Parameters(ns string) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.namespace(ns)
}

// CurriculumLevel returns the current curriculum level of a task type
func (e *Engine) CurriculumLevel(tt models.TaskType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.curricula[tt]; ok {
		return c.level
	}
	return 1
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Stats{
		Experiences:      e.experiences,
		ByMode:           make(map[Mode]int, len(e.byMode)),
		TaskTypes:        append([]models.TaskType(nil), e.knownOrder...),
		Parameters:       len(e.params.params),
		Protected:        e.params.protectedCount(),
		Replays:          e.replays,
		Consolidations:   e.consolidations,
		LastConsolidated: e.lastConsolidation,
	}
	for m, n := range e.byMode {
		st.ByMode[m] = n
	}
	if len(e.curricula) > 0 {
		st.CurriculumLevel = make(map[models.TaskType]int, len(e.curricula))
		for tt, c := range e.curricula {
			st.CurriculumLevel[tt] = c.level
		}
	}
	sort.Slice(st.TaskTypes, func(i, j int) bool { return st.TaskTypes[i] < st.TaskTypes[j] })
	return st
}

// Close stops background consolidation and closes the memory system
func (e *Engine) Close() error {
	e.Stop()
	return e.mem.Close()
}
