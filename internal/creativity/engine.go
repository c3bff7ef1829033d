// Package creativity generates ideas for open-ended problems. A conceptual
// space is expanded from the problem's domain, explored with divergent
// techniques, narrowed by feasibility and clustering, then recombined and
// mutated. Every run is deterministic for a given seed and problem.
package creativity

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds creativity engine configuration
type Config struct {
	Seed               uint64
	MaxIdeas           int
	NoveltyThreshold   float64
	ClusterThreshold   float64
	FeasibilityFloor   float64
	BrainstormCount    int
	RandomStimuli      int
	MorphologicalCount int
	MaxCombinations    int
	MaxTriples         int
	Transformations    int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Seed:               42,
		MaxIdeas:           10,
		NoveltyThreshold:   0.3,
		ClusterThreshold:   0.6,
		FeasibilityFloor:   0.3,
		BrainstormCount:    6,
		RandomStimuli:      4,
		MorphologicalCount: 4,
		MaxCombinations:    12,
		MaxTriples:         4,
		Transformations:    5,
	}
}

// Stats counts work done since the engine started
type Stats struct {
	Runs      int `json:"runs"`
	Generated int `json:"generated"`
	Returned  int `json:"returned"`
}

// Engine runs the creative pipeline
type Engine struct {
	config *Config
	log    zerolog.Logger
	clock  func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewEngine creates a creativity engine
func NewEngine(config *Config, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.MaxIdeas <= 0 {
		config.MaxIdeas = defaults.MaxIdeas
	}
	if config.ClusterThreshold <= 0 {
		config.ClusterThreshold = defaults.ClusterThreshold
	}
	if config.BrainstormCount <= 0 {
		config.BrainstormCount = defaults.BrainstormCount
	}
	if config.RandomStimuli <= 0 {
		config.RandomStimuli = defaults.RandomStimuli
	}
	if config.MorphologicalCount <= 0 {
		config.MorphologicalCount = defaults.MorphologicalCount
	}
	if config.MaxCombinations < 0 {
		config.MaxCombinations = 0
	}
	if config.Transformations <= 0 {
		config.Transformations = defaults.Transformations
	}
	return &Engine{config: config, log: log, clock: time.Now}
}

// SetClock overrides the time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

func (e *Engine) rng(problem string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(problem))))
	return rand.New(rand.NewPCG(e.config.Seed, h.Sum64()))
}

// Generate explores the challenge and returns at most MaxIdeas outputs
// ordered by novelty·value·feasibility.
func (e *Engine) Generate(ctx context.Context, c Challenge) (*Result, error) {
	if strings.TrimSpace(c.Problem) == "" {
		return nil, ErrEmptyProblem
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := e.clock()
	sp := expandSpace(c)
	rng := e.rng(c.Problem)

	g := &generator{space: sp, rng: rng}
	e.diverge(g)
	res := &Result{
		ID:         uuid.New().String(),
		Challenge:  c,
		Space:      sp,
		Generated:  len(g.ideas),
		Techniques: make(map[Technique]int),
		CreatedAt:  start,
	}
	for _, idea := range g.ideas {
		res.Techniques[idea.Technique]++
	}
	e.log.Debug().Str("domain", sp.Domain).Int("ideas", len(g.ideas)).Msg("Divergent stage complete")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next := g.next
	refined, feasible, clusters := e.converge(g.ideas, c, sp, &next)
	res.Feasible, res.Clusters = feasible, clusters

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	combos, rejected := e.combine(refined, sp, &next)
	res.Combinations, res.Rejected = len(combos), rejected

	pool := append(refined, combos...)
	mutants := e.transform(pool, sp, rng, &next)
	res.Mutations = len(mutants)
	pool = append(pool, mutants...)

	outputs := score(pool, c, sp)
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].Scores.Overall > outputs[j].Scores.Overall
	})
	if len(outputs) > e.config.MaxIdeas {
		outputs = outputs[:e.config.MaxIdeas]
	}
	res.Outputs = outputs
	res.Duration = e.clock().Sub(start)

	e.mu.Lock()
	e.stats.Runs++
	e.stats.Generated += res.Generated
	e.stats.Returned += len(outputs)
	e.mu.Unlock()

	e.log.Info().
		Str("domain", sp.Domain).
		Int("generated", res.Generated).
		Int("clusters", clusters).
		Int("combinations", len(combos)).
		Int("returned", len(outputs)).
		Msg("Creative generation complete")
	return res, nil
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
