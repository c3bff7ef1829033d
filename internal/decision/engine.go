package decision

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumflow/cognicore/internal/models"
)

// Config holds decision engine configuration
type Config struct {
	Simulations          int     // MCTS rollouts
	Exploration          float64 // UCT constant
	Seed                 uint64
	EthicalFloor         float64
	EthicsWeights        map[string]float64
	DefaultRiskTolerance float64
	CheckpointContinue   float64
	CheckpointAbort      float64
	MaxResults           int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Simulations:          1000,
		Exploration:          math.Sqrt2,
		Seed:                 42,
		EthicalFloor:         0.5,
		EthicsWeights:        DefaultEthicsWeights(),
		DefaultRiskTolerance: 0.5,
		CheckpointContinue:   0.7,
		CheckpointAbort:      0.3,
		MaxResults:           500,
	}
}

// Engine generates, scores and ethically filters decision options
type Engine struct {
	config *Config
	log    zerolog.Logger
	clock  func() time.Time

	mu      sync.RWMutex
	results map[string]*Result
	order   []string
}

// NewEngine creates a decision engine
func NewEngine(config *Config, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.EthicsWeights) == 0 {
		config.EthicsWeights = DefaultEthicsWeights()
	}
	if config.Simulations <= 0 {
		config.Simulations = 1000
	}
	if config.Exploration <= 0 {
		config.Exploration = math.Sqrt2
	}
	return &Engine{
		config:  config,
		log:     log,
		clock:   time.Now,
		results: make(map[string]*Result),
	}
}

// SetClock overrides the time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Decide runs the full pipeline: analyse the context, generate options,
// score them, filter by ethics, select and plan.
func (e *Engine) Decide(ctx context.Context, dc Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.analyze(&dc)
	criteria := resolveCriteria(dc.Criteria)

	var options []Option
	for i, name := range candidateNames(&dc) {
		options = append(options, newOption(i+1, name, &dc))
	}
	options = applyConstraints(options, dc.Constraints)
	if len(options) == 0 {
		return nil, ErrNoOptions
	}

	algorithms := selectAlgorithms(&dc, criteria)
	if err := e.score(ctx, options, &dc, criteria, algorithms); err != nil {
		return nil, err
	}

	eligible := 0
	for i := range options {
		options[i].EthicalScore, options[i].Ethics = evaluateEthics(options[i], dc.Criticality, e.config.EthicsWeights)
		options[i].Disqualified = options[i].EthicalScore < e.config.EthicalFloor
		if !options[i].Disqualified {
			eligible++
		}
	}
	if eligible == 0 {
		e.log.Warn().Str("situation", dc.Situation).Int("options", len(options)).Msg("All options ethically disqualified")
		return nil, &DisqualificationError{Floor: e.config.EthicalFloor, Options: options}
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.Disqualified != b.Disqualified {
			return !a.Disqualified
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ExpectedValue > b.ExpectedValue
	})

	selected := options[0]
	var runnerUp *Option
	if len(options) > 1 && !options[1].Disqualified {
		runnerUp = &options[1]
	}

	result := &Result{
		ID:             uuid.New().String(),
		Context:        dc,
		SelectedOption: selected,
		Alternatives:   options[1:],
		Algorithms:     algorithms,
		ExecutionPlan:  e.buildExecutionPlan(&dc, selected, runnerUp),
		MonitoringPlan: e.buildMonitoringPlan(&dc, criteria, selected),
		Confidence:     e.confidence(selected, runnerUp),
		CreatedAt:      e.clock(),
	}
	e.store(result)

	e.log.Info().
		Str("decision", result.ID).
		Str("selected", selected.Name).
		Str("algorithms", joinAlgorithms(algorithms)).
		Float64("confidence", result.Confidence).
		Msg("Decision made")
	return result, nil
}

// score fills Scores per algorithm and the combined Score, the mean of the
// min-max normalised algorithm scores
func (e *Engine) score(ctx context.Context, options []Option, dc *Context, criteria []Criterion, algorithms []Algorithm) error {
	for i := range options {
		options[i].Scores = make(map[Algorithm]float64, len(algorithms))
	}

	combined := make([]float64, len(options))
	for _, alg := range algorithms {
		var raw []float64
		switch alg {
		case MCDA:
			raw = mcda(options, criteria)
		case RiskAdjusted:
			raw = riskAdjusted(options, dc.RiskTolerance)
		case GameTheoretic:
			if len(dc.Opponents) == 0 {
				raw = riskAdjusted(options, dc.RiskTolerance)
				break
			}
			var eq []map[string]interface{}
			raw, eq = gameTheoretic(options, dc.Opponents)
			e.log.Debug().Int("equilibria", len(eq)).Msg("Nash search complete")
		case MCTS:
			var err error
			if raw, err = e.mcts(ctx, options, dc); err != nil {
				return fmt.Errorf("mcts: %w", err)
			}
		case Bayesian:
			signals := append(situationSignals(dc.Situation), dc.Signals...)
			raw = bayesian(options, posterior(dc.Uncertainty, signals))
		default:
			return fmt.Errorf("unknown decision algorithm %q", alg)
		}
		norm := normalize(raw)
		for i := range options {
			options[i].Scores[alg] = raw[i]
			combined[i] += norm[i]
		}
	}
	for i := range options {
		options[i].Score = combined[i] / float64(len(algorithms))
	}
	return nil
}

// confidence blends the option's own confidence with its margin over the runner-up
func (e *Engine) confidence(selected Option, runnerUp *Option) float64 {
	margin := 1.0
	if runnerUp != nil {
		margin = selected.Score - runnerUp.Score
	}
	return models.Clamp01(0.6*selected.Confidence + 0.2*selected.Score + 0.2*margin)
}

func (e *Engine) store(r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[r.ID] = r
	e.order = append(e.order, r.ID)
	if limit := e.config.MaxResults; limit > 0 && len(e.order) > limit {
		delete(e.results, e.order[0])
		e.order = e.order[1:]
	}
}

// Get returns a stored result by id
func (e *Engine) Get(id string) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case MCDA, GameTheoretic, MCTS, Bayesian, RiskAdjusted:
		return a, nil
	}
	return "", fmt.Errorf("unknown decision algorithm %q", s)
}

func joinAlgorithms(algs []Algorithm) string {
	parts := make([]string, len(algs))
	for i, a := range algs {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}
