package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(nil, zerolog.Nop())
}

func investmentContext() Context {
	return Context{
		Situation: "choose investment strategy",
		Options:   []string{"Stocks", "Bonds"},
		Criteria:  []Criterion{{Name: "Risk"}, {Name: "Return"}},
	}
}

func TestDecideStocksOrBonds(t *testing.T) {
	e := newTestEngine()
	result, err := e.Decide(context.Background(), investmentContext())
	require.NoError(t, err)

	assert.Contains(t, []string{"Stocks", "Bonds"}, result.SelectedOption.Name)
	assert.Equal(t, "Bonds", result.SelectedOption.Name)
	assert.Greater(t, result.SelectedOption.EthicalScore, 0.0)
	assert.GreaterOrEqual(t, len(result.ExecutionPlan.Steps), 1)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "Stocks", result.Alternatives[0].Name)
	assert.Equal(t, []Algorithm{MCDA}, result.Algorithms)

	assert.InDelta(t, 0.6, result.SelectedOption.Scores[MCDA], 1e-9)
	assert.InDelta(t, 0.55, result.Alternatives[0].Scores[MCDA], 1e-9)

	require.NotEmpty(t, result.ExecutionPlan.Contingencies)
	assert.Equal(t, "switch to Stocks", result.ExecutionPlan.Contingencies[0].Alternative)

	var names []string
	for _, m := range result.MonitoringPlan.Metrics {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"risk", "return", "progress", "risk_exposure"}, names)
}

const unethical = "Deceive, coerce and exploit customers to hide unfair fees"

func TestEthicalFloorOverridesExpectedValue(t *testing.T) {
	e := newTestEngine()
	dc := Context{
		Situation: "set pricing policy",
		Options:   []string{unethical, "Fair pricing"},
		Criteria:  []Criterion{{Name: "Return"}},
		OptionAttributes: map[string]map[string]float64{
			unethical: {AttrReturn: 1, AttrRisk: 0, AttrCost: 0, AttrQuality: 1, AttrImpact: 1},
		},
	}
	result, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)

	assert.Equal(t, "Fair pricing", result.SelectedOption.Name)
	require.Len(t, result.Alternatives, 1)
	bad := result.Alternatives[0]
	assert.True(t, bad.Disqualified)
	assert.Less(t, bad.EthicalScore, 0.5)
	assert.Greater(t, bad.ExpectedValue, result.SelectedOption.ExpectedValue)
	assert.Equal(t, 0.0, bad.Ethics[PrincipleTransparency])
}

func TestAllOptionsDisqualified(t *testing.T) {
	_, err := newTestEngine().Decide(context.Background(), Context{Situation: "pricing", Options: []string{unethical}})
	assert.ErrorIs(t, err, ErrEthicalDisqualification)

	var disq *DisqualificationError
	require.ErrorAs(t, err, &disq)
	require.Len(t, disq.Options, 1)
	assert.True(t, disq.Options[0].Disqualified)
}

func TestNoOptionsAfterConstraints(t *testing.T) {
	_, err := newTestEngine().Decide(context.Background(), Context{
		Situation:   "invest",
		Options:     []string{"Stocks"},
		Constraints: []string{"no stocks"},
	})
	assert.ErrorIs(t, err, ErrNoOptions)
	assert.False(t, errors.Is(err, ErrEthicalDisqualification))
}

func TestRiskLimitConstraint(t *testing.T) {
	result, err := newTestEngine().Decide(context.Background(), Context{
		Situation:   "invest savings",
		Options:     []string{"Stocks", "Bonds", "Crypto"},
		Constraints: []string{"max risk 0.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonds", result.SelectedOption.Name)
	assert.Empty(t, result.Alternatives)
}

func TestGeneratedOptions(t *testing.T) {
	result, err := newTestEngine().Decide(context.Background(), Context{
		Situation: "plan my finances",
		Goals:     []string{"grow savings"},
	})
	require.NoError(t, err)

	names := []string{result.SelectedOption.Name}
	for _, o := range result.Alternatives {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"pursue grow savings", "conservative approach", "balanced approach", "aggressive approach"}, names)
}

func TestSituationAlternatives(t *testing.T) {
	c := &Context{Situation: "Should I choose stocks or bonds?"}
	assert.Equal(t, []string{"stocks", "bonds"}, candidateNames(c))

	c = &Context{Situation: "decide between real estate and index funds"}
	assert.Equal(t, []string{"real estate", "index funds"}, candidateNames(c))
}

func TestSelectAlgorithms(t *testing.T) {
	c := &Context{Opponents: []Opponent{{Name: "rival"}}, Uncertainty: 0.7, Criticality: 0.8}
	assert.Equal(t, []Algorithm{GameTheoretic, Bayesian, MCTS, RiskAdjusted, MCDA},
		selectAlgorithms(c, resolveCriteria(nil)))

	c = &Context{}
	assert.Equal(t, []Algorithm{MCDA}, selectAlgorithms(c, []Criterion{{Name: "cost"}}))

	c = &Context{Algorithms: []Algorithm{MCTS}}
	assert.Equal(t, []Algorithm{MCTS}, selectAlgorithms(c, nil))
}

func TestNashBestResponses(t *testing.T) {
	// prisoner's dilemma: row 0/col 0 cooperate, row 1/col 1 defect
	ours := [][]float64{{3, 0}, {5, 1}}
	theirs := [][]float64{{3, 5}, {0, 1}}
	assert.True(t, isBestResponseRow(ours, 1, 1))
	assert.True(t, isBestResponseCol(theirs, 1, 1))
	assert.False(t, isBestResponseRow(ours, 0, 0))
	assert.False(t, isBestResponseCol(theirs, 0, 0))
}

func TestGameTheoreticDecision(t *testing.T) {
	dc := investmentContext()
	dc.Opponents = []Opponent{{Name: "market maker", Strategies: []string{"compete", "cooperate"}, Stance: -1}}
	result, err := newTestEngine().Decide(context.Background(), dc)
	require.NoError(t, err)

	assert.Contains(t, result.Algorithms, GameTheoretic)
	_, ok := result.SelectedOption.Scores[GameTheoretic]
	assert.True(t, ok)
	assert.GreaterOrEqual(t, result.SelectedOption.Score, result.Alternatives[0].Score)
}

func TestMCTSPrefersHigherExpectedValue(t *testing.T) {
	e := newTestEngine()
	dc := &Context{Situation: "park savings"}
	options := []Option{newOption(1, "Bonds", dc), newOption(2, "Cash", dc)}
	require.Greater(t, options[0].ExpectedValue, options[1].ExpectedValue)

	first, err := e.mcts(context.Background(), options, dc)
	require.NoError(t, err)
	second, err := e.mcts(context.Background(), options, dc)
	require.NoError(t, err)

	assert.Equal(t, first, second, "rollouts are seeded")
	assert.Greater(t, first[0], first[1])
	assert.InDelta(t, options[0].ExpectedValue, first[0], 0.1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.mcts(ctx, options, dc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPosterior(t *testing.T) {
	prior := posterior(0, nil)
	assert.InDelta(t, 0.45, prior[StateFavourable], 1e-9)
	assert.InDelta(t, 0.35, prior[StateNeutral], 1e-9)

	post := posterior(0, situationSignals("a recession is coming"))
	assert.Greater(t, post[StateUnfavourable], post[StateFavourable])
	assert.InDelta(t, 1, post[StateFavourable]+post[StateNeutral]+post[StateUnfavourable], 1e-9)
	assert.InDelta(t, 0.14/0.255, post[StateUnfavourable], 1e-9)
}

func TestRiskAdjusted(t *testing.T) {
	options := []Option{{ExpectedValue: 0.5, Risk: 0.8}, {ExpectedValue: 0.4, Risk: 0.1}}
	scores := riskAdjusted(options, 0.5)
	assert.InDelta(t, 0.1, scores[0], 1e-9)
	assert.InDelta(t, 0.35, scores[1], 1e-9)
}

func TestExecuteSimulated(t *testing.T) {
	e := newTestEngine()
	result, err := e.Decide(context.Background(), investmentContext())
	require.NoError(t, err)

	report, err := e.Execute(context.Background(), result, nil)
	require.NoError(t, err)
	assert.True(t, report.Completed)
	assert.Len(t, report.Steps, len(result.ExecutionPlan.Steps))
	for _, s := range report.Steps {
		assert.Equal(t, VerdictContinue, s.Verdict)
	}
}

func TestExecuteAdaptThenAbort(t *testing.T) {
	e := newTestEngine()
	result, err := e.Decide(context.Background(), investmentContext())
	require.NoError(t, err)

	var ran []string
	runner := StepRunnerFunc(func(ctx context.Context, step ExecutionStep) (float64, error) {
		ran = append(ran, step.Action)
		switch {
		case strings.HasPrefix(step.Action, "adjust"):
			return 0.9, nil
		case step.ID == "step-1":
			return 0.5, nil
		case step.ID == "step-2":
			return 0.1, nil
		}
		return 1, nil
	})

	report, err := e.Execute(context.Background(), result, runner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionAborted)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "step-2", execErr.StepID)

	assert.False(t, report.Completed)
	assert.Equal(t, 1, report.Adapted)
	require.NotNil(t, report.ContingencyUsed)
	assert.Equal(t, "switch to Stocks", report.ContingencyUsed.Alternative)
	assert.Equal(t, "switch to Stocks", ran[len(ran)-1])
	assert.Equal(t, 2, report.Steps[0].Attempts)
}

func TestCheckpointEvaluate(t *testing.T) {
	cp := Checkpoint{ContinueAt: 0.7, AbortBelow: 0.3}
	assert.Equal(t, VerdictContinue, cp.Evaluate(0.7))
	assert.Equal(t, VerdictAdapt, cp.Evaluate(0.5))
	assert.Equal(t, VerdictAbort, cp.Evaluate(0.29))
}

func TestGetResult(t *testing.T) {
	e := newTestEngine()
	result, err := e.Decide(context.Background(), investmentContext())
	require.NoError(t, err)

	got, err := e.Get(result.ID)
	require.NoError(t, err)
	assert.Same(t, result, got)

	_, err = e.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
