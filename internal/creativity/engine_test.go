package creativity

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(nil, zerolog.Nop())
}

func bottleChallenge() Challenge {
	return Challenge{
		Problem:     "Design a reusable water bottle for commuters",
		Constraints: []string{"no plastic", "low cost"},
		Outcomes:    []string{"reduce single-use waste"},
		Domain:      "product",
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := newTestEngine().Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)
	second, err := newTestEngine().Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)

	require.Equal(t, len(first.Outputs), len(second.Outputs))
	for i := range first.Outputs {
		assert.Equal(t, first.Outputs[i].Description, second.Outputs[i].Description)
		assert.Equal(t, first.Outputs[i].Scores, second.Outputs[i].Scores)
	}
}

func TestGenerateRanksAndTruncates(t *testing.T) {
	res, err := newTestEngine().Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)

	require.NotEmpty(t, res.Outputs)
	assert.LessOrEqual(t, len(res.Outputs), 10)
	for i, out := range res.Outputs {
		if i > 0 {
			assert.GreaterOrEqual(t, res.Outputs[i-1].Scores.Overall, out.Scores.Overall)
		}
		s := out.Scores
		for _, v := range []float64{s.Novelty, s.Value, s.Feasibility, s.Originality, s.Elaboration, s.Flexibility} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.InDelta(t, s.Novelty*s.Value*s.Feasibility, s.Overall, 1e-12)
		assert.NotEmpty(t, out.Technique)
		switch out.Technique {
		case Combination, Transformation, Refinement:
			assert.NotEmpty(t, out.Parents, out.Description)
		}
	}
}

func TestGenerateRunsEveryDivergentTechnique(t *testing.T) {
	res, err := newTestEngine().Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)

	for _, tech := range DivergentTechniques {
		assert.Positive(t, res.Techniques[tech], tech)
	}
	assert.Greater(t, res.Generated, res.Clusters-1)
	assert.Positive(t, res.Mutations)
}

func TestForbiddenConstraintIsRespected(t *testing.T) {
	res, err := newTestEngine().Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)

	assert.Equal(t, []string{"plastic"}, res.Space.Forbidden)
	for _, d := range res.Space.Dimensions {
		if d.Name == "material" {
			assert.NotContains(t, d.Values, "recycled plastic")
		}
	}
	for _, out := range res.Outputs {
		assert.NotContains(t, strings.ToLower(out.Description), "plastic")
	}
}

func TestDetectDomain(t *testing.T) {
	tests := []struct {
		problem string
		want    string
	}{
		{"help patients recover after knee surgery", "health"},
		{"improve the onboarding workflow", "process"},
		{"make students enjoy classroom maths", "education"},
		{"bring neighbours together", "general"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDomain(tt.problem), tt.problem)
	}
}

func TestSubjectStripsFraming(t *testing.T) {
	assert.Equal(t, "reduce food waste in schools", subject("How can we reduce food waste in schools?"))
	assert.Equal(t, "cut commute times", subject("Ways to cut commute times"))
}

func TestClusterMergesNearDuplicates(t *testing.T) {
	ideas := []Idea{
		{ID: "a", Description: "modular recycled bottle for commuters", Feasibility: 0.6},
		{ID: "b", Description: "modular recycled bottles for a commuter", Feasibility: 0.8},
		{ID: "c", Description: "solar kiosk network", Feasibility: 0.7},
	}
	groups := cluster(ideas, 0.6)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)

	merged := refine(groups[0], []string{"Reduce waste."}, "idea-9")
	assert.Equal(t, Refinement, merged.Technique)
	assert.Equal(t, []string{"a", "b"}, merged.Parents)
	assert.Equal(t, "modular recycled bottles for a commuter, refined to reduce waste", merged.Description)
	assert.InDelta(t, 0.75, merged.Feasibility, 1e-9)

	single := refine(groups[1], nil, "")
	assert.Equal(t, "c", single.ID)
}

func TestCombinationNoveltyTest(t *testing.T) {
	e := newTestEngine()
	sp := Space{Subject: "design a bottle"}

	same := []Idea{
		{ID: "a", Description: "a modular bottle", Attributes: map[string]string{"form": "modular"}, Feasibility: 0.8},
		{ID: "b", Description: "modular bottle again", Attributes: map[string]string{"form": "modular"}, Feasibility: 0.8},
	}
	next := 0
	combos, rejected := e.combine(same, sp, &next)
	assert.Empty(t, combos)
	assert.Equal(t, 1, rejected)

	distinct := []Idea{
		{ID: "a", Description: "a modular bottle", Attributes: map[string]string{"form": "modular"}, Feasibility: 0.8},
		{ID: "b", Description: "a compact bottle", Attributes: map[string]string{"form": "compact"}, Feasibility: 0.6},
	}
	combos, rejected = e.combine(distinct, sp, &next)
	require.Len(t, combos, 1)
	assert.Zero(t, rejected)
	assert.Equal(t, []string{"a", "b"}, combos[0].Parents)
	assert.Equal(t, "hybrid of modular and compact for design a bottle", combos[0].Description)
	assert.InDelta(t, 0.65, combos[0].Feasibility, 1e-9)
}

func TestNovelRejectsCloseIdeas(t *testing.T) {
	pool := []Idea{{Description: "shared bike fleet for the city centre"}}
	assert.False(t, novel("shared bike fleet for city centre", pool, 0.3))
	assert.True(t, novel("rooftop gardens on bus shelters", pool, 0.3))
}

func TestGenerateRejectsEmptyProblem(t *testing.T) {
	_, err := newTestEngine().Generate(context.Background(), Challenge{Problem: "  "})
	assert.ErrorIs(t, err, ErrEmptyProblem)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine().Generate(ctx, bottleChallenge())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAccumulate(t *testing.T) {
	e := newTestEngine()
	_, err := e.Generate(context.Background(), bottleChallenge())
	require.NoError(t, err)
	stats := e.Stats()
	assert.Equal(t, 1, stats.Runs)
	assert.Positive(t, stats.Generated)
	assert.Positive(t, stats.Returned)
}
