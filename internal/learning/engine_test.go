package learning

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
)

var t0 = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *time.Time) {
	t.Helper()
	now := t0
	e := NewEngine(cfg, nil, zerolog.Nop())
	e.SetClock(func() time.Time { return now })
	t.Cleanup(func() { e.Close() })
	return e, &now
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("self-supervised")
	require.NoError(t, err)
	assert.Equal(t, SelfSupervised, m)

	m, err = ParseMode(" Meta Learning ")
	require.NoError(t, err)
	assert.Equal(t, MetaLearning, m)

	_, err = ParseMode("telepathy")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestLearnRejectsUnknownMode(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	before := e.Memory().GetStats()

	_, err := e.Learn(context.Background(), models.Experience{Input: "x", Mode: "telepathy"})
	assert.ErrorIs(t, err, ErrUnknownMode)

	after := e.Memory().GetStats()
	assert.Equal(t, before.WorkingCount, after.WorkingCount)
	assert.Equal(t, before.EpisodicCount, after.EpisodicCount)
	assert.Equal(t, before.SemanticCount, after.SemanticCount)
	assert.Equal(t, before.ProceduralCount, after.ProceduralCount)
}

func TestEveryModeHasAnUpdate(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for _, m := range Modes {
		update, err := e.updateFor(m)
		require.NoError(t, err, m)
		assert.NotNil(t, update, m)
	}
	_, err := e.updateFor(Mode("telepathy"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestLearnWritesEveryTier(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	exp := models.Experience{
		TaskType: models.TaskTypeReasoning,
		Input:    "sales grow when marketing budget increases",
		Actions:  []string{"analyze", "forecast"},
		Outcome:  "forecast confirmed",
		Reward:   0.8,
		Success:  true,
	}

	out, err := e.Learn(ctx, exp)
	require.NoError(t, err)
	assert.Equal(t, Reinforcement, out.Mode)
	assert.True(t, out.NewTaskType)
	assert.Zero(t, out.Protected)
	assert.Equal(t, "reasoning:analyze>forecast", out.Skill)
	assert.True(t, out.NewSkill)
	assert.InDelta(t, 0.08, out.QValues["analyze"], 1e-9)

	mem := e.Memory()
	require.Len(t, mem.Working(), 1)
	ep, ok := mem.Episode(out.EpisodeID)
	require.True(t, ok)
	assert.Equal(t, "reinforcement", ep.Mode)
	assert.InDelta(t, 0.72, ep.Importance, 1e-9)

	_, ok = mem.ConceptByName("budget")
	assert.True(t, ok)
	tt, ok := mem.ConceptByName("reasoning")
	require.True(t, ok)
	assert.Len(t, mem.Neighbors(tt.ID), 2)

	out, err = e.Learn(ctx, exp)
	require.NoError(t, err)
	assert.False(t, out.NewTaskType)
	assert.False(t, out.NewSkill)
	assert.InDelta(t, 0.152, out.QValues["analyze"], 1e-9)

	sk, ok := mem.Skill("reasoning:analyze>forecast")
	require.True(t, ok)
	assert.Equal(t, 2, sk.Uses)
	assert.Equal(t, 2, sk.Successes)
	assert.Equal(t, memory.SkillKindRoutine, sk.Kind)
}

func TestNewTaskTypeAnchorsAndReplays(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := e.Learn(ctx, models.Experience{
			TaskType: models.TaskTypeReasoning,
			Input:    "explain churn",
			Actions:  []string{"analyze", "forecast"},
			Reward:   1,
			Success:  true,
		})
		require.NoError(t, err)
	}

	out, err := e.Learn(ctx, models.Experience{
		TaskType: models.TaskTypePlanning,
		Input:    "plan the launch",
		Actions:  []string{"schedule"},
		Reward:   0.5,
	})
	require.NoError(t, err)
	assert.True(t, out.NewTaskType)
	assert.Equal(t, 2, out.Protected)
	assert.Equal(t, 2, out.Replayed)

	replays := 0
	for _, ep := range e.Memory().Episodes(memory.EpisodeFilter{TaskType: models.TaskTypeReasoning}) {
		replays += ep.Replays
	}
	assert.Equal(t, 2, replays)

	planning := e.Parameters("planning")
	assert.Contains(t, planning, "q:schedule")
	assert.NotContains(t, planning, "q:analyze")
	assert.Contains(t, e.Parameters("reasoning"), "q:analyze")

	st := e.Stats()
	assert.Equal(t, 3, st.Experiences)
	assert.Equal(t, 2, st.Protected)
	assert.Equal(t, []models.TaskType{models.TaskTypePlanning, models.TaskTypeReasoning}, st.TaskTypes)
}

func TestElasticPenaltyDampsDrift(t *testing.T) {
	protected, free := newParamStore(4), newParamStore(4)
	for _, s := range []*paramStore{protected, free} {
		s.update("reasoning", "w", models.TaskTypeReasoning, 1, 1)
	}
	protected.snapshot()

	for i := 0; i < 10; i++ {
		for _, s := range []*paramStore{protected, free} {
			v, _ := s.get("reasoning", "w")
			s.update("reasoning", "w", models.TaskTypePlanning, -v, 0.1)
		}
	}
	p, _ := protected.get("reasoning", "w")
	f, _ := free.get("reasoning", "w")
	assert.Greater(t, p, 0.79)
	assert.InDelta(t, 0.3487, f, 1e-3)
}

func TestSupervisedPrototypes(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	learn := func(label string, x float64) *Outcome {
		out, err := e.Learn(ctx, models.Experience{
			TaskType: models.TaskTypeLearning,
			Input:    "classify message",
			Label:    label,
			Features: map[string]float64{"x": x},
		})
		require.NoError(t, err)
		return out
	}

	first := learn("spam", 1)
	assert.Equal(t, Supervised, first.Mode)
	assert.Empty(t, first.Prediction)
	learn("ham", 0)

	out := learn("spam", 0.9)
	assert.Equal(t, "spam", out.Prediction)
	assert.True(t, out.Correct)
	assert.InDelta(t, 0.99, e.Parameters("learning")["proto:spam:x"], 1e-9)
}

func TestUnsupervisedClusters(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	var clusters []string
	for _, a := range []float64{0, 0.1, 2} {
		out, err := e.Learn(ctx, models.Experience{
			TaskType: models.TaskTypeCreativity,
			Input:    "sketch ideas",
			Features: map[string]float64{"a": a},
		})
		require.NoError(t, err)
		clusters = append(clusters, out.Cluster)
	}
	assert.Equal(t, []string{"c1", "c1", "c2"}, clusters)
	_, ok := e.Memory().ConceptByName("creativity cluster c2")
	assert.True(t, ok)
}

func TestSelfSupervisedPredictionError(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	first, err := e.Learn(ctx, models.Experience{
		TaskType: models.TaskTypeReasoning, Mode: "self_supervised",
		Input: "water the plants", Outcome: "plants grow",
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, first.PredictionError, 1e-9)

	second, err := e.Learn(ctx, models.Experience{
		TaskType: models.TaskTypeReasoning, Mode: "self_supervised",
		Input: "water the plants daily", Outcome: "plants grow",
	})
	require.NoError(t, err)
	assert.Equal(t, "plants grow", second.Prediction)
	assert.InDelta(t, 0.0, second.PredictionError, 1e-9)
}

func TestMetaLearningAdaptsRate(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	var out *Outcome
	var err error
	for _, r := range []float64{1, 1, 1} {
		out, err = e.Learn(ctx, models.Experience{TaskType: models.TaskTypeDecision, Mode: "meta_learning", Input: "pick vendor", Reward: r})
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.15, out.LearningRate, 1e-9)

	for _, r := range []float64{0, 1, 0, 1} {
		out, err = e.Learn(ctx, models.Experience{TaskType: models.TaskTypePlanning, Mode: "meta_learning", Input: "plan sprint", Reward: r})
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.05, out.LearningRate, 1e-9)
}

func TestTransferFromSimilarTask(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	_, err := e.Learn(ctx, models.Experience{
		TaskType: models.TaskTypeReasoning,
		Input:    "analyze market sales data",
		Actions:  []string{"analyze"},
		Reward:   1,
	})
	require.NoError(t, err)

	out, err := e.Learn(ctx, models.Experience{
		TaskType: models.TaskTypeDecision,
		Mode:     "transfer",
		Input:    "market sales decision",
		Features: map[string]float64{"x": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeReasoning, out.TransferredFrom)
	assert.Equal(t, 1, out.Transferred)
	assert.Equal(t, 1, out.Replayed)

	params := e.Parameters("decision")
	assert.InDelta(t, 0.095, params["q:analyze"], 1e-9)
	assert.InDelta(t, 0.1, params["w:x"], 1e-9)
}

func TestMultiTaskSharesWeights(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	for _, tt := range []models.TaskType{models.TaskTypeReasoning, models.TaskTypePlanning} {
		_, err := e.Learn(ctx, models.Experience{TaskType: tt, Mode: "multi-task", Input: "shared skill", Features: map[string]float64{"x": 1}})
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.0975, e.Parameters("shared")["w:x"], 1e-9)
	assert.InDelta(t, 0.1, e.Parameters("reasoning")["w:x"], 1e-9)
	assert.InDelta(t, 0.095, e.Parameters("planning")["w:x"], 1e-9)
}

func TestCurriculumAdvances(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	attempt := func(success bool) *Outcome {
		out, err := e.Learn(ctx, models.Experience{TaskType: models.TaskTypeLearning, Mode: "curriculum", Input: "practice scales", Success: success})
		require.NoError(t, err)
		return out
	}

	for i := 0; i < 4; i++ {
		assert.Equal(t, 1, attempt(true).Level)
	}
	out := attempt(true)
	assert.True(t, out.Advanced)
	assert.Equal(t, 2, out.Level)

	for _, s := range []bool{false, false, true, true, true} {
		out = attempt(s)
		assert.False(t, out.Advanced)
	}
	assert.Equal(t, 2, out.Level)

	out = attempt(true)
	assert.True(t, out.Advanced)
	assert.Equal(t, 3, e.CurriculumLevel(models.TaskTypeLearning))
}

func TestConsolidatePhases(t *testing.T) {
	e, now := newTestEngine(t, nil)
	ctx := context.Background()
	learn := func(input, outcome string, reward, importance float64) {
		_, err := e.Learn(ctx, models.Experience{
			TaskType: models.TaskTypeReasoning, Mode: "unsupervised",
			Input: input, Outcome: outcome, Reward: reward, Importance: importance, Success: reward > 0.5,
		})
		require.NoError(t, err)
	}
	learn("deploy service to staging", "deployed", 0.9, 0)
	learn("deploy service to staging", "deployed", 0.9, 0)
	learn("investigate latency spike in the api", "found cache miss", 0.2, 0.1)
	learn("summarize incident report", "summary written", 0.5, 0.5)

	*now = t0.Add(time.Hour)
	report, err := e.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Reinforced)
	assert.Zero(t, report.Pruned)
	assert.Equal(t, 1, report.Rules)
	assert.NotEmpty(t, report.ReflectionID)

	rule, ok := e.Memory().ConceptByName("rule:reasoning")
	require.True(t, ok)
	assert.Equal(t, "3", rule.Attributes["episodes"])

	*now = t0.Add(2 * time.Hour)
	report, err = e.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pruned)
	assert.Zero(t, report.Rules)
	assert.Len(t, e.Memory().Episodes(memory.EpisodeFilter{}), 2)

	st := e.Stats()
	assert.Equal(t, 2, st.Consolidations)
	assert.Equal(t, t0.Add(2*time.Hour), st.LastConsolidated)
	assert.Len(t, e.Memory().Reflections(0), 2)
}

func TestConsolidationObservers(t *testing.T) {
	e, now := newTestEngine(t, nil)
	var reports []ConsolidationReport
	e.OnConsolidated(func(r ConsolidationReport) { reports = append(reports, r) })
	e.OnConsolidated(func(r ConsolidationReport) { reports = append(reports, r) })

	*now = t0.Add(time.Hour)
	report, err := e.Consolidate(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, report.ReflectionID, reports[0].ReflectionID)
	assert.Equal(t, t0.Add(time.Hour), reports[1].At)
}

func TestConsolidateHonoursCancellation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Consolidate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduledConsolidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsolidationInterval = 5 * time.Millisecond
	e := NewEngine(cfg, nil, zerolog.Nop())
	defer e.Close()

	e.Start(context.Background())
	require.Eventually(t, func() bool { return e.Stats().Consolidations >= 2 }, time.Second, 5*time.Millisecond)
	e.Stop()
	n := e.Stats().Consolidations
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, e.Stats().Consolidations)
}
