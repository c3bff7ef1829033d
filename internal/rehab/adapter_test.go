package rehab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/agent"
	"github.com/quantumflow/cognicore/internal/config"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
)

var t0 = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// fakeCore records what the adapter asks for
type fakeCore struct {
	goal     string
	evidence []models.Evidence
	method   string
	decision decision.Context
	plan     agent.PlanInput
	learned  []interface{}
}

func (f *fakeCore) Reason(ctx context.Context, goal string, evidence []models.Evidence, method string) (*reasoning.Chain, error) {
	f.goal, f.evidence, f.method = goal, evidence, method
	return &reasoning.Chain{FinalConclusion: "scores are improving", OverallConfidence: 0.8, Success: true}, nil
}

func (f *fakeCore) DecideContext(ctx context.Context, dc decision.Context) (*decision.Result, error) {
	f.decision = dc
	return &decision.Result{
		SelectedOption: decision.Option{Name: dc.Options[0], Actions: []string{"book sessions"}},
		Alternatives:   []decision.Option{{Name: dc.Options[1]}},
		Confidence:     0.7,
	}, nil
}

func (f *fakeCore) Plan(ctx context.Context, in agent.PlanInput) (*planning.Plan, error) {
	f.plan = in
	return &planning.Plan{ID: "plan-1", Goal: planning.Goal{Description: in.Goal, Deadline: in.Deadline}}, nil
}

func (f *fakeCore) Learn(ctx context.Context, data interface{}, mode string) (*learning.Outcome, error) {
	f.learned = append(f.learned, data)
	return &learning.Outcome{}, nil
}

func seedRecords() *MemoryRecords {
	r := NewMemoryRecords()
	r.AddBeneficiary(Beneficiary{ID: "b1", Name: "Amira", Condition: "knee injury", Budget: 2000, Enrolled: t0})
	for i, score := range []float64{55, 40, 45, 50} {
		// added out of order; Sessions sorts by date
		week := []int{3, 0, 1, 2}[i]
		r.AddSession(Session{
			ID:            "s" + string(rune('a'+i)),
			BeneficiaryID: "b1",
			Date:          t0.AddDate(0, 0, 7*week),
			Program:       "physiotherapy",
			Score:         score,
			Attended:      true,
		})
	}
	r.AddSession(Session{ID: "missed", BeneficiaryID: "b1", Date: t0.AddDate(0, 0, 10), Program: "physiotherapy"})
	r.AddGoal(Goal{ID: "g1", BeneficiaryID: "b1", Description: "walk without crutches", TargetScore: 70})
	r.AddGoal(Goal{ID: "g2", BeneficiaryID: "b1", Description: "climb stairs", TargetScore: 50})
	return r
}

func newTestAdapter(core Core) *Adapter {
	a := NewAdapter(core, seedRecords(), zerolog.Nop())
	a.SetClock(func() time.Time { return t0 })
	return a
}

func TestFitTrend(t *testing.T) {
	sessions, err := seedRecords().Sessions(context.Background(), "b1")
	require.NoError(t, err)

	tr := fitTrend(sessions)
	assert.Equal(t, 4, tr.N)
	assert.InDelta(t, 5, tr.Slope, 1e-9)
	assert.InDelta(t, 40, tr.Intercept, 1e-9)
	assert.InDelta(t, 1, tr.R2, 1e-9)
	assert.Equal(t, "improving", tr.direction())

	assert.Equal(t, "unknown", fitTrend(nil).direction())
	flat := fitTrend([]Session{
		{Date: t0, Score: 60, Attended: true},
		{Date: t0.AddDate(0, 0, 7), Score: 60, Attended: true},
	})
	assert.Equal(t, "stable", flat.direction())
}

func TestAnalyzeBeneficiaryStatus(t *testing.T) {
	core := &fakeCore{}
	a := newTestAdapter(core)

	got, err := a.AnalyzeBeneficiaryStatus(context.Background(), "b1")
	require.NoError(t, err)

	assert.Equal(t, StatusModerate, got.Status)
	assert.Equal(t, "improving", got.Trend)
	assert.InDelta(t, 50, got.CurrentScore, 1e-9)
	assert.InDelta(t, 0.8, got.Attendance, 1e-9)
	assert.Equal(t, "scores are improving", got.Conclusion)
	assert.InDelta(t, 0.5*0.8+0.5*0.4, got.Confidence, 1e-9)

	assert.Equal(t, "inductive", core.method)
	assert.Len(t, core.evidence, 6, "one per session plus the trend")
	assert.Contains(t, core.evidence[2].Content, "missed")
	require.Len(t, core.learned, 1)
}

func TestAnalyzeWithoutSessions(t *testing.T) {
	r := NewMemoryRecords()
	r.AddBeneficiary(Beneficiary{ID: "b2", Name: "Jon"})
	core := &fakeCore{}
	a := NewAdapter(core, r, zerolog.Nop())

	got, err := a.AnalyzeBeneficiaryStatus(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, got.Status)
	assert.Empty(t, core.goal, "no reasoning without data")
}

func TestUnknownBeneficiary(t *testing.T) {
	a := newTestAdapter(&fakeCore{})
	_, err := a.AnalyzeBeneficiaryStatus(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrBeneficiaryNotFound)
	_, err = a.PredictBeneficiaryProgress(context.Background(), "nobody", 4)
	assert.ErrorIs(t, err, ErrBeneficiaryNotFound)
}

func TestSuggestRehabProgram(t *testing.T) {
	core := &fakeCore{}
	a := newTestAdapter(core)

	got, err := a.SuggestRehabProgram(context.Background(), "b1")
	require.NoError(t, err)

	assert.Equal(t, "physiotherapy", got.Program)
	assert.Equal(t, []string{"hydrotherapy"}, got.Alternatives)

	dc := core.decision
	assert.Equal(t, []string{"physiotherapy", "hydrotherapy", "strength training", "home exercise"}, dc.Options)
	require.Len(t, dc.Criteria, 3)
	assert.Equal(t, decision.Cost, dc.Criteria[2].Direction, "moderate progress keeps intensity as a cost")
	assert.InDelta(t, 0.475, dc.OptionAttributes["physiotherapy"]["effectiveness"], 1e-9, "observed mean replaces the prior")
	assert.InDelta(t, 0.60, dc.OptionAttributes["hydrotherapy"]["effectiveness"], 1e-9)
	assert.Equal(t, 2000.0, dc.Resources["budget"])
}

func TestPredictBeneficiaryProgress(t *testing.T) {
	core := &fakeCore{}
	a := newTestAdapter(core)

	got, err := a.PredictBeneficiaryProgress(context.Background(), "b1", 4)
	require.NoError(t, err)

	assert.InDelta(t, 55, got.CurrentScore, 1e-9)
	assert.InDelta(t, 75, got.PredictedScore, 1e-9)
	assert.InDelta(t, 5, got.WeeklyChange, 1e-9)
	assert.InDelta(t, 3, got.WeeksToGoal["g1"], 1e-9)
	assert.Equal(t, 0.0, got.WeeksToGoal["g2"])
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)

	assert.Equal(t, "walk without crutches and then climb stairs", core.plan.Goal)
	require.NotNil(t, core.plan.Deadline)
	assert.Equal(t, t0.AddDate(0, 0, 28), *core.plan.Deadline)
	assert.Equal(t, "plan-1", got.Plan.ID)

	_, err = a.PredictBeneficiaryProgress(context.Background(), "b1", 0)
	assert.Error(t, err)
}

func TestAdapterOverOrchestrator(t *testing.T) {
	cfg := config.Default()
	o, err := agent.New(cfg,
		agent.WithLogger(zerolog.Nop()),
		agent.WithMemoryBackends(memory.Backends{}),
		agent.WithClock(func() time.Time { return t0 }),
	)
	require.NoError(t, err)
	defer o.Close()

	a := newTestAdapter(o)
	ctx := context.Background()

	status, err := a.AnalyzeBeneficiaryStatus(ctx, "b1")
	require.NoError(t, err)
	assert.NotNil(t, status.Chain)

	suggestion, err := a.SuggestRehabProgram(ctx, "b1")
	require.NoError(t, err)
	assert.Contains(t, []string{"physiotherapy", "hydrotherapy", "strength training", "home exercise"}, suggestion.Program)

	pred, err := a.PredictBeneficiaryProgress(ctx, "b1", 8)
	require.NoError(t, err)
	require.NotNil(t, pred.Plan)
	assert.NotEmpty(t, pred.Plan.Steps)
}

func TestHTTPRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/beneficiaries/b1":
			json.NewEncoder(w).Encode(Beneficiary{ID: "b1", Name: "Amira", Condition: "stroke"})
		case "/beneficiaries/b1/sessions":
			json.NewEncoder(w).Encode([]Session{
				{ID: "late", Date: t0.AddDate(0, 0, 7), Score: 60, Attended: true},
				{ID: "early", Date: t0, Score: 50, Attended: true},
			})
		case "/beneficiaries/b1/goals":
			json.NewEncoder(w).Encode([]Goal{{ID: "g1", Description: "speak in sentences", TargetScore: 80}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rec := NewHTTPRecords(HTTPConfig{BaseURL: srv.URL + "/", Token: "secret", RequestsPerSecond: 100, Burst: 5}, zerolog.Nop())
	ctx := context.Background()

	b, err := rec.Beneficiary(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Amira", b.Name)

	sessions, err := rec.Sessions(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "early", sessions[0].ID)

	goals, err := rec.Goals(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	_, err = rec.Beneficiary(ctx, "missing")
	assert.ErrorIs(t, err, ErrBeneficiaryNotFound)
}
