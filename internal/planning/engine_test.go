package planning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func newTestEngine(cfg *Config) *Engine {
	e := NewEngine(cfg, zerolog.Nop())
	e.SetClock(func() time.Time { return now })
	return e
}

func launchGoal() Goal {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return Goal{
		Description: "Plan to launch a product by 2026-06-01 with $50,000 budget",
		Deadline:    &deadline,
		Resources:   map[string]float64{"budget": 50000},
	}
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestClassifyHorizon(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}
	tests := []struct {
		name     string
		deadline *time.Time
		want     Horizon
		atRisk   bool
	}{
		{"no deadline", nil, HorizonMedium, false},
		{"past", at(-time.Hour), HorizonImmediate, true},
		{"today", at(6 * time.Hour), HorizonImmediate, false},
		{"one day", at(day), HorizonImmediate, false},
		{"this week", at(5 * day), HorizonShort, false},
		{"this month", at(20 * day), HorizonMedium, false},
		{"thirty days", at(30 * day), HorizonMedium, false},
		{"later", at(45 * day), HorizonLong, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, atRisk := ClassifyHorizon(tt.deadline, now)
			assert.Equal(t, tt.want, h)
			assert.Equal(t, tt.atRisk, atRisk)
		})
	}
}

func TestLaunchPlan(t *testing.T) {
	e := newTestEngine(nil)
	goal := launchGoal()

	plan, err := e.CreatePlan(context.Background(), goal, "")
	require.NoError(t, err)

	assert.Equal(t, HorizonLong, plan.Horizon)
	assert.Equal(t, HTN, plan.Algorithm)
	assert.Equal(t, StatusReady, plan.Status)
	assert.Equal(t, 1, plan.Version)
	require.NotNil(t, plan.Goal.Deadline)
	assert.True(t, plan.Goal.Deadline.Equal(*goal.Deadline))
	assert.Equal(t, 50000.0, plan.EstimatedCost)
	assert.Equal(t, map[string]float64{"budget": 50000}, plan.Resources)

	assert.Equal(t, []string{
		"define scope and success criteria for product",
		"allocate budget",
		"research the product market",
		"develop the product",
		"market the product",
		"release the product",
		"review outcomes of product",
	}, stepNames(plan.Steps))
	assert.Equal(t, "initiation", plan.Steps[0].Phase)
	assert.Equal(t, "execution", plan.Steps[2].Phase)
	assert.Equal(t, "closure", plan.Steps[6].Phase)

	total := 0.0
	for _, s := range plan.Steps {
		total += s.Cost
	}
	assert.InDelta(t, 50000, total, 1e-6)

	// initiation steps run in parallel, execution is sequential
	assert.Equal(t, plan.Steps[0].Start, plan.Steps[1].Start)
	assert.Equal(t, []string{plan.Steps[2].ID}, plan.Steps[3].Dependencies)
	assert.GreaterOrEqual(t, plan.Steps[3].Start, plan.Steps[2].End)
	assert.True(t, plan.Schedule.End.Before(*goal.Deadline))
	assert.Greater(t, plan.EstimatedDuration, 100*day)

	require.Len(t, plan.Goal.SubGoals, 3)
	assert.Len(t, plan.Goal.SubGoals[1].SubGoals, 4)
	assert.NotEmpty(t, plan.Contingencies)
	assert.Greater(t, plan.Monitoring.Frequency, time.Duration(0))
	assert.InDelta(t, 0.8, plan.Confidence, 1e-9)
}

func TestPastDeadlineIsAtRisk(t *testing.T) {
	e := newTestEngine(nil)
	deadline := now.Add(-48 * time.Hour)
	plan, err := e.CreatePlan(context.Background(), Goal{Description: "organize the team offsite", Deadline: &deadline}, "")
	require.NoError(t, err)

	assert.Equal(t, HorizonImmediate, plan.Horizon)
	assert.Equal(t, StatusAtRisk, plan.Status)
	assert.Less(t, plan.Confidence, 0.8)
}

func TestConjunctionStepsRunInParallel(t *testing.T) {
	e := newTestEngine(nil)
	plan, err := e.CreatePlan(context.Background(), Goal{Description: "design the logo and write the launch copy"}, HorizonShort)
	require.NoError(t, err)

	require.Equal(t, []string{"design the logo", "write the launch copy"}, stepNames(plan.Steps))
	assert.Empty(t, plan.Steps[0].Dependencies)
	assert.Empty(t, plan.Steps[1].Dependencies)
	assert.Equal(t, time.Duration(0), plan.Steps[1].Start)
}

func TestDeclaredDependencies(t *testing.T) {
	e := newTestEngine(nil)
	goal := Goal{
		Description: "move office",
		SubGoals: []Goal{
			{ID: "pack", Description: "pack the boxes", Dependencies: []string{"lease"}},
			{ID: "lease", Description: "sign the lease"},
		},
	}
	plan, err := e.CreatePlan(context.Background(), goal, HorizonShort)
	require.NoError(t, err)

	require.Equal(t, []string{"sign the lease", "pack the boxes"}, stepNames(plan.Steps))
	assert.Equal(t, []string{plan.Steps[0].ID}, plan.Steps[1].Dependencies)
}

func TestEmptyGoal(t *testing.T) {
	_, err := newTestEngine(nil).CreatePlan(context.Background(), Goal{}, "")
	assert.ErrorIs(t, err, ErrEmptyGoal)
}

func coffeeRequest() Request {
	return Request{
		Goal:         Goal{Description: "make coffee", SuccessCriteria: []string{"have coffee"}},
		InitialState: []string{"have beans", "have water"},
		Actions: []Action{
			{Name: "buy coffee", Add: []string{"have coffee"}, Cost: 10},
			{Name: "grind beans", Preconditions: []string{"have beans"}, Add: []string{"have grounds"}, Delete: []string{"have beans"}, Cost: 1},
			{Name: "boil water", Preconditions: []string{"have water"}, Add: []string{"have hot water"}, Delete: []string{"have water"}, Cost: 1},
			{Name: "brew", Preconditions: []string{"have grounds", "have hot water"}, Add: []string{"have coffee"}, Cost: 1},
		},
	}
}

func TestSTRIPSFindsCheapestPlan(t *testing.T) {
	e := newTestEngine(nil)
	req := coffeeRequest()

	plan, err := e.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, STRIPS, plan.Algorithm)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "brew", plan.Steps[2].Name)

	facts, err := Replay(req.InitialState, plan.Steps)
	require.NoError(t, err)
	assert.Contains(t, facts, "have coffee")
	assert.NotContains(t, facts, "have beans")
}

func TestSTRIPSInfeasible(t *testing.T) {
	e := newTestEngine(nil)
	req := coffeeRequest()
	req.Goal.SuccessCriteria = []string{"have tea"}

	_, err := e.Plan(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanningInfeasible)

	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, STRIPS, infeasible.Algorithm)
	assert.Greater(t, infeasible.Explored, 0)
}

func TestSTRIPSCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(nil).Plan(ctx, coffeeRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func ladderRequest() Request {
	return Request{
		Goal:         Goal{Description: "paint the ceiling and the ladder", SuccessCriteria: []string{"ceiling painted", "ladder painted"}},
		Algorithm:    POP,
		InitialState: []string{"have ladder"},
		Actions: []Action{
			{Name: "paint ceiling", Preconditions: []string{"have ladder"}, Add: []string{"ceiling painted"}},
			{Name: "paint ladder", Add: []string{"ladder painted"}, Delete: []string{"have ladder"}},
		},
	}
}

func TestPOPResolvesThreatByPromotion(t *testing.T) {
	e := newTestEngine(nil)
	req := ladderRequest()

	plan, err := e.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, POP, plan.Algorithm)
	require.Equal(t, []string{"paint ceiling", "paint ladder"}, stepNames(plan.Steps))
	assert.Contains(t, plan.Steps[1].Dependencies, plan.Steps[0].ID)

	facts, err := Replay(req.InitialState, plan.Steps)
	require.NoError(t, err)
	assert.Contains(t, facts, "ceiling painted")
	assert.Contains(t, facts, "ladder painted")
}

func TestPOPInfeasible(t *testing.T) {
	req := ladderRequest()
	req.Goal.SuccessCriteria = append(req.Goal.SuccessCriteria, "walls painted")

	_, err := newTestEngine(nil).Plan(context.Background(), req)
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, POP, infeasible.Algorithm)
	assert.True(t, errors.Is(err, ErrPlanningInfeasible))
}

// sussmanRequest is the blocks-world anomaly: c sits on a, the goal
// stacks a on b on c
func sussmanRequest(algorithm Algorithm) Request {
	blocks := []string{"a", "b", "c"}
	var actions []Action
	for _, x := range blocks {
		for _, y := range blocks {
			if x == y {
				continue
			}
			actions = append(actions,
				Action{
					Name:          "unstack " + x + " from " + y,
					Preconditions: []string{"on " + x + " " + y, "clear " + x},
					Add:           []string{"on " + x + " table", "clear " + y},
					Delete:        []string{"on " + x + " " + y},
					Cost:          1,
				},
				Action{
					Name:          "stack " + x + " on " + y,
					Preconditions: []string{"on " + x + " table", "clear " + x, "clear " + y},
					Add:           []string{"on " + x + " " + y},
					Delete:        []string{"on " + x + " table", "clear " + y},
					Cost:          1,
				},
			)
		}
	}
	return Request{
		Goal:         Goal{Description: "stack a on b on c", SuccessCriteria: []string{"on a b", "on b c"}},
		Algorithm:    algorithm,
		InitialState: []string{"on c a", "on a table", "on b table", "clear c", "clear b"},
		Actions:      actions,
	}
}

func TestPOPFindsShortestPlan(t *testing.T) {
	e := newTestEngine(nil)

	for _, algorithm := range []Algorithm{STRIPS, POP} {
		req := sussmanRequest(algorithm)
		plan, err := e.Plan(context.Background(), req)
		require.NoError(t, err, algorithm)
		assert.Equal(t, []string{"unstack c from a", "stack b on c", "stack a on b"}, stepNames(plan.Steps), algorithm)

		facts, err := Replay(req.InitialState, plan.Steps)
		require.NoError(t, err, algorithm)
		assert.Contains(t, facts, "on a b")
		assert.Contains(t, facts, "on b c")
	}
}

func jointGoals() []Goal {
	return []Goal{
		{ID: "app", Description: "launch a mobile app", Priority: 0.9},
		{ID: "sales", Description: "hire a sales team", Priority: 0.5},
		{ID: "report", Description: "write the annual report", Priority: 0.2},
	}
}

func TestMultiObjectiveFrontier(t *testing.T) {
	e := newTestEngine(nil)
	plan, err := e.Plan(context.Background(), Request{Goals: jointGoals()})
	require.NoError(t, err)

	assert.Equal(t, MultiObjective, plan.Algorithm)
	assert.Contains(t, plan.Goal.Description, "launch a mobile app")
	require.NotEmpty(t, plan.Frontier)
	for i, a := range plan.Frontier {
		for j, b := range plan.Frontier {
			if i != j {
				assert.False(t, dominates(a, b), "%s dominates %s", a.Label, b.Label)
			}
		}
	}
}

func TestMultiObjectivePriorities(t *testing.T) {
	e := newTestEngine(nil)

	plan, err := e.Plan(context.Background(), Request{Goals: jointGoals(), Priorities: map[string]float64{"coverage": 1}})
	require.NoError(t, err)
	require.Len(t, plan.Goal.SubGoals, 3)
	for _, s := range plan.Steps {
		for _, d := range s.Dependencies {
			assert.Equal(t, s.ID[:3], d[:3], "parallel goals share no dependencies")
		}
	}

	plan, err = e.Plan(context.Background(), Request{Goals: jointGoals(), Priorities: map[string]float64{"cost": 1}})
	require.NoError(t, err)
	require.Len(t, plan.Goal.SubGoals, 2)
	assert.Equal(t, "app", plan.Goal.SubGoals[0].ID)
	assert.Equal(t, "sales", plan.Goal.SubGoals[1].ID)
}

func TestPermutations(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}, permutations(3))
	assert.Len(t, permutations(5), 120)
}

func TestNoDeviationNeverAdapts(t *testing.T) {
	e := newTestEngine(nil)
	var adapted int
	e.OnAdapted(func(Plan) { adapted++ })

	plan, err := e.CreatePlan(context.Background(), launchGoal(), "")
	require.NoError(t, err)

	for _, frac := range []float64{0.1, 0.5, 0.9} {
		dev, err := e.CheckDeviation(context.Background(), plan.ID, Metrics{
			Progress:  frac * 100,
			CostSpent: frac * plan.EstimatedCost,
			Elapsed:   time.Duration(frac * float64(plan.EstimatedDuration)),
		})
		require.NoError(t, err)
		assert.False(t, dev.Significant)
		assert.False(t, dev.Adapted)
	}

	got, err := e.Get(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, got.History)
	assert.Zero(t, adapted)
}

func TestDeviationAdaptsInPlace(t *testing.T) {
	e := newTestEngine(nil)
	var seen []Plan
	e.OnAdapted(func(p Plan) { seen = append(seen, p) })

	plan, err := e.CreatePlan(context.Background(), launchGoal(), "")
	require.NoError(t, err)

	dev, err := e.CheckDeviation(context.Background(), plan.ID, Metrics{
		Progress: 30,
		Elapsed:  plan.EstimatedDuration / 2,
	})
	require.NoError(t, err)
	assert.True(t, dev.Significant)
	assert.True(t, dev.Adapted)
	assert.InDelta(t, 0.4, dev.Shortfall, 1e-9)
	assert.Equal(t, 2, dev.Version)

	got, err := e.Get(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, StatusAdapted, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, stepNames(plan.Steps), stepNames(got.History[0]))
	require.Len(t, got.Steps, len(plan.Steps)+1)
	assert.Equal(t, StepCompleted, got.Steps[0].Status)
	assert.Equal(t, StepCompleted, got.Steps[1].Status)
	assert.Equal(t, "recovery", got.Steps[2].Phase)
	assert.InDelta(t, 50000, got.EstimatedCost, 1e-6)
	assert.GreaterOrEqual(t, got.Steps[3].Start, plan.EstimatedDuration/2)

	require.Len(t, seen, 1)
	assert.Equal(t, 2, seen[0].Version)
}

func TestAdaptationLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAdaptations = 1
	e := newTestEngine(cfg)

	plan, err := e.CreatePlan(context.Background(), launchGoal(), "")
	require.NoError(t, err)

	lagging := Metrics{Progress: 0, Elapsed: plan.EstimatedDuration / 2}
	dev, err := e.CheckDeviation(context.Background(), plan.ID, lagging)
	require.NoError(t, err)
	assert.True(t, dev.Adapted)

	dev, err = e.CheckDeviation(context.Background(), plan.ID, lagging)
	require.NoError(t, err)
	assert.True(t, dev.Significant)
	assert.False(t, dev.Adapted)
	assert.True(t, dev.LimitExceeded)
	assert.Equal(t, 2, dev.Version)
}

func TestStartMonitoring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorInterval = 5 * time.Millisecond
	e := newTestEngine(cfg)
	defer e.Close()

	var mu sync.Mutex
	versions := []int{}
	e.OnAdapted(func(p Plan) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, p.Version)
	})

	plan, err := e.CreatePlan(context.Background(), launchGoal(), "")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, plan.Monitoring.Frequency)

	source := MetricSourceFunc(func(ctx context.Context, id string) (Metrics, error) {
		return Metrics{Progress: 0, Elapsed: plan.EstimatedDuration / 2}, nil
	})
	require.NoError(t, e.StartMonitoring(context.Background(), plan.ID, source))
	assert.ErrorIs(t, e.StartMonitoring(context.Background(), plan.ID, source), ErrAlreadyMonitoring)

	assert.Eventually(t, func() bool {
		got, err := e.Get(plan.ID)
		return err == nil && got.Version == 1+cfg.MaxAdaptations
	}, time.Second, 5*time.Millisecond)

	e.StopMonitoring(plan.ID)
	assert.False(t, e.Monitoring(plan.ID))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 3, 4}, versions)
}

func TestMonitoringUnknownPlan(t *testing.T) {
	e := newTestEngine(nil)
	err := e.StartMonitoring(context.Background(), "missing", MetricSourceFunc(func(context.Context, string) (Metrics, error) {
		return Metrics{}, nil
	}))
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = e.CheckDeviation(context.Background(), "missing", Metrics{})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestGraph(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	g.AddNode("d")

	err := g.AddEdge("c", "a")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
	assert.False(t, g.HasCycle())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.True(t, g.Reaches("a", "c"))
	assert.False(t, g.Reaches("c", "a"))

	clone := g.Clone()
	require.NoError(t, clone.AddEdge("c", "d"))
	assert.Empty(t, g.Successors("c"))
	assert.Equal(t, []string{"c"}, clone.Predecessors("d"))
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("pop")
	require.NoError(t, err)
	assert.Equal(t, POP, a)

	_, err = ParseAlgorithm("graphplan")
	assert.Error(t, err)
}
