package reasoning

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(nil, zerolog.Nop())
}

func factEvidence(content string) models.Evidence {
	return models.Evidence{ID: content, Content: content, Kind: models.EvidenceFact, Reliability: 1}
}

func ruleEvidence(content string, reliability float64) models.Evidence {
	return models.Evidence{ID: content, Content: content, Kind: models.EvidenceRule, Reliability: reliability}
}

func observationEvidence(content string) models.Evidence {
	return models.Evidence{ID: content, Content: content, Kind: models.EvidenceObservation, Reliability: 1}
}

var weatherEvidence = []models.Evidence{
	factEvidence("it rains"),
	ruleEvidence("if it rains then the ground is wet", 0.9),
	ruleEvidence("if the ground is wet then the road is slippery", 0.8),
}

func TestDeductiveChain(t *testing.T) {
	e := newTestEngine()
	chain, err := e.Reason(context.Background(), "is the road slippery", weatherEvidence, nil)
	require.NoError(t, err)
	require.Len(t, chain.Nodes, 1)

	node := chain.Nodes[0]
	assert.Equal(t, Deductive, node.Type)
	assert.Equal(t, "the road is slippery", node.Conclusion)
	assert.InDelta(t, 0.72, node.Confidence, 1e-9)
	assert.Contains(t, node.Premises, "it rains")

	assert.True(t, chain.Consistent)
	assert.True(t, chain.Success)
	assert.InDelta(t, 0.72, chain.OverallConfidence, 1e-9)
	assert.Same(t, chain, e.LastChain())
}

func TestDeductiveConfidenceNeverExceedsWeakestRule(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	short, err := e.Reason(ctx, "is the road slippery", weatherEvidence, &Constraints{Method: Deductive})
	require.NoError(t, err)

	longer := append(append([]models.Evidence(nil), weatherEvidence...),
		ruleEvidence("if the road is slippery then accidents increase", 0.95))
	long, err := e.Reason(ctx, "will accidents increase", longer, &Constraints{Method: Deductive})
	require.NoError(t, err)

	assert.Equal(t, "accidents increase", long.Nodes[0].Conclusion)
	assert.LessOrEqual(t, long.Nodes[0].Confidence, short.Nodes[0].Confidence)
	assert.LessOrEqual(t, long.Nodes[0].Confidence, 0.8)
}

func TestContradictionFailsChain(t *testing.T) {
	e := newTestEngine()
	evidence := []models.Evidence{
		factEvidence("demand rises"),
		factEvidence("costs rise"),
		ruleEvidence("if demand rises then sales grow", 0.9),
		ruleEvidence("if costs rise then sales will not grow", 0.9),
	}
	chain, err := e.Reason(context.Background(), "will sales grow; will sales not grow", evidence, &Constraints{Method: Deductive})
	require.NoError(t, err)
	require.Len(t, chain.Nodes, 2)

	assert.Equal(t, "sales grow", chain.Nodes[0].Conclusion)
	assert.Equal(t, "sales will not grow", chain.Nodes[1].Conclusion)
	assert.False(t, chain.Consistent)
	assert.Len(t, chain.Contradictions, 1)
	assert.False(t, chain.Success)
	assert.InDelta(t, 0.45, chain.OverallConfidence, 1e-9)
}

func TestInductivePattern(t *testing.T) {
	e := newTestEngine()
	evidence := []models.Evidence{
		observationEvidence("the swan is white"),
		observationEvidence("another swan is white"),
		observationEvidence("a white swan swims"),
	}
	chain, err := e.Reason(context.Background(), "what pattern do swans follow", evidence, nil)
	require.NoError(t, err)

	node := chain.Nodes[0]
	assert.Equal(t, Inductive, node.Type)
	assert.Contains(t, node.Conclusion, "swan")
	assert.Contains(t, node.Conclusion, "white")
	assert.InDelta(t, 0.75, node.Confidence, 1e-9)
}

func TestAbductiveBestExplanation(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.AddCausalLink(CausalLink{Cause: "dead battery", Effect: "car won't start", Strength: 0.8}))
	require.NoError(t, e.AddRule(Rule{Antecedents: []string{"no fuel", "cold weather"}, Consequent: "car won't start", Reliability: 0.7}))

	chain, err := e.Reason(context.Background(), "diagnose the car that won't start", nil, nil)
	require.NoError(t, err)

	node := chain.Nodes[0]
	assert.Equal(t, Abductive, node.Type)
	assert.Equal(t, "best explanation: dead battery", node.Conclusion)
	assert.InDelta(t, 0.84, node.Confidence, 1e-9)
	assert.Len(t, node.Details["candidates"], 3)
}

func TestCausalAnalysis(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.AddCausalLink(CausalLink{Cause: "price increase", Effect: "sales drop", Strength: 0.8}))
	require.NoError(t, e.AddCausalLink(CausalLink{Cause: "supplier cost rise", Effect: "price increase", Strength: 0.9}))
	require.NoError(t, e.AddCausalLink(CausalLink{Cause: "sales drop", Effect: "layoffs", Strength: 0.5}))

	chain, err := e.Reason(context.Background(), "why did sales drop", nil, nil)
	require.NoError(t, err)

	node := chain.Nodes[0]
	assert.Equal(t, Causal, node.Type)
	assert.Equal(t, "sales drop is caused by price increase", node.Conclusion)
	assert.InDelta(t, 0.8, node.Confidence, 1e-9)

	causes := node.Details["causes"].(map[string]float64)
	assert.InDelta(t, 0.72, causes["supplier cost rise"], 1e-9)
	assert.Equal(t, []string{"supplier cost rise"}, node.Details["interventions"])
}

func TestCounterfactual(t *testing.T) {
	e := newTestEngine()
	evidence := []models.Evidence{
		factEvidence("it rained"),
		ruleEvidence("if it rained then the grass is wet", 0.9),
	}
	chain, err := e.Reason(context.Background(), "what if it had not rained", evidence, nil)
	require.NoError(t, err)

	node := chain.Nodes[0]
	assert.Equal(t, Counterfactual, node.Type)
	assert.Equal(t, []string{"the grass is wet"}, node.Details["lost"])
	assert.Contains(t, node.Conclusion, "would no longer follow")
	assert.InDelta(t, 0.9, node.Confidence, 1e-9)
}

func TestAnalogicalTransfer(t *testing.T) {
	e := newTestEngine()
	e.AddCase(Case{
		Name:       "solar system",
		Relations:  []string{"orbits", "attracts"},
		Attributes: map[string]string{"center": "sun"},
		Outcome:    "stable orbits",
	})
	e.AddCase(Case{Name: "stock market", Relations: []string{"trades"}})

	target := &Case{Name: "atom", Relations: []string{"orbits", "attracts"}, Attributes: map[string]string{"charge": "negative"}}
	chain, err := e.Reason(context.Background(), "model the atom", nil, &Constraints{Method: Analogical, Target: target})
	require.NoError(t, err)

	node := chain.Nodes[0]
	assert.Equal(t, "atom is analogous to solar system; expect stable orbits", node.Conclusion)
	assert.InDelta(t, 0.5, node.Confidence, 1e-9)
	assert.Equal(t, map[string]string{"center": "sun"}, node.Details["transferred"])
}

func TestMetacognitiveReviewUpdatesStats(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	_, err := e.Reason(ctx, "is the road slippery", weatherEvidence, nil)
	require.NoError(t, err)

	review, err := e.Reason(ctx, "review the reasoning", nil, nil)
	require.NoError(t, err)

	node := review.Nodes[0]
	assert.Equal(t, Metacognitive, node.Type)
	assert.Contains(t, node.Conclusion, "efficiency 1.00")
	assert.Empty(t, node.Details["biases"])

	stats := e.StrategyStats()
	assert.Equal(t, 1, stats[Deductive].Reviews)
	assert.Equal(t, 1, stats[Deductive].Uses)
	assert.Equal(t, 1, stats[Metacognitive].Uses)
}

func TestDetectBiases(t *testing.T) {
	prev := &Chain{
		FinalConclusion: "sales grow",
		Nodes: []Node{
			{Type: Deductive, Conclusion: "sales grow", Confidence: 0.95},
			{Type: Deductive, Conclusion: "hiring is frozen", Confidence: 0.6},
		},
	}
	assert.Equal(t, []string{"anchoring", "confirmation_bias", "overconfidence"}, detectBiases(prev))
}

func TestSelectStrategyFallsBackToBestRecord(t *testing.T) {
	e := newTestEngine()
	k := &knowledge{}
	assert.Equal(t, Deductive, e.selectStrategy("tell me something", k))

	e.stats[Inductive] = &StrategyStats{Uses: 2, TotalConfidence: 1.8}
	assert.Equal(t, Inductive, e.selectStrategy("tell me something", k))

	assert.Equal(t, Causal, e.selectStrategy("what caused the outage", k))
	assert.Equal(t, Counterfactual, e.selectStrategy("what if we hired more", k))
	assert.Equal(t, Analogical, e.selectStrategy("find a similar project", k))
}

func TestInconclusiveNodesNeverContradict(t *testing.T) {
	e := newTestEngine()
	evidence := []models.Evidence{factEvidence("demand rises")}
	chain, err := e.Reason(context.Background(), "will sales grow; will sales not grow", evidence, &Constraints{Method: Deductive})
	require.NoError(t, err)
	require.Len(t, chain.Nodes, 2)

	for _, n := range chain.Nodes {
		assert.True(t, n.Inconclusive, n.Conclusion)
	}
	assert.True(t, chain.Consistent)
	assert.Empty(t, chain.Contradictions)
	assert.InDelta(t, 0.2, chain.OverallConfidence, 1e-9)

	nodes := []Node{
		{ID: "a", Conclusion: "insufficient premises to deduce: sales grow", Inconclusive: true},
		{ID: "b", Conclusion: "insufficient premises to deduce: sales will not grow", Inconclusive: true},
		{ID: "c", Conclusion: "sales grow"},
		{ID: "d", Conclusion: "sales will not grow"},
	}
	assert.Equal(t, [][2]string{{"c", "d"}}, contradictions(nodes))
}

func TestAggregateGeometricMean(t *testing.T) {
	nodes := []Node{{Confidence: 0.81}, {Confidence: 0.25}}
	assert.InDelta(t, 0.45, aggregate(nodes, true), 1e-9)
	assert.InDelta(t, 0.225, aggregate(nodes, false), 1e-9)
	assert.Zero(t, aggregate(nil, true))
}

func TestDecompose(t *testing.T) {
	assert.Equal(t, []string{"gather data", "analyse it", "report"}, decompose("gather data; analyse it and then report"))
	assert.Equal(t, []string{"if it rains then the ground is wet"}, decompose("if it rains then the ground is wet"))
}

func TestReasonErrors(t *testing.T) {
	e := newTestEngine()
	_, err := e.Reason(context.Background(), "  ", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyGoal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Reason(ctx, "anything", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = ParseType("telepathic")
	assert.Error(t, err)
	typ, err := ParseType("Causal")
	require.NoError(t, err)
	assert.Equal(t, Causal, typ)

	assert.Error(t, e.AddRule(Rule{Consequent: "x"}))
}
