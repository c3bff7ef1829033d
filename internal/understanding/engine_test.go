package understanding

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/memory"
)

func newTestEngine() *Engine {
	return NewEngine(nil, nil, zerolog.Nop())
}

func TestUnderstandLaunchPlan(t *testing.T) {
	e := newTestEngine()
	m, err := e.Understand(context.Background(), "Plan to launch a product by 2026-06-01 with $50,000 budget", nil)
	require.NoError(t, err)

	deadline := m.Deadline()
	require.NotNil(t, deadline)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *deadline)

	budget, ok := m.Budget()
	require.True(t, ok)
	assert.Equal(t, 50000.0, budget)

	assert.Equal(t, "plan", m.PrimaryIntent())
	assert.True(t, m.HasIntent("time_pressure"))
	assert.True(t, m.HasIntent("resource_constraint"))

	f, ok := m.Frame("project_launch")
	require.True(t, ok)
	assert.Equal(t, "2026-06-01", f.Slots["deadline"])
	assert.Equal(t, "$50,000", f.Slots["budget"])

	assert.Contains(t, m.Lemmas(), "launch")
	assert.NotEmpty(t, m.Relationships)
	require.NotEmpty(t, m.Propositions)
	assert.Equal(t, "plan", m.Propositions[0].Action)
	assert.Equal(t, "product", m.Propositions[0].Patient)
	assert.Greater(t, m.Confidence, 0.5)
}

func TestRecognizeEntities(t *testing.T) {
	text := "Dr. Alice Smith joined Acme Corp on March 3, 2026 for 6 months at 12% growth and 50k dollars."
	mentions := recognize(text, []int{0})

	labels := make(map[string]string)
	for _, m := range mentions {
		labels[m.text] = m.label
	}
	assert.Equal(t, LabelOrg, labels["Acme Corp"])
	assert.Equal(t, LabelDate, labels["March 3, 2026"])
	assert.Equal(t, LabelDuration, labels["6 months"])
	assert.Equal(t, LabelPercent, labels["12%"])
	assert.Equal(t, LabelMoney, labels["50k dollars"])

	for _, m := range mentions {
		if m.label == LabelMoney {
			require.NotNil(t, m.number)
			assert.Equal(t, 50000.0, *m.number)
		}
	}
}

func TestParseMoney(t *testing.T) {
	cases := map[string]float64{
		"$50,000":      50000,
		"$1.5 million": 1.5e6,
		"20k dollars":  20000,
		"€300":         300,
	}
	for raw, want := range cases {
		got, ok := parseMoney(raw)
		require.True(t, ok, raw)
		assert.InDelta(t, want, got, 1e-6, raw)
	}
	_, ok := parseMoney("$abc")
	assert.False(t, ok)
}

func TestWordSense(t *testing.T) {
	e := newTestEngine()
	m, err := e.Understand(context.Background(), "We sat by the bank of the river to fish.", nil)
	require.NoError(t, err)
	assert.Equal(t, "river", m.Senses["bank"])

	m, err = e.Understand(context.Background(), "The bank approved my loan and account.", nil)
	require.NoError(t, err)
	assert.Equal(t, "finance", m.Senses["bank"])
}

func TestQuestionIntent(t *testing.T) {
	e := newTestEngine()
	m, err := e.Understand(context.Background(), "Why did sales drop?", nil)
	require.NoError(t, err)
	assert.Equal(t, "explain", m.PrimaryIntent())
	assert.True(t, m.HasIntent("seek_information"))

	_, ok := m.Frame("causation")
	assert.True(t, ok)
}

func TestCoreference(t *testing.T) {
	e := newTestEngine()
	m, err := e.Understand(context.Background(), "The product is late. It needs more testing.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, m.Coreferences)

	ante, ok := m.Element(m.Coreferences[0].Antecedent)
	require.True(t, ok)
	assert.Equal(t, "product", ante.Value)
}

func TestMergeMostRecentWins(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	first, err := e.Understand(ctx, "Launch the product with $50,000 budget", nil)
	require.NoError(t, err)
	second, err := e.Understand(ctx, "Actually the budget is $80,000", first)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.PreviousID)
	budget, ok := second.Budget()
	require.True(t, ok)
	assert.Equal(t, 80000.0, budget)
	assert.Len(t, second.Entities(LabelMoney), 1)

	require.Len(t, second.Conflicts, 1)
	assert.Equal(t, "$50,000", second.Conflicts[0].Previous.Value)

	// concepts from the earlier turn are carried over
	var sawLaunch bool
	for _, c := range second.Concepts() {
		if c.Value == "launch" {
			sawLaunch = true
		}
	}
	assert.True(t, sawLaunch)

	for _, r := range second.Relationships {
		_, fromOK := second.Element(r.From)
		_, toOK := second.Element(r.To)
		assert.True(t, fromOK && toOK, "relationship endpoints must exist")
	}
}

type fakeLinker map[string]memory.Concept

func (f fakeLinker) ConceptByName(name string) (memory.Concept, bool) {
	c, ok := f[name]
	return c, ok
}

func TestEntityLinking(t *testing.T) {
	linker := fakeLinker{"product": {ID: "concept-1", Name: "product", Confidence: 0.8}}
	e := NewEngine(nil, linker, zerolog.Nop())

	m, err := e.Understand(context.Background(), "Ship the product", nil)
	require.NoError(t, err)

	var linked string
	for _, el := range m.Concepts() {
		if el.Value == "product" {
			linked = el.LinkedID
		}
	}
	assert.Equal(t, "concept-1", linked)
}

func TestUnderstandCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine().Understand(ctx, "anything", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
