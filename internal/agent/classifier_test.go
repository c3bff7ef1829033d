package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/models"
)

func TestRuleClassifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     models.TaskType
		fallback bool
	}{
		{"planning", "Plan the product launch timeline", models.TaskTypePlanning, false},
		{"decision", "Should I choose stocks or bonds", models.TaskTypeDecision, false},
		{"creativity", "Brainstorm ideas for a new logo", models.TaskTypeCreativity, false},
		{"learning", "Help me study and practice Spanish", models.TaskTypeLearning, false},
		{"reasoning", "Explain why the server crashed", models.TaskTypeReasoning, false},
		{"general", "Figure out the onboarding backlog", models.TaskTypeGeneral, false},
		{"higher score wins", "Plan which option to pick", models.TaskTypeDecision, false},
		{"tie keeps table order", "Schedule a time to decide", models.TaskTypePlanning, false},
		{"specialist beats general", "Solve this by making a plan", models.TaskTypePlanning, false},
		{"no match", "Tell me about the weather", models.TaskTypeReasoning, true},
	}

	c := NewRuleClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, err := c.Classify(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cl.Type)
			assert.Equal(t, tt.fallback, cl.Fallback)
			if tt.fallback {
				assert.Equal(t, 0.3, cl.Confidence)
				assert.Empty(t, cl.Matched)
			} else {
				assert.Greater(t, cl.Confidence, 0.5)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewRuleClassifier()
	first, err := c.Classify(context.Background(), "organize the team schedule")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Classify(context.Background(), "organize the team schedule")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"schedule", "organize"}, first.Matched)
}

func TestNormalizeTaskType(t *testing.T) {
	tests := []struct {
		in    string
		want  models.TaskType
		known bool
	}{
		{"planning", models.TaskTypePlanning, true},
		{" Decision ", models.TaskTypeDecision, true},
		{"plan", models.TaskTypePlanning, true},
		{"creative", models.TaskTypeCreativity, true},
		{"learn", models.TaskTypeLearning, true},
		{"general", models.TaskTypeGeneral, true},
		{"telepathy", models.TaskTypeReasoning, false},
		{"", models.TaskTypeReasoning, false},
	}
	for _, tt := range tests {
		got, known := normalizeTaskType(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.known, known, tt.in)
	}
}

func TestClassificationCache(t *testing.T) {
	now := t0
	c := NewClassificationCache(time.Minute, 2)
	defer c.Close()
	c.setClock(func() time.Time { return now })

	c.Set("Plan  the LAUNCH", Classification{Type: models.TaskTypePlanning})
	cl, ok := c.Get("plan the launch")
	require.True(t, ok)
	assert.Equal(t, models.TaskTypePlanning, cl.Type)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("plan the launch")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestClassificationCacheEvictsOldest(t *testing.T) {
	now := t0
	c := NewClassificationCache(time.Hour, 2)
	defer c.Close()
	c.setClock(func() time.Time { return now })

	c.Set("first", Classification{Type: models.TaskTypePlanning})
	now = now.Add(time.Second)
	c.Set("second", Classification{Type: models.TaskTypeDecision})
	now = now.Add(time.Second)
	c.Set("third", Classification{Type: models.TaskTypeLearning})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}
