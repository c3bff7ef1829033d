package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Revenue grew 12% in Q3, to $4.5M!")
	assert.Equal(t, []string{"revenue", "grew", "12%", "in", "q3", "to", "$4.5m"}, got)
	assert.Empty(t, Tokenize("  ... !! "))
	assert.Equal(t, []string{"don't", "re-run"}, Tokenize("Don't re-run."))
}

func TestLemma(t *testing.T) {
	cases := map[string]string{
		"planning":  "plan",
		"running":   "run",
		"filled":    "fill",
		"companies": "company",
		"boxes":     "box",
		"launches":  "launch",
		"tasks":     "task",
		"analysis":  "analysis",
		"status":    "status",
		"bus":       "bus",
		"goal":      "goal",
	}
	for in, want := range cases {
		assert.Equal(t, want, Lemma(in), in)
	}
}

func TestContentWords(t *testing.T) {
	assert.Equal(t, []string{"team", "plan"}, ContentWords("The teams are not planning"))
}

func TestMatchesKeyword(t *testing.T) {
	assert.True(t, MatchesKeyword("plan", "plan"))
	assert.True(t, MatchesKeyword("planning", "plan"))
	assert.True(t, MatchesKeyword("scheduled", "schedule"))
	assert.False(t, MatchesKeyword("planet", "plan"))
	assert.False(t, MatchesKeyword("an", "analyze"))
}

func TestHasWordAndContainsAny(t *testing.T) {
	assert.True(t, HasWord("Plans for the launches", "launch"))
	assert.True(t, HasWord("Plans for the launches", "plan"))
	assert.False(t, HasWord("Plans for the launches", "lunch"))

	assert.True(t, ContainsAny("Book a Flight to Oslo", "hotel", "flight"))
	assert.False(t, ContainsAny("Book a Flight to Oslo", "hotel"))
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, Jaccard("the cats sat", "a cat sat down"), 1e-9)
	assert.Equal(t, 1.0, Jaccard("budget review", "Budget reviews"))
	assert.Equal(t, 0.0, Jaccard("", ""))
	assert.Equal(t, 0.0, JaccardSets(Set([]string{"a"}), Set(nil)))
}

func TestPolarity(t *testing.T) {
	key, neg := Polarity("sales will not grow")
	assert.Equal(t, "grow sale", key)
	assert.True(t, neg)

	key2, neg2 := Polarity("Sales grow")
	assert.Equal(t, key, key2)
	assert.False(t, neg2)

	_, neg3 := Polarity("there is not no demand")
	assert.False(t, neg3, "double negation cancels")
}
