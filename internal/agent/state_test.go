package agent

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantumflow/cognicore/internal/models"
)

func TestWorkingMemoryIsBoundedFIFO(t *testing.T) {
	s := newStateStore(7)
	for i := 0; i < 12; i++ {
		s.applyOutcome(&models.Task{Description: fmt.Sprintf("task %d", i), Priority: 0.5}, true)
		assert.LessOrEqual(t, len(s.Snapshot().WorkingMemory), 7)
	}
	wm := s.Snapshot().WorkingMemory
	assert.Equal(t, "task 5", wm[0])
	assert.Equal(t, "task 11", wm[6])
}

func TestApplyOutcome(t *testing.T) {
	s := newStateStore(7)
	before := s.Snapshot()

	s.applyOutcome(&models.Task{Description: "ok", Priority: 1}, true)
	after := s.Snapshot()
	assert.Greater(t, after.Motivation, before.Motivation)
	assert.Less(t, after.Stress, before.Stress)
	assert.InDelta(t, 0.95, after.Energy, 1e-9)
	assert.InDelta(t, 0.65, after.Emotion.Arousal, 1e-9)

	for i := 0; i < 5; i++ {
		s.applyOutcome(&models.Task{Description: "fail", Priority: 0.9}, false)
	}
	failed := s.Snapshot()
	assert.Less(t, failed.Motivation, after.Motivation)
	assert.Greater(t, failed.Stress, after.Stress)
	assert.Less(t, failed.Emotion.Valence, 0.0)
	assert.Equal(t, "anxious", failed.Emotion.Primary)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStateStore(7)
	s.remember("alpha")
	snap := s.Snapshot()
	snap.WorkingMemory[0] = "mutated"
	snap.Attention.Focus[0] = "mutated"
	assert.Equal(t, []string{"alpha"}, s.Snapshot().WorkingMemory)
	assert.Equal(t, []string{"idle"}, s.Snapshot().Attention.Focus)
}

func TestMaintainRecoversAndTrims(t *testing.T) {
	s := newStateStore(7)
	s.applyOutcome(&models.Task{Description: "x", Priority: 1}, false)
	s.focus("main", []string{"a", "b", "c", "d", "e"})
	tired := s.Snapshot()

	s.maintain()
	rested := s.Snapshot()
	assert.Greater(t, rested.Energy, tired.Energy)
	assert.Less(t, rested.Stress, tired.Stress)
	assert.Equal(t, []string{"c", "d", "e"}, rested.Attention.Distractions)
	assert.Equal(t, []string{"main"}, rested.Attention.Focus)
}

func TestDeriveEmotion(t *testing.T) {
	tests := []struct {
		valence, arousal float64
		want             string
	}{
		{0.5, 0.8, "excited"},
		{0.5, 0.2, "content"},
		{-0.5, 0.8, "anxious"},
		{-0.5, 0.2, "frustrated"},
		{0, 0.9, "alert"},
		{0, 0.3, "neutral"},
	}
	for _, tt := range tests {
		got, intensity := deriveEmotion(tt.valence, tt.arousal)
		assert.Equal(t, tt.want, got)
		assert.GreaterOrEqual(t, intensity, 0.0)
		assert.LessOrEqual(t, intensity, 1.0)
	}
}

func TestPriority(t *testing.T) {
	now := t0
	soon := now.Add(3 * 24 * time.Hour)
	later := now.Add(60 * 24 * time.Hour)

	tests := []struct {
		name     string
		input    string
		deadline *time.Time
		want     float64
	}{
		{"base", "review the quarterly report", nil, 0.5},
		{"urgent", "urgent: restore the database", nil, 0.8},
		{"important", "an important customer call", nil, 0.7},
		{"urgent and important", "critical and essential fix", nil, 1.0},
		{"near deadline", "ship the release", &soon, 0.6},
		{"far deadline", "ship the release", &later, 0.5},
		{"softened", "eventually tidy the wiki", nil, 0.4},
		{"clamped", "urgent crucial fix asap", &soon, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Priority(tt.input, tt.deadline, now), 1e-9)
		})
	}
}
