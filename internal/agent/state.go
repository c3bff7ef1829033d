package agent

import (
	"math"
	"sync"

	"github.com/quantumflow/cognicore/internal/models"
)

const (
	idleFocus       = "idle"
	maxDistractions = 3
)

// Attention is what the orchestrator is focused on
type Attention struct {
	Focus         []string `json:"focus"`
	Distractions  []string `json:"distractions"`
	Concentration float64  `json:"concentration_level"`
}

// Emotion is derived from valence and arousal
type Emotion struct {
	Primary   string  `json:"primary"`
	Intensity float64 `json:"intensity"`
	Valence   float64 `json:"valence"` // [-1,1]
	Arousal   float64 `json:"arousal"` // [0,1]
}

// CognitiveState is the shared attention, emotion and energy snapshot
type CognitiveState struct {
	Attention     Attention `json:"attention"`
	WorkingMemory []string  `json:"working_memory"`
	Emotion       Emotion   `json:"emotional_state"`
	Motivation    float64   `json:"motivation_level"`
	Energy        float64   `json:"energy_level"`
	Stress        float64   `json:"stress_level"`
}

// stateStore serialises every CognitiveState mutation
type stateStore struct {
	mu       sync.Mutex
	state    CognitiveState
	capacity int
}

func newStateStore(capacity int) *stateStore {
	if capacity <= 0 {
		capacity = 7
	}
	s := &stateStore{
		capacity: capacity,
		state: CognitiveState{
			Attention:  Attention{Focus: []string{idleFocus}, Concentration: 0.7},
			Emotion:    Emotion{Arousal: 0.3},
			Motivation: 0.7,
			Energy:     1,
			Stress:     0.2,
		},
	}
	s.state.Emotion.Primary, s.state.Emotion.Intensity = deriveEmotion(0, 0.3)
	return s
}

// Snapshot returns a deep copy
func (s *stateStore) Snapshot() CognitiveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Attention.Focus = append([]string(nil), s.state.Attention.Focus...)
	out.Attention.Distractions = append([]string(nil), s.state.Attention.Distractions...)
	out.WorkingMemory = append([]string(nil), s.state.WorkingMemory...)
	return out
}

// applyOutcome merges one finished task
func (s *stateStore) applyOutcome(task *models.Task, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state

	s.push(task.Description)
	if success {
		st.Motivation += 0.05
		st.Stress -= 0.05
		st.Emotion.Valence += 0.1
	} else {
		st.Motivation -= 0.05
		st.Stress += 0.1
		st.Emotion.Valence -= 0.15
	}
	st.Energy -= 0.05 * task.Priority
	st.Emotion.Arousal = 0.5*st.Emotion.Arousal + 0.5*task.Priority

	s.normalize()
}

// remember pushes one item into working memory
func (s *stateStore) remember(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(item)
}

// push appends to working memory, evicting the oldest items past capacity.
// Callers hold s.mu.
func (s *stateStore) push(item string) {
	st := &s.state
	st.WorkingMemory = append(st.WorkingMemory, item)
	if over := len(st.WorkingMemory) - s.capacity; over > 0 {
		st.WorkingMemory = append([]string(nil), st.WorkingMemory[over:]...)
	}
}

// focus sets the attention focus; others become distractions
func (s *stateStore) focus(focus string, others []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	st.Attention.Focus = []string{focus}
	for _, o := range others {
		if o != focus {
			st.Attention.Distractions = append(st.Attention.Distractions, o)
		}
	}
	st.Attention.Concentration = models.Clamp01(st.Energy*(1-0.5*st.Stress) - 0.05*float64(len(st.Attention.Distractions)))
}

// maintain recovers energy, decays stress and arousal and trims distractions
func (s *stateStore) maintain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	st.Energy += 0.02
	st.Stress *= 0.95
	st.Emotion.Arousal = 0.3 + (st.Emotion.Arousal-0.3)*0.9
	st.Emotion.Valence *= 0.98
	if n := len(st.Attention.Distractions); n > maxDistractions {
		st.Attention.Distractions = append([]string(nil), st.Attention.Distractions[n-maxDistractions:]...)
	}
	s.normalize()
}

func (s *stateStore) normalize() {
	st := &s.state
	st.Motivation = models.Clamp01(st.Motivation)
	st.Stress = models.Clamp01(st.Stress)
	st.Energy = models.Clamp01(st.Energy)
	st.Emotion.Arousal = models.Clamp01(st.Emotion.Arousal)
	st.Emotion.Valence = math.Max(-1, math.Min(1, st.Emotion.Valence))
	st.Emotion.Primary, st.Emotion.Intensity = deriveEmotion(st.Emotion.Valence, st.Emotion.Arousal)
}

// deriveEmotion maps the circumplex quadrant to a label. Intensity is the
// distance from the neutral point (0, 0.3).
func deriveEmotion(valence, arousal float64) (string, float64) {
	intensity := models.Clamp01(math.Hypot(valence, arousal-0.3) / math.Hypot(1, 0.7))
	switch {
	case valence >= 0.2 && arousal >= 0.5:
		return "excited", intensity
	case valence >= 0.2:
		return "content", intensity
	case valence <= -0.2 && arousal >= 0.5:
		return "anxious", intensity
	case valence <= -0.2:
		return "frustrated", intensity
	case arousal >= 0.7:
		return "alert", intensity
	}
	return "neutral", intensity
}
