package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// ErrUnknownMode is returned for a learning mode outside the closed set
var ErrUnknownMode = errors.New("unknown learning mode")

// Mode selects the mode-specific update path of Learn
type Mode string

const (
	Supervised     Mode = "supervised"
	Unsupervised   Mode = "unsupervised"
	Reinforcement  Mode = "reinforcement"
	SelfSupervised Mode = "self_supervised"
	MetaLearning   Mode = "meta_learning"
	Transfer       Mode = "transfer"
	MultiTask      Mode = "multi_task"
	Curriculum     Mode = "curriculum"
)

// Modes lists every learning mode
var Modes = []Mode{Supervised, Unsupervised, Reinforcement, SelfSupervised, MetaLearning, Transfer, MultiTask, Curriculum}

// ParseMode accepts the canonical names plus hyphenated and spaced spellings
func ParseMode(s string) (Mode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, m := range Modes {
		if string(m) == norm {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Outcome reports what one Learn call changed
type Outcome struct {
	ExperienceID string          `json:"experience_id"`
	EpisodeID    string          `json:"episode_id"`
	TaskType     models.TaskType `json:"task_type"`
	Mode         Mode            `json:"mode"`
	Concepts     int             `json:"concepts"`
	Skill        string          `json:"skill,omitempty"`
	NewSkill     bool            `json:"new_skill,omitempty"`

	// Forgetting protection, set when the task type was new
	NewTaskType bool `json:"new_task_type,omitempty"`
	Protected   int  `json:"protected,omitempty"` // parameters anchored
	Replayed    int  `json:"replayed,omitempty"`

	// Mode-specific results
	Prediction      string             `json:"prediction,omitempty"`
	Correct         bool               `json:"correct,omitempty"`
	Cluster         string             `json:"cluster,omitempty"`
	QValues         map[string]float64 `json:"q_values,omitempty"`
	PredictionError float64            `json:"prediction_error,omitempty"`
	LearningRate    float64            `json:"learning_rate"`
	TransferredFrom models.TaskType    `json:"transferred_from,omitempty"`
	Transferred     int                `json:"transferred,omitempty"`
	Level           int                `json:"level,omitempty"`
	Advanced        bool               `json:"advanced,omitempty"`
}

// ConsolidationReport summarises one consolidation pass
type ConsolidationReport struct {
	Merged       int           `json:"merged"`
	Reinforced   int           `json:"reinforced"`
	Pruned       int           `json:"pruned"`
	Rules        int           `json:"rules"`
	ReflectionID string        `json:"reflection_id"`
	At           time.Time     `json:"at"`
	Duration     time.Duration `json:"duration"`
}

// Stats contains learning engine statistics
type Stats struct {
	Experiences      int                     `json:"experiences"`
	ByMode           map[Mode]int            `json:"by_mode"`
	TaskTypes        []models.TaskType       `json:"task_types"`
	Parameters       int                     `json:"parameters"`
	Protected        int                     `json:"protected"`
	Replays          int                     `json:"replays"`
	Consolidations   int                     `json:"consolidations"`
	CurriculumLevel  map[models.TaskType]int `json:"curriculum_levels,omitempty"`
	LastConsolidated time.Time               `json:"last_consolidated"`
}
