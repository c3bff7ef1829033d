package models

import "time"

// TaskType defines the kind of work a task is routed to
type TaskType string

const (
	TaskTypeReasoning  TaskType = "reasoning"
	TaskTypeLearning   TaskType = "learning"
	TaskTypeDecision   TaskType = "decision"
	TaskTypeCreativity TaskType = "creativity"
	TaskTypePlanning   TaskType = "planning"
	TaskTypeGeneral    TaskType = "general"
)

// TaskTypes lists every task type in routing order
var TaskTypes = []TaskType{
	TaskTypePlanning,
	TaskTypeDecision,
	TaskTypeCreativity,
	TaskTypeLearning,
	TaskTypeReasoning,
	TaskTypeGeneral,
}

// Task represents a classified unit of work. It is immutable once dispatched.
type Task struct {
	ID                   string                 `json:"id"`
	Type                 TaskType               `json:"type"`
	Description          string                 `json:"description"`
	Priority             float64                `json:"priority"`
	Context              map[string]interface{} `json:"context,omitempty"`
	Deadline             *time.Time             `json:"deadline,omitempty"`
	RequiredCapabilities []string               `json:"required_capabilities,omitempty"`
	Fallback             bool                   `json:"fallback"` // classification fell back to reasoning
	CreatedAt            time.Time              `json:"created_at"`
}

// EvidenceKind classifies a piece of evidence
type EvidenceKind string

const (
	EvidenceObservation EvidenceKind = "observation"
	EvidenceFact        EvidenceKind = "fact"
	EvidenceRule        EvidenceKind = "rule"
)

// Evidence is a single input to reasoning
type Evidence struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Source      string       `json:"source,omitempty"`
	Kind        EvidenceKind `json:"kind"`
	Reliability float64      `json:"reliability"` // [0,1]
	Weight      float64      `json:"weight,omitempty"`
}

// Experience is one learning sample
type Experience struct {
	ID         string                 `json:"id"`
	TaskType   TaskType               `json:"task_type"`
	Input      string                 `json:"input"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Actions    []string               `json:"actions,omitempty"`
	Outcome    string                 `json:"outcome,omitempty"`
	Reward     float64                `json:"reward"`
	Success    bool                   `json:"success"`
	Importance float64                `json:"importance"`
	Mode       string                 `json:"mode,omitempty"`
	Features   map[string]float64     `json:"features,omitempty"`
	Label      string                 `json:"label,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Entity represents a semantic entity in the knowledge graph
type Entity struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Relationship represents a directed relationship between entities
type Relationship struct {
	ID         string  `json:"id"`
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
