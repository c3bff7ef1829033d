package agent

import (
	"context"
	"time"

	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
	"github.com/quantumflow/cognicore/internal/understanding"
	"github.com/quantumflow/cognicore/internal/workers"
)

// TaskStatus is a task's lifecycle state
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRouted    TaskStatus = "ROUTED"
	StatusExecuting TaskStatus = "EXECUTING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
)

// Classifier determines which engine a task is routed to
type Classifier interface {
	Classify(ctx context.Context, input string) (Classification, error)
}

// Classification represents a classification result
type Classification struct {
	Type       models.TaskType `json:"type"`
	Confidence float64         `json:"confidence"`
	Fallback   bool            `json:"fallback"`
	Matched    []string        `json:"matched,omitempty"`
}

// Result is everything Process produced for one task. Only the fields of
// the engines that ran are set.
type Result struct {
	Task      *models.Task                `json:"task"`
	Status    TaskStatus                  `json:"status"`
	Context   *understanding.ContextModel `json:"context"`
	Reasoning *reasoning.Chain            `json:"reasoning,omitempty"`
	Decision  *decision.Result            `json:"decision,omitempty"`
	Decisions []*decision.Result          `json:"decisions,omitempty"` // one per plan step, in step order
	Plan      *planning.Plan              `json:"plan,omitempty"`
	Creative  *creativity.Result          `json:"creative,omitempty"`
	Learning  *learning.Outcome           `json:"learning,omitempty"`
	Execution *decision.ExecutionReport   `json:"execution,omitempty"`
	Duration  time.Duration               `json:"duration"`
}

// TaskRecord is one entry of the task registry
type TaskRecord struct {
	Task       models.Task `json:"task"`
	Status     TaskStatus  `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// PlanInput is the planning call surface
type PlanInput struct {
	Goal        string             `json:"goal"`
	Deadline    *time.Time         `json:"deadline,omitempty"`
	Constraints []string           `json:"constraints,omitempty"`
	Resources   map[string]float64 `json:"resources,omitempty"`
	Horizon     planning.Horizon   `json:"horizon,omitempty"`
}

// ComponentMetrics counts calls into one engine
type ComponentMetrics struct {
	Calls          int64         `json:"calls"`
	Errors         int64         `json:"errors"`
	AverageLatency time.Duration `json:"average_latency"`
	totalLatency   time.Duration
}

// CycleStatus reports the cognitive cycle
type CycleStatus struct {
	Phase Phase `json:"phase"`
	Ticks int64 `json:"ticks"`
}

// TaskCounts summarises the task registry
type TaskCounts struct {
	Active    int `json:"active"`
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StatusSnapshot is the health report returned by Status
type StatusSnapshot struct {
	Uptime     time.Duration               `json:"uptime"`
	Cycle      CycleStatus                 `json:"cycle"`
	State      CognitiveState              `json:"state"`
	Components map[string]ComponentMetrics `json:"components"`
	Memory     memory.Stats                `json:"memory"`
	Tasks      TaskCounts                  `json:"tasks"`
	Workers    workers.Metrics             `json:"workers"`
	Goroutines int                         `json:"goroutines"`
	HeapAlloc  uint64                      `json:"heap_alloc"`
}
