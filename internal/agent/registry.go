package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// taskRegistry tracks live tasks and a bounded history of finished ones
type taskRegistry struct {
	mu        sync.Mutex
	live      map[string]*TaskRecord
	history   []TaskRecord
	size      int
	completed int
	failed    int
}

func newTaskRegistry(size int) *taskRegistry {
	if size <= 0 {
		size = 100
	}
	return &taskRegistry{live: make(map[string]*TaskRecord), size: size}
}

func (r *taskRegistry) register(task models.Task, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[task.ID] = &TaskRecord{Task: task, Status: StatusPending, StartedAt: now}
}

func (r *taskRegistry) transition(id string, status TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.live[id]; ok {
		rec.Status = status
	}
}

// finish moves a live task into the history
func (r *taskRegistry) finish(id string, status TaskStatus, err error, now time.Time) TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.live[id]
	if !ok {
		return TaskRecord{}
	}
	delete(r.live, id)
	rec.Status = status
	rec.FinishedAt = now
	if err != nil {
		rec.Error = err.Error()
	}
	if status == StatusCompleted {
		r.completed++
	} else {
		r.failed++
	}

	r.history = append(r.history, *rec)
	if over := len(r.history) - r.size; over > 0 {
		r.history = append([]TaskRecord(nil), r.history[over:]...)
	}
	return *rec
}

// tasks returns the executing and the waiting tasks, highest priority first
func (r *taskRegistry) tasks() (active, queued []models.Task) {
	r.mu.Lock()
	for _, rec := range r.live {
		if rec.Status == StatusExecuting {
			active = append(active, rec.Task)
		} else {
			queued = append(queued, rec.Task)
		}
	}
	r.mu.Unlock()

	byPriority := func(ts []models.Task) {
		sort.Slice(ts, func(i, j int) bool {
			if ts[i].Priority != ts[j].Priority {
				return ts[i].Priority > ts[j].Priority
			}
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		})
	}
	byPriority(active)
	byPriority(queued)
	return active, queued
}

func (r *taskRegistry) counts() TaskCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := TaskCounts{Completed: r.completed, Failed: r.failed}
	for _, rec := range r.live {
		if rec.Status == StatusExecuting {
			c.Active++
		} else {
			c.Queued++
		}
	}
	return c
}

// recent returns up to n finished records, oldest first. n <= 0 returns all.
func (r *taskRegistry) recent(n int) []TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]TaskRecord(nil), h...)
}
