// Package rehab answers rehabilitation questions about beneficiaries by
// composing the orchestrator's reasoning, decision, planning and learning
// calls over records fetched from an external store.
package rehab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrBeneficiaryNotFound is returned for unknown beneficiary ids
var ErrBeneficiaryNotFound = errors.New("beneficiary not found")

// Beneficiary is a person enrolled in rehabilitation
type Beneficiary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Condition string    `json:"condition"`
	Programs  []string  `json:"programs,omitempty"` // candidate programs
	Budget    float64   `json:"budget,omitempty"`
	Enrolled  time.Time `json:"enrolled"`
}

// Session is one therapy session. Score runs from 0 to 100.
type Session struct {
	ID            string    `json:"id"`
	BeneficiaryID string    `json:"beneficiary_id"`
	Date          time.Time `json:"date"`
	Program       string    `json:"program"`
	Score         float64   `json:"score"`
	Attended      bool      `json:"attended"`
	Notes         string    `json:"notes,omitempty"`
}

// Goal is a rehabilitation target
type Goal struct {
	ID            string     `json:"id"`
	BeneficiaryID string     `json:"beneficiary_id"`
	Description   string     `json:"description"`
	TargetScore   float64    `json:"target_score"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// Records is the external CRUD store
type Records interface {
	Beneficiary(ctx context.Context, id string) (*Beneficiary, error)
	Sessions(ctx context.Context, id string) ([]Session, error)
	Goals(ctx context.Context, id string) ([]Goal, error)
}

// MemoryRecords is an in-memory Records
type MemoryRecords struct {
	mu            sync.RWMutex
	beneficiaries map[string]Beneficiary
	sessions      map[string][]Session
	goals         map[string][]Goal
}

// NewMemoryRecords creates an empty store
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		beneficiaries: make(map[string]Beneficiary),
		sessions:      make(map[string][]Session),
		goals:         make(map[string][]Goal),
	}
}

// AddBeneficiary stores or replaces a beneficiary
func (m *MemoryRecords) AddBeneficiary(b Beneficiary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beneficiaries[b.ID] = b
}

// AddSession appends a session
func (m *MemoryRecords) AddSession(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.BeneficiaryID] = append(m.sessions[s.BeneficiaryID], s)
}

// AddGoal appends a goal
func (m *MemoryRecords) AddGoal(g Goal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[g.BeneficiaryID] = append(m.goals[g.BeneficiaryID], g)
}

func (m *MemoryRecords) Beneficiary(ctx context.Context, id string) (*Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.beneficiaries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, id)
	}
	return &b, nil
}

// Sessions returns the beneficiary's sessions, oldest first
func (m *MemoryRecords) Sessions(ctx context.Context, id string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.beneficiaries[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, id)
	}
	out := append([]Session(nil), m.sessions[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryRecords) Goals(ctx context.Context, id string) ([]Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.beneficiaries[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, id)
	}
	return append([]Goal(nil), m.goals[id]...), nil
}
