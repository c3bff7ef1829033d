package rehab

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantumflow/cognicore/internal/agent"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
)

// Core is the part of the orchestrator the adapter composes.
// *agent.Orchestrator satisfies it.
type Core interface {
	Reason(ctx context.Context, goal string, evidence []models.Evidence, method string) (*reasoning.Chain, error)
	DecideContext(ctx context.Context, dc decision.Context) (*decision.Result, error)
	Plan(ctx context.Context, in agent.PlanInput) (*planning.Plan, error)
	Learn(ctx context.Context, data interface{}, mode string) (*learning.Outcome, error)
}

// Status labels
const (
	StatusNoData         = "no_data"
	StatusGood           = "good"
	StatusModerate       = "moderate"
	StatusNeedsAttention = "needs_attention"
)

// recentSessions is how many sessions the current level is averaged over
const recentSessions = 3

// StatusAnalysis is the outcome of AnalyzeBeneficiaryStatus
type StatusAnalysis struct {
	BeneficiaryID string           `json:"beneficiary_id"`
	Status        string           `json:"status"`
	Trend         string           `json:"trend"`
	CurrentScore  float64          `json:"current_score"`
	Attendance    float64          `json:"attendance"`
	Confidence    float64          `json:"confidence"`
	Conclusion    string           `json:"conclusion"`
	Chain         *reasoning.Chain `json:"chain,omitempty"`
}

// ProgramSuggestion is the outcome of SuggestRehabProgram
type ProgramSuggestion struct {
	BeneficiaryID string           `json:"beneficiary_id"`
	Program       string           `json:"program"`
	Alternatives  []string         `json:"alternatives,omitempty"`
	Actions       []string         `json:"actions,omitempty"`
	Confidence    float64          `json:"confidence"`
	Decision      *decision.Result `json:"decision,omitempty"`
}

// ProgressPrediction is the outcome of PredictBeneficiaryProgress
type ProgressPrediction struct {
	BeneficiaryID  string             `json:"beneficiary_id"`
	Weeks          int                `json:"weeks"`
	CurrentScore   float64            `json:"current_score"`
	PredictedScore float64            `json:"predicted_score"`
	WeeklyChange   float64            `json:"weekly_change"`
	WeeksToGoal    map[string]float64 `json:"weeks_to_goal,omitempty"` // goal id -> weeks; absent when unreachable
	Confidence     float64            `json:"confidence"`
	Plan           *planning.Plan     `json:"plan,omitempty"`
}

// Adapter answers rehabilitation questions over Records
type Adapter struct {
	core    Core
	records Records
	log     zerolog.Logger
	clock   func() time.Time
}

// NewAdapter creates an adapter
func NewAdapter(core Core, records Records, log zerolog.Logger) *Adapter {
	return &Adapter{core: core, records: records, log: log, clock: time.Now}
}

// SetClock overrides the time source
func (a *Adapter) SetClock(clock func() time.Time) {
	a.clock = clock
}

// AnalyzeBeneficiaryStatus reasons inductively over the session history
func (a *Adapter) AnalyzeBeneficiaryStatus(ctx context.Context, id string) (*StatusAnalysis, error) {
	b, err := a.records.Beneficiary(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := a.records.Sessions(ctx, id)
	if err != nil {
		return nil, err
	}

	tr := fitTrend(sessions)
	out := &StatusAnalysis{
		BeneficiaryID: id,
		Status:        StatusNoData,
		Trend:         tr.direction(),
		CurrentScore:  currentScore(sessions),
		Attendance:    attendance(sessions),
	}
	if tr.N == 0 {
		out.Conclusion = "no attended sessions recorded"
		return out, nil
	}
	out.Status = statusFor(out.CurrentScore)

	chain, err := a.core.Reason(ctx, fmt.Sprintf("assess the rehabilitation status of %s", b.Name),
		sessionEvidence(b, sessions, tr), string(reasoning.Inductive))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", id, err)
	}
	out.Chain = chain
	out.Conclusion = chain.FinalConclusion
	out.Confidence = models.Clamp01(0.5*chain.OverallConfidence + 0.5*dataConfidence(tr.N))

	a.record(ctx, map[string]interface{}{
		"input":    fmt.Sprintf("%s status %s trend %s", b.Condition, out.Status, out.Trend),
		"label":    out.Status,
		"taskType": string(models.TaskTypeReasoning),
		"reward":   out.Confidence,
		"features": map[string]float64{"score": out.CurrentScore / 100, "attendance": out.Attendance},
	})

	a.log.Debug().Str("beneficiary", id).Str("status", out.Status).Str("trend", out.Trend).Msg("status analyzed")
	return out, nil
}

// SuggestRehabProgram decides among candidate programs on effectiveness,
// cost and intensity. Effectiveness is the observed mean score of programs
// with at least two attended sessions, else the catalog prior.
func (a *Adapter) SuggestRehabProgram(ctx context.Context, id string) (*ProgramSuggestion, error) {
	b, err := a.records.Beneficiary(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := a.records.Sessions(ctx, id)
	if err != nil {
		return nil, err
	}

	programs := b.Programs
	if len(programs) == 0 {
		programs = catalogFor(b.Condition)
	}
	observed := programScores(sessions)
	attrs := make(map[string]map[string]float64, len(programs))
	for _, p := range programs {
		prof := profileFor(p)
		if mean, ok := observed[strings.ToLower(p)]; ok {
			prof.effectiveness = mean / 100
		}
		attrs[p] = map[string]float64{
			"effectiveness": prof.effectiveness,
			"cost":          prof.cost,
			"intensity":     prof.intensity,
		}
	}

	// intensity counts in favour once the beneficiary needs attention
	intensity := decision.Cost
	if statusFor(currentScore(sessions)) == StatusNeedsAttention {
		intensity = decision.Benefit
	}
	dc := decision.Context{
		Situation: fmt.Sprintf("choose a rehabilitation program for %s with %s", b.Name, b.Condition),
		Options:   programs,
		Criteria: []decision.Criterion{
			{Name: "effectiveness", Weight: 0.5, Direction: decision.Benefit},
			{Name: "cost", Weight: 0.3, Direction: decision.Cost},
			{Name: "intensity", Weight: 0.2, Direction: intensity},
		},
		OptionAttributes: attrs,
		Stakeholders:     []string{b.Name},
		TimeHorizon:      decision.HorizonMedium,
	}
	if b.Budget > 0 {
		dc.Resources = map[string]float64{"budget": b.Budget}
	}

	r, err := a.core.DecideContext(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("suggest program for %s: %w", id, err)
	}
	out := &ProgramSuggestion{
		BeneficiaryID: id,
		Program:       r.SelectedOption.Name,
		Actions:       r.SelectedOption.Actions,
		Confidence:    r.Confidence,
		Decision:      r,
	}
	for _, alt := range r.Alternatives {
		out.Alternatives = append(out.Alternatives, alt.Name)
	}
	return out, nil
}

// PredictBeneficiaryProgress extrapolates the session trend weeks ahead and
// plans toward the beneficiary's goals
func (a *Adapter) PredictBeneficiaryProgress(ctx context.Context, id string, weeks int) (*ProgressPrediction, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("predict progress: weeks must be positive, got %d", weeks)
	}
	b, err := a.records.Beneficiary(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := a.records.Sessions(ctx, id)
	if err != nil {
		return nil, err
	}
	goals, err := a.records.Goals(ctx, id)
	if err != nil {
		return nil, err
	}

	tr := fitTrend(sessions)
	current := clampScore(tr.at(tr.LastWeek))
	out := &ProgressPrediction{
		BeneficiaryID:  id,
		Weeks:          weeks,
		CurrentScore:   current,
		PredictedScore: clampScore(tr.at(tr.LastWeek + float64(weeks))),
		WeeklyChange:   tr.Slope,
		WeeksToGoal:    map[string]float64{},
		Confidence:     0.2,
	}
	if tr.N >= 2 {
		out.Confidence = models.Clamp01(tr.R2 * dataConfidence(tr.N))
	}
	for _, g := range goals {
		switch {
		case current >= g.TargetScore:
			out.WeeksToGoal[g.ID] = 0
		case tr.Slope > 0:
			out.WeeksToGoal[g.ID] = math.Ceil((g.TargetScore-current)/tr.Slope*10) / 10
		}
	}

	deadline := a.clock().Add(time.Duration(weeks) * week)
	p, err := a.core.Plan(ctx, agent.PlanInput{
		Goal:     planGoal(b, goals),
		Deadline: &deadline,
		Resources: func() map[string]float64 {
			if b.Budget > 0 {
				return map[string]float64{"budget": b.Budget}
			}
			return nil
		}(),
	})
	if err != nil {
		return nil, fmt.Errorf("predict progress for %s: %w", id, err)
	}
	out.Plan = p
	return out, nil
}

// record feeds an outcome back for learning. Failures are logged only.
func (a *Adapter) record(ctx context.Context, data map[string]interface{}) {
	if _, err := a.core.Learn(ctx, data, ""); err != nil {
		a.log.Warn().Err(err).Msg("Failed to record rehabilitation outcome")
	}
}

func planGoal(b *Beneficiary, goals []Goal) string {
	if len(goals) == 0 {
		return fmt.Sprintf("maintain rehabilitation progress for %s", b.Name)
	}
	descs := make([]string, len(goals))
	for i, g := range goals {
		descs[i] = g.Description
	}
	return strings.Join(descs, " and then ")
}

func sessionEvidence(b *Beneficiary, sessions []Session, tr trend) []models.Evidence {
	ev := make([]models.Evidence, 0, len(sessions)+1)
	for _, s := range sessions {
		rel := 0.9
		content := fmt.Sprintf("%s scored %.0f in %s on %s", b.Name, s.Score, s.Program, s.Date.Format("2006-01-02"))
		if !s.Attended {
			rel = 0.5
			content = fmt.Sprintf("%s missed %s on %s", b.Name, s.Program, s.Date.Format("2006-01-02"))
		}
		ev = append(ev, models.Evidence{
			ID:          s.ID,
			Content:     content,
			Source:      "session",
			Kind:        models.EvidenceObservation,
			Reliability: rel,
		})
	}
	if tr.N >= 2 {
		ev = append(ev, models.Evidence{
			Content:     fmt.Sprintf("%s scores are %s by %.1f points per week", b.Name, tr.direction(), math.Abs(tr.Slope)),
			Source:      "trend",
			Kind:        models.EvidenceFact,
			Reliability: models.Clamp01(0.5 + 0.5*tr.R2),
		})
	}
	return ev
}

// currentScore averages the latest attended sessions
func currentScore(sessions []Session) float64 {
	var sum float64
	n := 0
	for i := len(sessions) - 1; i >= 0 && n < recentSessions; i-- {
		if sessions[i].Attended {
			sum += sessions[i].Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func attendance(sessions []Session) float64 {
	if len(sessions) == 0 {
		return 0
	}
	n := 0
	for _, s := range sessions {
		if s.Attended {
			n++
		}
	}
	return float64(n) / float64(len(sessions))
}

func statusFor(score float64) string {
	switch {
	case score >= 75:
		return StatusGood
	case score >= 50:
		return StatusModerate
	}
	return StatusNeedsAttention
}

// dataConfidence grows with the number of observations, saturating at ten
func dataConfidence(n int) float64 {
	return math.Min(1, float64(n)/10)
}

func programScores(sessions []Session) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, s := range sessions {
		if !s.Attended || s.Program == "" {
			continue
		}
		key := strings.ToLower(s.Program)
		sums[key] += s.Score
		counts[key]++
	}
	out := make(map[string]float64)
	for k, c := range counts {
		if c >= 2 {
			out[k] = sums[k] / float64(c)
		}
	}
	return out
}
