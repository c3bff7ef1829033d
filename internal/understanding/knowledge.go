package understanding

// FrameTemplate is a knowledge-base frame: trigger lemmas and the slots that
// NER labels can fill.
type FrameTemplate struct {
	Name     string
	Triggers []string
	Slots    map[string]string // slot name -> NER label
}

// SchemaTemplate is a domain schema with its default expectations
type SchemaTemplate struct {
	Name         string
	Triggers     []string
	Expectations []string
}

// ScriptTemplate is a stereotyped event sequence
type ScriptTemplate struct {
	Name     string
	Triggers []string
	Steps    []string
}

// KnowledgeBase holds the templates matched against each context
type KnowledgeBase struct {
	Frames  []FrameTemplate
	Schemas []SchemaTemplate
	Scripts []ScriptTemplate
}

// DefaultKnowledgeBase returns the built-in frames, schemas and scripts
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		Frames: []FrameTemplate{
			{
				Name:     "project_launch",
				Triggers: []string{"launch", "product", "release", "project", "market", "ship"},
				Slots:    map[string]string{"deadline": LabelDate, "budget": LabelMoney, "duration": LabelDuration},
			},
			{
				Name:     "choice",
				Triggers: []string{"choose", "decide", "option", "select", "pick", "between", "strategy", "compare"},
				Slots:    map[string]string{"deadline": LabelDate, "budget": LabelMoney},
			},
			{
				Name:     "investment",
				Triggers: []string{"invest", "investment", "stock", "bond", "portfolio", "return", "risk", "fund"},
				Slots:    map[string]string{"amount": LabelMoney, "horizon": LabelDuration, "rate": LabelPercent},
			},
			{
				Name:     "learning_activity",
				Triggers: []string{"learn", "study", "course", "practice", "skill", "train", "lesson"},
				Slots:    map[string]string{"deadline": LabelDate, "duration": LabelDuration},
			},
			{
				Name:     "creation",
				Triggers: []string{"create", "design", "build", "invent", "idea", "brainstorm", "imagine"},
				Slots:    map[string]string{"budget": LabelMoney, "deadline": LabelDate},
			},
			{
				Name:     "causation",
				Triggers: []string{"cause", "because", "why", "effect", "lead", "result", "due"},
				Slots:    map[string]string{"magnitude": LabelPercent},
			},
		},
		Schemas: []SchemaTemplate{
			{"business", []string{"company", "market", "customer", "revenue", "product", "sale", "launch"},
				[]string{"has_budget", "has_stakeholders", "has_competitors"}},
			{"finance", []string{"money", "invest", "stock", "bond", "budget", "cost", "return", "investment"},
				[]string{"has_risk", "has_return", "has_horizon"}},
			{"health", []string{"therapy", "session", "patient", "beneficiary", "rehab", "progress", "exercise", "recovery"},
				[]string{"has_baseline", "has_goals", "has_sessions"}},
			{"education", []string{"learn", "study", "course", "student", "teach", "exam", "skill"},
				[]string{"has_curriculum", "has_assessment"}},
			{"technology", []string{"software", "code", "system", "app", "data", "platform", "build"},
				[]string{"has_requirements", "has_architecture"}},
		},
		Scripts: []ScriptTemplate{
			{"product_launch", []string{"launch", "product", "release", "market"},
				[]string{"research", "develop", "market", "release"}},
			{"decision_making", []string{"decide", "choose", "option", "select", "pick"},
				[]string{"identify options", "evaluate options", "choose", "review outcome"}},
			{"learning_session", []string{"learn", "study", "practice", "course"},
				[]string{"set objective", "study material", "practice", "assess"}},
			{"therapy_session", []string{"therapy", "session", "rehab", "exercise", "beneficiary"},
				[]string{"assess status", "exercise", "record progress", "plan next session"}},
		},
	}
}

// activation is the trigger overlap, saturating after three hits
func activation(triggers []string, lemmas map[string]bool) float64 {
	hits := 0
	for _, t := range triggers {
		if lemmas[t] {
			hits++
		}
	}
	denom := len(triggers)
	if denom > 3 {
		denom = 3
	}
	if denom == 0 {
		return 0
	}
	a := float64(hits) / float64(denom)
	if a > 1 {
		a = 1
	}
	return a
}
