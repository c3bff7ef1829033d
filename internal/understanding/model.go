package understanding

import (
	"sort"
	"time"
)

// ElementType classifies a context element
type ElementType string

const (
	ElementEntity      ElementType = "entity"
	ElementConcept     ElementType = "concept"
	ElementIntent      ElementType = "intent"
	ElementProposition ElementType = "proposition"
)

// NER labels
const (
	LabelDate     = "DATE"
	LabelMoney    = "MONEY"
	LabelPercent  = "PERCENT"
	LabelDuration = "DURATION"
	LabelNumber   = "NUMBER"
	LabelOrg      = "ORG"
	LabelPerson   = "PERSON"
	LabelProper   = "PROPER"
)

// ContextElement is one unit of situational grounding
type ContextElement struct {
	ID        string      `json:"id"`
	Type      ElementType `json:"type"`
	Value     string      `json:"value"`
	Label     string      `json:"label,omitempty"` // NER label, concept POS or intent kind
	Salience  float64     `json:"salience"`
	Certainty float64     `json:"certainty"`
	Negated   bool        `json:"negated,omitempty"`
	Sentence  int         `json:"sentence"`
	Position  int         `json:"position"` // global token index
	LinkedID  string      `json:"linked_id,omitempty"`
	Sense     string      `json:"sense,omitempty"`
	Time      *time.Time  `json:"time,omitempty"`
	Number    *float64    `json:"number,omitempty"`
}

// Relationship links two elements of the same model
type Relationship struct {
	ID       string  `json:"id"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

// Token is an analysed word
type Token struct {
	Text     string `json:"text"`
	Lemma    string `json:"lemma"`
	POS      string `json:"pos"`
	Sentence int    `json:"sentence"`
	Index    int    `json:"index"`
}

// Proposition is an agent-action-patient triple with optional adjuncts
type Proposition struct {
	Agent      string `json:"agent,omitempty"`
	Action     string `json:"action"`
	Patient    string `json:"patient,omitempty"`
	Time       string `json:"time,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Negated    bool   `json:"negated,omitempty"`
	Sentence   int    `json:"sentence"`
}

// Coreference binds a pronoun to its antecedent element
type Coreference struct {
	Pronoun    string `json:"pronoun"`
	Position   int    `json:"position"`
	Antecedent string `json:"antecedent"` // element id
}

// Intent is a recognised communicative goal
type Intent struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"` // primary, secondary, implicit
	Salience  float64 `json:"salience"`
	Certainty float64 `json:"certainty"`
}

// Frame is an activated knowledge frame with bound slots
type Frame struct {
	Name       string            `json:"name"`
	Activation float64           `json:"activation"`
	Slots      map[string]string `json:"slots,omitempty"`
}

// Schema is an activated domain schema
type Schema struct {
	Name         string   `json:"name"`
	Activation   float64  `json:"activation"`
	Expectations []string `json:"expectations,omitempty"`
}

// Script is an activated event sequence
type Script struct {
	Name       string   `json:"name"`
	Activation float64  `json:"activation"`
	Steps      []string `json:"steps"`
}

// Conflict records an element superseded by a disagreeing newer one
type Conflict struct {
	Key      string         `json:"key"`
	Previous ContextElement `json:"previous"`
	Current  ContextElement `json:"current"`
}

// ContextModel is the structured understanding of one input, optionally
// merged with its predecessor.
type ContextModel struct {
	ID            string            `json:"id"`
	Input         string            `json:"input"`
	Sentences     []string          `json:"sentences"`
	Tokens        []Token           `json:"tokens"`
	Elements      []ContextElement  `json:"elements"`
	Relationships []Relationship    `json:"relationships"`
	Intents       []Intent          `json:"intents"`
	Propositions  []Proposition     `json:"propositions"`
	Coreferences  []Coreference     `json:"coreferences,omitempty"`
	Senses        map[string]string `json:"senses,omitempty"`
	Frames        []Frame           `json:"frames"`
	Schemas       []Schema          `json:"schemas"`
	Scripts       []Script          `json:"scripts"`
	Conflicts     []Conflict        `json:"conflicts,omitempty"`
	Confidence    float64           `json:"confidence"`
	PreviousID    string            `json:"previous_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Entities returns entity elements, optionally restricted to one NER label
func (m *ContextModel) Entities(label string) []ContextElement {
	var out []ContextElement
	for _, e := range m.Elements {
		if e.Type == ElementEntity && (label == "" || e.Label == label) {
			out = append(out, e)
		}
	}
	return out
}

// Concepts returns concept elements ordered by salience
func (m *ContextModel) Concepts() []ContextElement {
	var out []ContextElement
	for _, e := range m.Elements {
		if e.Type == ElementConcept {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Salience > out[j].Salience })
	return out
}

// Deadline returns the first resolved DATE entity
func (m *ContextModel) Deadline() *time.Time {
	for _, e := range m.Entities(LabelDate) {
		if e.Time != nil {
			t := *e.Time
			return &t
		}
	}
	return nil
}

// Budget returns the first MONEY amount
func (m *ContextModel) Budget() (float64, bool) {
	for _, e := range m.Entities(LabelMoney) {
		if e.Number != nil {
			return *e.Number, true
		}
	}
	return 0, false
}

// PrimaryIntent returns the name of the primary intent, or "" when none
func (m *ContextModel) PrimaryIntent() string {
	for _, in := range m.Intents {
		if in.Kind == "primary" {
			return in.Name
		}
	}
	return ""
}

// HasIntent reports whether an intent of any kind was recognised
func (m *ContextModel) HasIntent(name string) bool {
	for _, in := range m.Intents {
		if in.Name == name {
			return true
		}
	}
	return false
}

// Lemmas returns the lemma of every content token in order
func (m *ContextModel) Lemmas() []string {
	out := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		out = append(out, t.Lemma)
	}
	return out
}

// Frame returns an activated frame by name
func (m *ContextModel) Frame(name string) (Frame, bool) {
	for _, f := range m.Frames {
		if f.Name == name {
			return f, true
		}
	}
	return Frame{}, false
}

// Element returns an element by id
func (m *ContextModel) Element(id string) (ContextElement, bool) {
	for _, e := range m.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return ContextElement{}, false
}
