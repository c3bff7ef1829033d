package understanding

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/textproc"
)

// Linker resolves surface names against long-term semantic memory
type Linker interface {
	ConceptByName(name string) (memory.Concept, bool)
}

// Config holds context understanding configuration
type Config struct {
	MinActivation float64 // frames, schemas and scripts below this are not activated
	DistanceDecay float64 // relationship strength = 1 / (1 + decay*distance)
	MaxConcepts   int
	MaxConflicts  int
	KnowledgeBase KnowledgeBase
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MinActivation: 0.3,
		DistanceDecay: 0.2,
		MaxConcepts:   20,
		MaxConflicts:  50,
		KnowledgeBase: DefaultKnowledgeBase(),
	}
}

// Engine builds ContextModels from raw input
type Engine struct {
	config *Config
	linker Linker
	log    zerolog.Logger
	clock  func() time.Time
}

// NewEngine creates a context understanding engine. linker may be nil.
func NewEngine(config *Config, linker Linker, log zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.KnowledgeBase.Frames) == 0 {
		config.KnowledgeBase = DefaultKnowledgeBase()
	}
	return &Engine{config: config, linker: linker, log: log, clock: time.Now}
}

// SetClock overrides the time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

var intentRules = []struct {
	name     string
	keywords []string
}{
	{"plan", []string{"plan", "schedule", "organize", "roadmap", "prepare", "timeline", "milestone"}},
	{"decide", []string{"decide", "choose", "select", "pick", "compare", "option", "prefer"}},
	{"explain", []string{"why", "explain", "reason", "cause", "how", "because"}},
	{"create", []string{"create", "design", "invent", "brainstorm", "imagine", "idea", "innovate"}},
	{"learn", []string{"learn", "study", "remember", "practice", "teach", "memorize", "train"}},
}

var questionWords = textproc.Set([]string{"what", "why", "how", "when", "where", "who", "which", "should", "can", "could", "is", "are", "do", "does"})

var urgencyWords = []string{"urgent", "asap", "immediately", "now", "deadline", "today", "tomorrow"}

// Understand analyses input and, when previous is supplied, merges the result
// into it with most-recent-wins semantics.
func (e *Engine) Understand(ctx context.Context, input string, previous *ContextModel) (*ContextModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &ContextModel{
		ID:        uuid.New().String(),
		Input:     input,
		Senses:    make(map[string]string),
		CreatedAt: e.clock(),
	}

	starts := e.linguistic(m)
	lemmaSet := textproc.Set(m.Lemmas())

	mentions := recognize(input, starts)
	e.extractEntities(m, mentions, starts)
	e.extractConcepts(m)
	e.semantic(m, lemmaSet)
	e.resolveCoreference(m)
	e.link(m)
	e.intents(m)
	e.relate(m)
	e.activate(m, lemmaSet)
	m.Confidence = confidence(m)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if previous != nil {
		m = e.merge(previous, m)
	}

	e.log.Debug().
		Str("context_id", m.ID).
		Int("elements", len(m.Elements)).
		Int("frames", len(m.Frames)).
		Str("intent", m.PrimaryIntent()).
		Msg("context understood")

	return m, nil
}

// linguistic splits sentences, tokenises, lemmatises and tags. It returns the
// byte offset at which each sentence starts.
func (e *Engine) linguistic(m *ContextModel) []int {
	var starts []int
	text := m.Input
	begin := -1
	for i, r := range text {
		if begin < 0 {
			if unicode.IsSpace(r) {
				continue
			}
			begin = i
		}
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next >= len(text) || text[next] == ' ' || text[next] == '\n' || text[next] == '\t' {
				m.Sentences = append(m.Sentences, strings.TrimSpace(text[begin:next]))
				starts = append(starts, begin)
				begin = -1
			}
		}
	}
	if begin >= 0 && strings.TrimSpace(text[begin:]) != "" {
		m.Sentences = append(m.Sentences, strings.TrimSpace(text[begin:]))
		starts = append(starts, begin)
	}

	index := 0
	for si, s := range m.Sentences {
		for _, tok := range textproc.Tokenize(s) {
			lemma := textproc.Lemma(tok)
			m.Tokens = append(m.Tokens, Token{
				Text:     tok,
				Lemma:    lemma,
				POS:      posTag(tok, lemma),
				Sentence: si,
				Index:    index,
			})
			index++
		}
	}
	return starts
}

func sentenceOf(offset int, starts []int) int {
	s := 0
	for i, st := range starts {
		if offset >= st {
			s = i
		}
	}
	return s
}

func (e *Engine) extractEntities(m *ContextModel, mentions []mention, starts []int) {
	for _, mn := range mentions {
		pos := len(textproc.Tokenize(m.Input[:mn.start]))
		certainty := 0.9
		if mn.label == LabelProper || mn.label == LabelNumber {
			certainty = 0.6
		}
		m.Elements = append(m.Elements, ContextElement{
			ID:        uuid.New().String(),
			Type:      ElementEntity,
			Value:     mn.text,
			Label:     mn.label,
			Salience:  entitySalience(mn.label),
			Certainty: certainty,
			Sentence:  sentenceOf(mn.start, starts),
			Position:  pos,
			Time:      mn.time,
			Number:    mn.number,
		})
	}
}

func entitySalience(label string) float64 {
	switch label {
	case LabelDate, LabelMoney:
		return 0.9
	case LabelOrg, LabelPerson:
		return 0.8
	case LabelDuration, LabelPercent:
		return 0.7
	case LabelProper:
		return 0.6
	}
	return 0.4
}

// extractConcepts turns content nouns and verbs into concept elements
func (e *Engine) extractConcepts(m *ContextModel) {
	entityWords := make(map[string]bool)
	for _, el := range m.Elements {
		for _, w := range textproc.Tokenize(el.Value) {
			entityWords[w] = true
		}
	}

	counts := make(map[string]int)
	first := make(map[string]Token)
	for _, t := range m.Tokens {
		if t.POS != POSNoun && t.POS != POSVerb && t.POS != POSAdjective {
			continue
		}
		if textproc.IsStopword(t.Text) || entityWords[t.Text] || len(t.Lemma) < 3 {
			continue
		}
		if _, seen := first[t.Lemma]; !seen {
			first[t.Lemma] = t
		}
		counts[t.Lemma]++
	}

	lemmas := make([]string, 0, len(counts))
	for l := range counts {
		lemmas = append(lemmas, l)
	}
	sort.Slice(lemmas, func(i, j int) bool { return first[lemmas[i]].Index < first[lemmas[j]].Index })
	if len(lemmas) > e.config.MaxConcepts {
		lemmas = lemmas[:e.config.MaxConcepts]
	}

	total := float64(len(m.Tokens))
	for _, l := range lemmas {
		t := first[l]
		position := 1.0
		if total > 0 {
			position = 1 - float64(t.Index)/total*0.5
		}
		freq := math.Min(1, float64(counts[l])/3)
		m.Elements = append(m.Elements, ContextElement{
			ID:        uuid.New().String(),
			Type:      ElementConcept,
			Value:     l,
			Label:     t.POS,
			Salience:  0.5*position + 0.5*freq,
			Certainty: 0.7,
			Sentence:  t.Sentence,
			Position:  t.Index,
		})
	}
}

// semantic resolves word senses, labels roles and extracts propositions
func (e *Engine) semantic(m *ContextModel, lemmas map[string]bool) {
	for i := range m.Elements {
		el := &m.Elements[i]
		if el.Type != ElementConcept {
			continue
		}
		if s, ok := resolveSense(el.Value, lemmas); ok {
			el.Sense = s
			m.Senses[el.Value] = s
		}
	}

	bySentence := make(map[int][]Token)
	for _, t := range m.Tokens {
		bySentence[t.Sentence] = append(bySentence[t.Sentence], t)
	}

	for si := range m.Sentences {
		toks := bySentence[si]
		verbAt := -1
		for i, t := range toks {
			if t.POS == POSVerb && !auxiliary(t.Text) {
				verbAt = i
				break
			}
		}
		if verbAt < 0 {
			continue
		}

		p := Proposition{Action: toks[verbAt].Lemma, Sentence: si}
		for i := verbAt - 1; i >= 0; i-- {
			if textproc.IsNegation(toks[i].Text) {
				p.Negated = true
			}
			if p.Agent == "" && (toks[i].POS == POSNoun || toks[i].POS == POSPronoun) {
				p.Agent = toks[i].Text
			}
		}
		for i := verbAt + 1; i < len(toks); i++ {
			t := toks[i]
			if t.POS == POSVerb && p.Patient == "" {
				// "plan to launch a product": the infinitive's object is the patient
				continue
			}
			if p.Patient == "" && t.POS == POSNoun {
				p.Patient = t.Lemma
			}
			if t.POS == POSPreposition && i+1 < len(toks) {
				arg := nextArgument(toks[i+1:])
				switch t.Text {
				case "by", "before", "until", "on", "during", "within":
					if p.Time == "" {
						p.Time = arg
					}
				case "with", "using", "via":
					if p.Instrument == "" {
						p.Instrument = arg
					}
				}
			}
		}
		m.Propositions = append(m.Propositions, p)
	}
}

func auxiliary(w string) bool {
	switch w {
	case "is", "are", "was", "were", "be", "do", "does", "did", "have", "has", "had",
		"will", "should", "would", "can", "could", "must", "may", "might":
		return true
	}
	return false
}

// nextArgument joins tokens up to the next preposition or verb
func nextArgument(toks []Token) string {
	var parts []string
	for _, t := range toks {
		if t.POS == POSPreposition || t.POS == POSVerb {
			break
		}
		if t.POS == POSDeterminer {
			continue
		}
		parts = append(parts, t.Text)
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " ")
}

// resolveCoreference binds pronouns to the most recent compatible antecedent
func (e *Engine) resolveCoreference(m *ContextModel) {
	for _, t := range m.Tokens {
		var wantPerson bool
		switch t.Text {
		case "it", "its", "this", "that":
			wantPerson = false
		case "he", "him", "his", "she", "her", "they", "them", "their":
			wantPerson = true
		default:
			continue
		}

		best := -1
		for i, el := range m.Elements {
			if el.Position >= t.Index {
				continue
			}
			isAgent := el.Type == ElementEntity && (el.Label == LabelPerson || el.Label == LabelOrg || el.Label == LabelProper)
			compatible := isAgent == wantPerson
			if !wantPerson && el.Type == ElementEntity && el.Label == LabelNumber {
				compatible = false
			}
			if el.Type == ElementConcept && el.Label != POSNoun {
				compatible = false
			}
			if !compatible {
				continue
			}
			if best < 0 || el.Position > m.Elements[best].Position {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		m.Elements[best].Salience = math.Min(1, m.Elements[best].Salience+0.1)
		m.Coreferences = append(m.Coreferences, Coreference{
			Pronoun:    t.Text,
			Position:   t.Index,
			Antecedent: m.Elements[best].ID,
		})
	}
}

// link resolves elements against semantic memory
func (e *Engine) link(m *ContextModel) {
	if e.linker == nil {
		return
	}
	for i := range m.Elements {
		el := &m.Elements[i]
		if el.Type != ElementConcept && !(el.Type == ElementEntity && (el.Label == LabelOrg || el.Label == LabelPerson || el.Label == LabelProper)) {
			continue
		}
		if c, ok := e.linker.ConceptByName(el.Value); ok {
			el.LinkedID = c.ID
			el.Certainty = math.Min(1, el.Certainty+0.2*c.Confidence)
		}
	}
}

// intents scores the rule table, then adds implicit intents
func (e *Engine) intents(m *ContextModel) {
	type scored struct {
		name string
		hits int
	}
	var found []scored
	total := 0
	for _, rule := range intentRules {
		hits := 0
		for _, t := range m.Tokens {
			for _, kw := range rule.keywords {
				if textproc.MatchesKeyword(t.Text, kw) {
					hits++
					break
				}
			}
		}
		if hits > 0 {
			found = append(found, scored{rule.name, hits})
			total += hits
		}
	}

	question := strings.Contains(m.Input, "?")
	if len(m.Tokens) > 0 && questionWords[m.Tokens[0].Text] {
		question = true
	}
	if question {
		found = append(found, scored{"question", 1})
		total++
	}
	if len(found) == 0 && len(m.Tokens) > 0 {
		found = append(found, scored{"inform", 1})
		total = 1
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].hits > found[j].hits })
	for i, f := range found {
		kind := "secondary"
		if i == 0 {
			kind = "primary"
		}
		in := Intent{
			Name:      f.name,
			Kind:      kind,
			Salience:  float64(f.hits) / float64(total),
			Certainty: math.Min(1, 0.5+0.25*float64(f.hits)),
		}
		m.Intents = append(m.Intents, in)
		m.Elements = append(m.Elements, ContextElement{
			ID:        uuid.New().String(),
			Type:      ElementIntent,
			Value:     in.Name,
			Label:     in.Kind,
			Salience:  in.Salience,
			Certainty: in.Certainty,
		})
	}

	implicit := func(name string, certainty float64) {
		m.Intents = append(m.Intents, Intent{Name: name, Kind: "implicit", Salience: 0.5, Certainty: certainty})
	}
	if len(m.Entities(LabelDate)) > 0 || len(m.Entities(LabelDuration)) > 0 || textproc.ContainsAny(m.Input, urgencyWords...) {
		implicit("time_pressure", 0.7)
	}
	if len(m.Entities(LabelMoney)) > 0 {
		implicit("resource_constraint", 0.8)
	}
	if question {
		implicit("seek_information", 0.9)
	}
}

// relate links co-occurring entities and concepts within each sentence
func (e *Engine) relate(m *ContextModel) {
	var cands []ContextElement
	for _, el := range m.Elements {
		if el.Type == ElementEntity || el.Type == ElementConcept {
			cands = append(cands, el)
		}
	}

	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b := cands[i], cands[j]
			if a.Sentence != b.Sentence {
				continue
			}
			d := b.Position - a.Position
			if d < 0 {
				d = -d
			}
			m.Relationships = append(m.Relationships, Relationship{
				ID:       uuid.New().String(),
				From:     a.ID,
				To:       b.ID,
				Type:     relationType(a, b),
				Strength: 1 / (1 + e.config.DistanceDecay*float64(d)),
			})
		}
	}
}

func relationType(a, b ContextElement) string {
	switch {
	case a.Type == ElementEntity && b.Type == ElementEntity:
		return "co_occurs"
	case a.Type == ElementConcept && b.Type == ElementConcept:
		return "associated"
	}
	ent := a
	if b.Type == ElementEntity {
		ent = b
	}
	switch ent.Label {
	case LabelDate:
		return "deadline_of"
	case LabelMoney:
		return "budget_of"
	case LabelDuration:
		return "duration_of"
	}
	return "describes"
}

// activate matches the knowledge base and binds frame slots
func (e *Engine) activate(m *ContextModel, lemmas map[string]bool) {
	kb := e.config.KnowledgeBase
	for _, ft := range kb.Frames {
		a := activation(ft.Triggers, lemmas)
		if a < e.config.MinActivation {
			continue
		}
		f := Frame{Name: ft.Name, Activation: a, Slots: make(map[string]string)}
		for slot, label := range ft.Slots {
			if ents := m.Entities(label); len(ents) > 0 {
				f.Slots[slot] = ents[0].Value
			}
		}
		m.Frames = append(m.Frames, f)
	}
	for _, st := range kb.Schemas {
		if a := activation(st.Triggers, lemmas); a >= e.config.MinActivation {
			m.Schemas = append(m.Schemas, Schema{Name: st.Name, Activation: a, Expectations: append([]string(nil), st.Expectations...)})
		}
	}
	for _, sc := range kb.Scripts {
		if a := activation(sc.Triggers, lemmas); a >= e.config.MinActivation {
			m.Scripts = append(m.Scripts, Script{Name: sc.Name, Activation: a, Steps: append([]string(nil), sc.Steps...)})
		}
	}
	sort.SliceStable(m.Frames, func(i, j int) bool { return m.Frames[i].Activation > m.Frames[j].Activation })
	sort.SliceStable(m.Schemas, func(i, j int) bool { return m.Schemas[i].Activation > m.Schemas[j].Activation })
	sort.SliceStable(m.Scripts, func(i, j int) bool { return m.Scripts[i].Activation > m.Scripts[j].Activation })
}

func confidence(m *ContextModel) float64 {
	if len(m.Elements) == 0 {
		return 0.1
	}
	sum := 0.0
	for _, el := range m.Elements {
		sum += el.Certainty
	}
	c := 0.6 * sum / float64(len(m.Elements))
	if len(m.Frames) > 0 {
		c += 0.2 * m.Frames[0].Activation
	}
	for _, in := range m.Intents {
		if in.Kind == "primary" {
			c += 0.2 * in.Certainty
		}
	}
	return math.Min(1, c)
}
