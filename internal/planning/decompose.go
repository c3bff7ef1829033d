package planning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/textproc"
)

// task is a node of the decomposition tree. Leaves become plan steps.
type task struct {
	id         string
	name       string
	phase      string
	goalID     string
	sequential bool
	deps       []string // sibling ids this task waits for
	children   []*task
}

func (t *task) leaf() bool { return len(t.children) == 0 }

var templates = map[string][]string{
	"launch":   {"research the %s market", "develop the %s", "market the %s", "release the %s"},
	"build":    {"design the %s", "implement the %s", "test the %s", "deploy the %s"},
	"learn":    {"study %s fundamentals", "practice %s", "review %s progress", "assess %s mastery"},
	"organize": {"define the %s scope", "arrange %s logistics", "coordinate %s participants", "run the %s"},
	"write":    {"outline the %s", "draft the %s", "revise the %s", "publish the %s"},
	"hire":     {"define the %s role", "source %s candidates", "interview %s candidates", "onboard the %s"},
	"improve":  {"measure current %s", "identify %s bottlenecks", "apply %s improvements", "verify %s gains"},
}

var templateAliases = map[string]string{
	"release":  "launch",
	"ship":     "launch",
	"develop":  "build",
	"create":   "build",
	"study":    "learn",
	"master":   "learn",
	"organise": "organize",
	"host":     "organize",
	"recruit":  "hire",
	"optimize": "improve",
	"optimise": "improve",
}

// templateVerb maps a token to its template key
func templateVerb(tok string) string {
	for _, key := range sortedKeys(templates) {
		if textproc.MatchesKeyword(tok, key) {
			return key
		}
	}
	for _, alias := range sortedKeys(templateAliases) {
		if textproc.MatchesKeyword(tok, alias) {
			return templateAliases[alias]
		}
	}
	return ""
}

func sortedKeys[V interface{}](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// words that end a template object
var objectStops = map[string]bool{
	"by": true, "with": true, "before": true, "within": true, "under": true, "until": true,
	"for": true, "using": true, "in": true, "on": true, "at": true, "next": true,
}

var numericToken = regexp.MustCompile(`^[$€£]?[0-9][0-9,.\-]*[%k]?$`)

// matchTemplate finds the first templated verb and the object that follows it
func matchTemplate(text string) (string, string, bool) {
	tokens := textproc.Tokenize(text)
	for i, tok := range tokens {
		verb := templateVerb(tok)
		if verb == "" {
			continue
		}

		var object []string
		for _, w := range tokens[i+1:] {
			if objectStops[w] {
				break
			}
			if textproc.IsStopword(w) || numericToken.MatchString(w) {
				continue
			}
			object = append(object, w)
		}
		if len(object) == 0 {
			continue
		}
		return verb, strings.Join(object, " "), true
	}
	return "", "", false
}

var conjunction = regexp.MustCompile(`(?i)\s*;\s*|\s+and\s+|,\s+`)

// splitConjunctions splits compound goal text when every part is substantial
func splitConjunctions(text string) []string {
	parts := conjunction.Split(strings.TrimSpace(text), -1)
	if len(parts) < 2 {
		return nil
	}
	for _, p := range parts {
		if len(textproc.ContentWords(p)) < 2 {
			return nil
		}
	}
	return parts
}

// atomic reports whether a sub-goal needs no further decomposition
func atomic(text string) bool {
	return len(textproc.ContentWords(text)) <= 3
}

// decompose builds the decomposition tree for a goal. Medium and long
// horizons are split into sequential phases; resources add allocation tasks
// ahead of the functional work.
func (e *Engine) decompose(g Goal, horizon Horizon) *task {
	root := &task{id: "step", name: g.Description, goalID: g.ID, sequential: true}
	functional := e.expandGoal(g, "step-x", 1, "")
	allocations := e.allocations(g, "step-a")
	object := g.Description
	if _, obj, ok := matchTemplate(g.Description); ok {
		object = obj
	}

	if horizon == HorizonMedium || horizon == HorizonLong {
		initiation := &task{id: "step-1", name: "initiation", phase: "initiation", goalID: g.ID}
		initiation.children = append(initiation.children,
			&task{id: "step-1.1", name: "define scope and success criteria for " + object, phase: "initiation", goalID: g.ID})
		for i, a := range allocations {
			a.id = fmt.Sprintf("step-1.%d", i+2)
			a.phase = "initiation"
			initiation.children = append(initiation.children, a)
		}
		renumber(functional, "step-2")
		setPhase(functional, "execution")
		closure := &task{id: "step-3", name: "review outcomes of " + object, phase: "closure", goalID: g.ID}
		root.children = []*task{initiation, functional, closure}
		return root
	}

	if len(allocations) > 0 {
		group := &task{id: "step-1", name: "allocate resources", goalID: g.ID}
		for i, a := range allocations {
			a.id = fmt.Sprintf("step-1.%d", i+1)
			group.children = append(group.children, a)
		}
		renumber(functional, "step-2")
		root.children = []*task{group, functional}
		return root
	}
	renumber(functional, "step-1")
	root.children = []*task{functional}
	return root
}

// expandGoal applies dependency, conjunction and template decomposition
func (e *Engine) expandGoal(g Goal, id string, depth int, phase string) *task {
	t := &task{id: id, name: g.Description, goalID: g.ID, phase: phase}
	if depth > e.config.MaxDepth {
		return t
	}

	if len(g.SubGoals) > 0 {
		ids := make(map[string]string, len(g.SubGoals))
		for i, sg := range g.SubGoals {
			ids[sg.ID] = fmt.Sprintf("%s.%d", id, i+1)
		}
		for i, sg := range g.SubGoals {
			child := e.expandGoal(sg, fmt.Sprintf("%s.%d", id, i+1), depth+1, phase)
			for _, dep := range sg.Dependencies {
				if cid, ok := ids[dep]; ok {
					child.deps = append(child.deps, cid)
				}
			}
			t.children = append(t.children, child)
		}
		return t
	}
	return e.expandText(t, depth)
}

func (e *Engine) expandText(t *task, depth int) *task {
	if depth > e.config.MaxDepth || (depth > 1 && atomic(t.name)) {
		return t
	}
	if parts := splitConjunctions(t.name); parts != nil {
		for i, p := range parts {
			child := &task{id: fmt.Sprintf("%s.%d", t.id, i+1), name: p, goalID: t.goalID, phase: t.phase}
			t.children = append(t.children, e.expandText(child, depth+1))
		}
		return t
	}
	verb, object, ok := matchTemplate(t.name)
	if !ok {
		return t
	}
	t.sequential = true
	for i, pattern := range templates[verb] {
		child := &task{id: fmt.Sprintf("%s.%d", t.id, i+1), name: fmt.Sprintf(pattern, object), goalID: t.goalID, phase: t.phase}
		t.children = append(t.children, e.expandText(child, depth+1))
	}
	return t
}

// allocations returns one allocation task per goal resource, sorted by name
func (e *Engine) allocations(g Goal, prefix string) []*task {
	names := make([]string, 0, len(g.Resources))
	for name := range g.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*task, 0, len(names))
	for i, name := range names {
		out = append(out, &task{id: fmt.Sprintf("%s.%d", prefix, i+1), name: "allocate " + name, goalID: g.ID})
	}
	return out
}

// renumber rewrites ids under a new prefix, keeping sibling dependencies intact
func renumber(t *task, id string) {
	old := t.id
	t.id = id
	for i, c := range t.children {
		renumber(c, fmt.Sprintf("%s.%d", id, i+1))
	}
	for _, c := range t.children {
		for j, dep := range c.deps {
			if strings.HasPrefix(dep, old+".") {
				c.deps[j] = id + strings.TrimPrefix(dep, old)
			}
		}
	}
}

func setPhase(t *task, phase string) {
	t.phase = phase
	for _, c := range t.children {
		setPhase(c, phase)
	}
}

// subGoals converts the tree below the root into Goals
func subGoals(root *task) []Goal {
	out := make([]Goal, 0, len(root.children))
	for _, c := range root.children {
		out = append(out, c.goal())
	}
	return out
}

func (t *task) goal() Goal {
	g := Goal{
		ID:           t.id,
		Description:  t.name,
		Type:         GoalAchievement,
		Status:       GoalPending,
		Dependencies: append([]string(nil), t.deps...),
	}
	for _, c := range t.children {
		g.SubGoals = append(g.SubGoals, c.goal())
	}
	return g
}
