package creativity

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var stimuli = []struct {
	word        string
	association string
}{
	{"beehive", "many small contributors sharing one goal"},
	{"lighthouse", "a fixed beacon that guides from a distance"},
	{"orchestra", "roles that play in sync under one conductor"},
	{"origami", "a flat resource folded into new shapes"},
	{"relay race", "hand-offs between specialists"},
	{"library", "borrowing instead of owning"},
	{"garden", "slow growth that rewards regular care"},
	{"market stall", "small, visible, face-to-face exchange"},
	{"mirror", "showing people their own behaviour"},
	{"bridge", "connecting two groups that rarely meet"},
}

var scamperPrompts = []string{
	"substitute the usual %[2]s with a %[3]s one in %[1]s",
	"combine %[1]s with %[3]s",
	"adapt a %[3]s model from another field to %[1]s",
	"magnify the %[3]s aspect of %[1]s",
	"put %[1]s to use for %[3]s",
	"eliminate the %[2]s step from %[1]s",
	"reverse the order in which %[1]s happens, starting from %[3]s",
}

// generator produces ideas for one technique
type generator struct {
	space Space
	rng   *rand.Rand
	ideas []Idea
	next  int
}

func (g *generator) add(t Technique, desc string, attrs map[string]string) {
	g.next++
	g.ideas = append(g.ideas, Idea{
		ID:          fmt.Sprintf("idea-%d", g.next),
		Description: desc,
		Technique:   t,
		Attributes:  attrs,
	})
}

func (g *generator) pick(d Dimension) string {
	return d.Values[g.rng.IntN(len(d.Values))]
}

func (g *generator) randomDimension() Dimension {
	return g.space.Dimensions[g.rng.IntN(len(g.space.Dimensions))]
}

func (e *Engine) diverge(g *generator) {
	if len(g.space.Dimensions) == 0 {
		g.add(Brainstorm, "a fresh approach to "+g.space.Subject, nil)
		return
	}
	e.brainstorm(g)
	e.scamper(g)
	e.randomStimuli(g)
	e.forcedConnections(g)
	e.attributeListing(g)
	e.morphological(g)
}

// brainstorm walks dimension values round-robin from a random offset
func (e *Engine) brainstorm(g *generator) {
	var all [][2]string
	for _, d := range g.space.Dimensions {
		for _, v := range d.Values {
			all = append(all, [2]string{d.Name, v})
		}
	}
	offset := g.rng.IntN(len(all))
	for i := 0; i < e.config.BrainstormCount && i < len(all); i++ {
		dv := all[(offset+i*3)%len(all)]
		g.add(Brainstorm, fmt.Sprintf("a %s approach to %s", dv[1], g.space.Subject), map[string]string{dv[0]: dv[1]})
	}
}

func (e *Engine) scamper(g *generator) {
	for _, prompt := range scamperPrompts {
		d := g.randomDimension()
		v := g.pick(d)
		g.add(SCAMPER, fmt.Sprintf(prompt, g.space.Subject, d.Name, v), map[string]string{d.Name: v})
	}
}

func (e *Engine) randomStimuli(g *generator) {
	order := g.rng.Perm(len(stimuli))
	for i := 0; i < e.config.RandomStimuli && i < len(order); i++ {
		s := stimuli[order[i]]
		g.add(RandomStimuli, fmt.Sprintf("%s inspired by a %s: %s", g.space.Subject, s.word, s.association), nil)
	}
}

// forcedConnections links values of two different dimensions
func (e *Engine) forcedConnections(g *generator) {
	dims := g.space.Dimensions
	if len(dims) < 2 {
		return
	}
	for i := 0; i < len(dims); i++ {
		a, b := dims[i], dims[(i+1)%len(dims)]
		va, vb := g.pick(a), g.pick(b)
		g.add(ForcedConnection, fmt.Sprintf("%s that links %s with %s", g.space.Subject, va, vb),
			map[string]string{a.Name: va, b.Name: vb})
	}
}

// attributeListing changes one attribute of the subject per dimension
func (e *Engine) attributeListing(g *generator) {
	for _, d := range g.space.Dimensions {
		v := g.pick(d)
		g.add(AttributeListing, fmt.Sprintf("change the %s of %s to %s", d.Name, g.space.Subject, v), map[string]string{d.Name: v})
	}
}

// morphological draws whole configurations, one value per dimension
func (e *Engine) morphological(g *generator) {
	seen := make(map[string]bool)
	for i := 0; i < e.config.MorphologicalCount; i++ {
		attrs := make(map[string]string, len(g.space.Dimensions))
		values := make([]string, 0, len(g.space.Dimensions))
		for _, d := range g.space.Dimensions {
			v := g.pick(d)
			attrs[d.Name] = v
			values = append(values, v)
		}
		key := strings.Join(values, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		g.add(Morphological, fmt.Sprintf("%s as a %s solution", g.space.Subject, joinAnd(values)), attrs)
	}
}

func joinAnd(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	}
	return strings.Join(values[:len(values)-1], ", ") + " and " + values[len(values)-1]
}
