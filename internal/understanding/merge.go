package understanding

import (
	"strings"
)

// singleValued labels describe one slot of the situation, so a new value
// supersedes the old one instead of sitting beside it.
var singleValued = map[string]bool{LabelDate: true, LabelMoney: true, LabelPercent: true}

// elementKey identifies "the same" element across models
func elementKey(el ContextElement) string {
	if el.Type == ElementEntity && singleValued[el.Label] {
		return string(el.Type) + ":" + el.Label
	}
	if el.Type == ElementIntent {
		return string(el.Type) + ":" + el.Value
	}
	return string(el.Type) + ":" + strings.ToLower(strings.Join(strings.Fields(el.Value), " "))
}

// merge folds current into previous. Elements are keyed by elementKey and
// the current model wins; a Conflict is recorded when the superseded element
// disagrees in value or polarity. Relationships, frames, schemas and scripts
// are unioned, with current entries replacing previous ones of the same name.
func (e *Engine) merge(previous, current *ContextModel) *ContextModel {
	out := *current
	out.PreviousID = previous.ID
	out.Senses = make(map[string]string, len(previous.Senses)+len(current.Senses))
	for k, v := range previous.Senses {
		out.Senses[k] = v
	}
	for k, v := range current.Senses {
		out.Senses[k] = v
	}

	currentByKey := make(map[string]ContextElement, len(current.Elements))
	for _, el := range current.Elements {
		currentByKey[elementKey(el)] = el
	}

	// previous ids superseded by a current element are remapped so that
	// carried-over relationships stay valid
	remap := make(map[string]string)
	var carried []ContextElement
	conflicts := append([]Conflict(nil), previous.Conflicts...)
	for _, old := range previous.Elements {
		key := elementKey(old)
		cur, ok := currentByKey[key]
		if !ok {
			// intents belong to the utterance that expressed them
			if old.Type != ElementIntent {
				carried = append(carried, old)
			}
			continue
		}
		remap[old.ID] = cur.ID
		if !strings.EqualFold(old.Value, cur.Value) || old.Negated != cur.Negated {
			conflicts = append(conflicts, Conflict{Key: key, Previous: old, Current: cur})
		}
	}
	if limit := e.config.MaxConflicts; limit > 0 && len(conflicts) > limit {
		conflicts = conflicts[len(conflicts)-limit:]
	}
	out.Conflicts = conflicts

	out.Elements = append(carried, current.Elements...)

	valid := make(map[string]bool, len(out.Elements))
	for _, el := range out.Elements {
		valid[el.ID] = true
	}
	seen := make(map[string]bool)
	var rels []Relationship
	addRel := func(r Relationship) {
		if id, ok := remap[r.From]; ok {
			r.From = id
		}
		if id, ok := remap[r.To]; ok {
			r.To = id
		}
		if r.From == r.To || !valid[r.From] || !valid[r.To] {
			return
		}
		k := r.From + "|" + r.Type + "|" + r.To
		if seen[k] {
			return
		}
		seen[k] = true
		rels = append(rels, r)
	}
	for _, r := range current.Relationships {
		addRel(r)
	}
	for _, r := range previous.Relationships {
		addRel(r)
	}
	out.Relationships = rels

	out.Frames = mergeFrames(previous.Frames, current.Frames)
	out.Schemas = mergeByName(previous.Schemas, current.Schemas, func(s Schema) string { return s.Name })
	out.Scripts = mergeByName(previous.Scripts, current.Scripts, func(s Script) string { return s.Name })

	out.Confidence = (current.Confidence*2 + previous.Confidence) / 3
	return &out
}

// mergeFrames keeps current frames first, filling unbound slots from the
// previous frame of the same name
func mergeFrames(previous, current []Frame) []Frame {
	prevByName := make(map[string]Frame, len(previous))
	for _, f := range previous {
		prevByName[f.Name] = f
	}

	out := make([]Frame, 0, len(previous)+len(current))
	used := make(map[string]bool)
	for _, f := range current {
		slots := make(map[string]string, len(f.Slots))
		if old, ok := prevByName[f.Name]; ok {
			for k, v := range old.Slots {
				slots[k] = v
			}
		}
		for k, v := range f.Slots {
			slots[k] = v
		}
		f.Slots = slots
		out = append(out, f)
		used[f.Name] = true
	}
	for _, f := range previous {
		if !used[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

func mergeByName[T interface{}](previous, current []T, name func(T) string) []T {
	out := append([]T(nil), current...)
	used := make(map[string]bool, len(current))
	for _, v := range current {
		used[name(v)] = true
	}
	for _, v := range previous {
		if !used[name(v)] {
			out = append(out, v)
		}
	}
	return out
}
