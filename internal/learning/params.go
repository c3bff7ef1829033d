package learning

import (
	"math"
	"sort"
	"strings"

	"github.com/quantumflow/cognicore/internal/models"
)

const sharedNamespace = "shared"

// param is one learned scalar. Anchor and Fisher are set when a later task
// type arrives; from then on every update is damped toward the anchor.
type param struct {
	value     float64
	anchor    float64
	fisher    float64
	gradSq    float64
	updates   int
	owner     models.TaskType
	protected bool
}

// paramStore holds parameters keyed "<namespace>/<name>". A namespace is a
// task type or the shared namespace. Callers hold the engine lock.
type paramStore struct {
	params map[string]*param
	lambda float64
}

func newParamStore(lambda float64) *paramStore {
	return &paramStore{params: make(map[string]*param), lambda: lambda}
}

func paramKey(ns, name string) string {
	return ns + "/" + name
}

func (s *paramStore) get(ns, name string) (float64, bool) {
	p, ok := s.params[paramKey(ns, name)]
	if !ok {
		return 0, false
	}
	return p.value, true
}

// create creates a parameter at v when it does not exist yet
func (s *paramStore) create(ns, name string, owner models.TaskType, v float64) bool {
	k := paramKey(ns, name)
	if _, ok := s.params[k]; ok {
		return false
	}
	s.params[k] = &param{value: v, anchor: v, owner: owner}
	return true
}

// update applies θ ← θ + α·g − α·λ·F·(θ−θ*). The penalty term is zero until
// the parameter has been anchored by snapshot.
func (s *paramStore) update(ns, name string, owner models.TaskType, grad, alpha float64) float64 {
	k := paramKey(ns, name)
	p, ok := s.params[k]
	if !ok {
		p = &param{owner: owner}
		s.params[k] = p
	}
	delta := alpha * grad
	if p.protected {
		delta -= alpha * s.lambda * p.fisher * (p.value - p.anchor)
	}
	p.value += delta
	p.gradSq += grad * grad
	p.updates++
	return p.value
}

// snapshot anchors every existing parameter at its current value and sets
// its Fisher importance to the mean squared gradient, floored at 0.1 for
// parameters that were ever updated. It returns the number anchored.
func (s *paramStore) snapshot() int {
	for _, p := range s.params {
		p.anchor = p.value
		if p.updates > 0 {
			p.fisher = math.Min(1, math.Max(0.1, p.gradSq/float64(p.updates)))
		} else {
			p.fisher = 0.1
		}
		p.protected = true
	}
	return len(s.params)
}

// namespace returns the parameters of ns keyed by name
func (s *paramStore) namespace(ns string) map[string]float64 {
	prefix := ns + "/"
	out := make(map[string]float64)
	for k, p := range s.params {
		if name, ok := strings.CutPrefix(k, prefix); ok {
			out[name] = p.value
		}
	}
	return out
}

func (s *paramStore) has(ns string) bool {
	prefix := ns + "/"
	for k := range s.params {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func (s *paramStore) protectedCount() int {
	n := 0
	for _, p := range s.params {
		if p.protected {
			n++
		}
	}
	return n
}

// names returns the names in ns with the given prefix, sorted
func (s *paramStore) names(ns, prefix string) []string {
	var out []string
	for name := range s.namespace(ns) {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
