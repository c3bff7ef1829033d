package agent

import (
	"sync"
	"time"
)

// componentMetrics tracks calls into each engine
type componentMetrics struct {
	mu   sync.Mutex
	byID map[string]*ComponentMetrics
}

func newComponentMetrics() *componentMetrics {
	return &componentMetrics{byID: make(map[string]*ComponentMetrics)}
}

func (m *componentMetrics) record(component string, latency time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[component]
	if !ok {
		c = &ComponentMetrics{}
		m.byID[component] = c
	}
	c.Calls++
	if failed {
		c.Errors++
	}
	c.totalLatency += latency
	c.AverageLatency = c.totalLatency / time.Duration(c.Calls)
}

func (m *componentMetrics) snapshot() map[string]ComponentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ComponentMetrics, len(m.byID))
	for name, c := range m.byID {
		out[name] = *c
	}
	return out
}
