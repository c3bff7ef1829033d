package agent

import (
	"time"

	"github.com/quantumflow/cognicore/internal/models"
	"github.com/quantumflow/cognicore/internal/textproc"
)

var (
	urgencyMarkers    = []string{"urgent", "asap", "immediately", "critical", "emergency", "now"}
	importanceMarkers = []string{"important", "crucial", "essential", "vital", "priority", "key"}
	softeners         = []string{"whenever", "someday", "eventually", "optional"}
)

const deadlineWindow = 7 * 24 * time.Hour

// Priority scores a task from its urgency and importance markers and how
// close its deadline is. The result is clamped to [0,1].
func Priority(input string, deadline *time.Time, now time.Time) float64 {
	tokens := textproc.Tokenize(input)
	p := 0.5
	if hasMarker(tokens, urgencyMarkers) {
		p += 0.3
	}
	if hasMarker(tokens, importanceMarkers) {
		p += 0.2
	}
	if deadline != nil && deadline.Sub(now) <= deadlineWindow {
		p += 0.1
	}
	if hasMarker(tokens, softeners) {
		p -= 0.1
	}
	return models.Clamp01(p)
}

func hasMarker(tokens, markers []string) bool {
	for _, t := range tokens {
		for _, m := range markers {
			if t == m {
				return true
			}
		}
	}
	return false
}
