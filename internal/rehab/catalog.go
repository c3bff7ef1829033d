package rehab

import (
	"strings"

	"github.com/quantumflow/cognicore/internal/textproc"
)

type programProfile struct {
	effectiveness float64
	cost          float64
	intensity     float64
}

var programs = map[string]programProfile{
	"physiotherapy":            {0.75, 0.50, 0.60},
	"occupational therapy":     {0.70, 0.45, 0.50},
	"speech therapy":           {0.70, 0.40, 0.40},
	"hydrotherapy":             {0.60, 0.55, 0.35},
	"cognitive rehabilitation": {0.65, 0.45, 0.45},
	"strength training":        {0.65, 0.25, 0.70},
	"home exercise":            {0.45, 0.10, 0.30},
	"intensive inpatient":      {0.85, 0.90, 0.90},
}

// conditionPrograms lists candidate programs per condition keyword
var conditionPrograms = []struct {
	keywords []string
	programs []string
}{
	{[]string{"stroke", "brain", "tbi"}, []string{"physiotherapy", "speech therapy", "cognitive rehabilitation", "intensive inpatient"}},
	{[]string{"aphasia", "speech", "dysarthria"}, []string{"speech therapy", "cognitive rehabilitation", "home exercise"}},
	{[]string{"fracture", "knee", "hip", "back", "spine", "injury"}, []string{"physiotherapy", "hydrotherapy", "strength training", "home exercise"}},
	{[]string{"arthritis", "joint"}, []string{"hydrotherapy", "physiotherapy", "home exercise"}},
}

var defaultPrograms = []string{"physiotherapy", "occupational therapy", "home exercise"}

// catalogFor returns the candidate programs for a condition
func catalogFor(condition string) []string {
	for _, c := range conditionPrograms {
		if textproc.ContainsAny(condition, c.keywords...) {
			return append([]string(nil), c.programs...)
		}
	}
	return append([]string(nil), defaultPrograms...)
}

// profileFor returns the catalog prior of a program. Unknown programs get a
// neutral profile.
func profileFor(program string) programProfile {
	if p, ok := programs[strings.ToLower(strings.TrimSpace(program))]; ok {
		return p
	}
	return programProfile{effectiveness: 0.5, cost: 0.5, intensity: 0.5}
}
