package creativity

import (
	"errors"
	"time"
)

// ErrEmptyProblem is returned when a challenge has no problem statement
var ErrEmptyProblem = errors.New("creative challenge has no problem")

// Challenge is an open-ended problem to generate ideas for
type Challenge struct {
	Problem     string   `json:"problem"`
	Constraints []string `json:"constraints,omitempty"`
	Outcomes    []string `json:"outcomes,omitempty"` // desired outcomes
	Domain      string   `json:"domain,omitempty"`
}

// Dimension is one axis of a conceptual space
type Dimension struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Space is the conceptual space explored for a challenge
type Space struct {
	Domain     string      `json:"domain"`
	Subject    string      `json:"subject"`
	Dimensions []Dimension `json:"dimensions"`
	Boundaries []string    `json:"boundaries,omitempty"`
	Forbidden  []string    `json:"forbidden,omitempty"`
}

// Technique names how an idea was produced
type Technique string

const (
	Brainstorm       Technique = "brainstorm"
	SCAMPER          Technique = "scamper"
	RandomStimuli    Technique = "random_stimuli"
	ForcedConnection Technique = "forced_connection"
	AttributeListing Technique = "attribute_listing"
	Morphological    Technique = "morphological"
	Refinement       Technique = "refinement"
	Combination      Technique = "combination"
	Transformation   Technique = "transformation"
)

// DivergentTechniques lists the generators run in the divergent stage
var DivergentTechniques = []Technique{Brainstorm, SCAMPER, RandomStimuli, ForcedConnection, AttributeListing, Morphological}

// Mutation is a transformational operator
type Mutation string

const (
	MutateScale          Mutation = "scale"
	MutateContext        Mutation = "context"
	MutateReversal       Mutation = "assumption_reversal"
	MutateAbstraction    Mutation = "abstraction"
	MutateConcretization Mutation = "concretization"
)

// Mutations in the order they are applied
var Mutations = []Mutation{MutateScale, MutateContext, MutateReversal, MutateAbstraction, MutateConcretization}

// Idea is a candidate solution with its lineage
type Idea struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Technique   Technique         `json:"technique"`
	Mutation    Mutation          `json:"mutation,omitempty"`
	Parents     []string          `json:"parents,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"` // dimension -> value
	Feasibility float64           `json:"feasibility"`
}

// Scores rates an idea. Overall is novelty·value·feasibility.
type Scores struct {
	Novelty     float64 `json:"novelty"`
	Value       float64 `json:"value"`
	Feasibility float64 `json:"feasibility"`
	Originality float64 `json:"originality"`
	Elaboration float64 `json:"elaboration"`
	Flexibility float64 `json:"flexibility"`
	Overall     float64 `json:"overall"`
}

// Output is a scored idea
type Output struct {
	Idea
	Scores Scores `json:"scores"`
}

// Result is the outcome of one generation run
type Result struct {
	ID           string            `json:"id"`
	Challenge    Challenge         `json:"challenge"`
	Space        Space             `json:"space"`
	Outputs      []Output          `json:"outputs"`
	Generated    int               `json:"generated"`
	Feasible     int               `json:"feasible"`
	Clusters     int               `json:"clusters"`
	Combinations int               `json:"combinations"`
	Rejected     int               `json:"rejected"` // combinations failing the novelty test
	Mutations    int               `json:"mutations"`
	Techniques   map[Technique]int `json:"techniques"`
	CreatedAt    time.Time         `json:"created_at"`
	Duration     time.Duration     `json:"duration"`
}
