package memory

import (
	"context"
	"time"

	"github.com/quantumflow/cognicore/internal/models"
)

// View is the read-only face of the memory system handed to components
// that do not own it.
type View interface {
	// Working returns the current working-memory items, oldest first
	Working() []WorkingItem

	// Concept looks a concept up by id
	Concept(id string) (Concept, bool)

	// ConceptByName looks a concept up by its normalised name
	ConceptByName(name string) (Concept, bool)

	// Neighbors returns the outgoing relations of a concept
	Neighbors(id string) []Relation

	// Episodes returns episodes matching the filter, oldest first
	Episodes(filter EpisodeFilter) []Episode

	// Skill looks up a procedural skill by name
	Skill(name string) (Skill, bool)

	// Reflections returns the most recent reflections, newest first
	Reflections(limit int) []Reflection
}

// EpisodicStore mirrors episodes to durable storage (Redis)
type EpisodicStore interface {
	// Store upserts an episode
	Store(ctx context.Context, episode *Episode) error

	// Load returns every stored episode
	Load(ctx context.Context) ([]*Episode, error)

	// Delete removes an episode
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored episodes
	Count(ctx context.Context) (int64, error)

	// Close closes the store connection
	Close() error
}

// SemanticStore mirrors the concept graph to a graph database (Dgraph)
type SemanticStore interface {
	// StoreConcept upserts a concept node
	StoreConcept(ctx context.Context, concept *Concept) error

	// StoreRelation upserts a relation edge between two stored concepts
	StoreRelation(ctx context.Context, rel *Relation) error

	// Traverse performs graph traversal from a starting concept
	Traverse(ctx context.Context, startID string, depth int) ([]*Concept, error)

	// Close closes the store connection
	Close() error
}

// ProceduralStore mirrors skills, habits and routines (BadgerDB)
type ProceduralStore interface {
	// StoreSkill upserts a skill
	StoreSkill(ctx context.Context, skill *Skill) error

	// GetSkill retrieves a skill by name
	GetSkill(ctx context.Context, name string) (*Skill, error)

	// LoadSkills returns every stored skill
	LoadSkills(ctx context.Context) ([]*Skill, error)

	// Close closes the store
	Close() error
}

// EmbeddingGenerator creates vector embeddings for text
type EmbeddingGenerator interface {
	// Generate creates an embedding vector for text
	Generate(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector dimensionality
	Dimensions() int
}

// Backends groups the optional persistent mirrors. Nil fields are skipped.
type Backends struct {
	Episodic   EpisodicStore
	Semantic   SemanticStore
	Procedural ProceduralStore
}

// WorkingItem is one attention-weighted working-memory slot
type WorkingItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Attention float64   `json:"attention"`
	Source    string    `json:"source,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Episode is one stored experience
type Episode struct {
	ID           string                 `json:"id"`
	TaskType     models.TaskType        `json:"task_type"`
	Input        string                 `json:"input"`
	Context      map[string]interface{} `json:"context,omitempty"`
	Actions      []string               `json:"actions,omitempty"`
	Outcome      string                 `json:"outcome,omitempty"`
	Reward       float64                `json:"reward"`
	Importance   float64                `json:"importance"`
	Success      bool                   `json:"success"`
	Mode         string                 `json:"mode,omitempty"`
	Embedding    []float32              `json:"embedding,omitempty"`
	Consolidated bool                   `json:"consolidated"`
	Replays      int                    `json:"replays"`
	Merged       int                    `json:"merged"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// EpisodeFilter narrows an episode listing
type EpisodeFilter struct {
	TaskType      models.TaskType
	MinImportance float64
	Limit         int // most recent N when > 0
}

// Concept is a node in the semantic graph
type Concept struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Frequency  int               `json:"frequency"`
	Confidence float64           `json:"confidence"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Relation is a directed, typed edge between two concepts
type Relation struct {
	ID       string  `json:"id"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
	Count    int     `json:"count"`
}

// SkillKind separates skills from habits and routines
type SkillKind string

const (
	SkillKindSkill   SkillKind = "skill"
	SkillKindHabit   SkillKind = "habit"
	SkillKindRoutine SkillKind = "routine"
)

// Skill is a procedural memory entry
type Skill struct {
	Name        string          `json:"name"`
	Kind        SkillKind       `json:"kind"`
	TaskType    models.TaskType `json:"task_type"`
	Steps       []string        `json:"steps"`
	Proficiency float64         `json:"proficiency"`
	Uses        int             `json:"uses"`
	Successes   int             `json:"successes"`
	LastUsed    time.Time       `json:"last_used"`
}

// SuccessRate returns the fraction of successful uses
func (s Skill) SuccessRate() float64 {
	if s.Uses == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Uses)
}

// Reflection is a metacognitive journal entry
type Reflection struct {
	ID        string             `json:"id"`
	Topic     string             `json:"topic"`
	Insight   string             `json:"insight"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Stats contains memory system statistics
type Stats struct {
	WorkingCount    int       `json:"working_count"`
	WorkingCapacity int       `json:"working_capacity"`
	EpisodicCount   int       `json:"episodic_count"`
	SemanticCount   int       `json:"semantic_count"`
	RelationCount   int       `json:"relation_count"`
	ProceduralCount int       `json:"procedural_count"`
	ReflectionCount int       `json:"reflection_count"`
	PersistErrors   int64     `json:"persist_errors"`
	LastCompaction  time.Time `json:"last_compaction"`
}

// CompactionResult contains results from a compaction operation
type CompactionResult struct {
	Merged   int           `json:"merged"`
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration"`
}

// Config holds memory system configuration
type Config struct {
	WorkingCapacity int
	MaxEpisodes     int
	MaxReflections  int

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Dgraph configuration
	DgraphURL string

	// BadgerDB configuration
	BadgerPath string

	RetentionDays       int
	EmbeddingDimensions int
}

// DefaultConfig returns an in-memory configuration with no mirrors
func DefaultConfig() *Config {
	return &Config{
		WorkingCapacity:     7,
		MaxEpisodes:         10000,
		MaxReflections:      500,
		RetentionDays:       90,
		EmbeddingDimensions: 128,
	}
}
