// Package config holds the cognicore configuration. It is loaded from
// ~/.cognicore/config.yaml and can be overridden by COGNICORE_ environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/logging"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
	"github.com/quantumflow/cognicore/internal/understanding"
	"github.com/quantumflow/cognicore/internal/workers"
)

// EnvPrefix prefixes every environment override, e.g. COGNICORE_LOGGING_LEVEL
const EnvPrefix = "COGNICORE"

// Config is the root configuration
type Config struct {
	Orchestrator  OrchestratorConfig  `mapstructure:"orchestrator" yaml:"orchestrator"`
	Understanding UnderstandingConfig `mapstructure:"understanding" yaml:"understanding"`
	Reasoning     ReasoningConfig     `mapstructure:"reasoning" yaml:"reasoning"`
	Decision      DecisionConfig      `mapstructure:"decision" yaml:"decision"`
	Planning      PlanningConfig      `mapstructure:"planning" yaml:"planning"`
	Creativity    CreativityConfig    `mapstructure:"creativity" yaml:"creativity"`
	Learning      LearningConfig      `mapstructure:"learning" yaml:"learning"`
	Memory        MemoryConfig        `mapstructure:"memory" yaml:"memory"`
	Workers       WorkersConfig       `mapstructure:"workers" yaml:"workers"`
	Audit         AuditConfig         `mapstructure:"audit" yaml:"audit"`
	Logging       logging.Config      `mapstructure:"logging" yaml:"logging"`
}

// OrchestratorConfig configures task intake and the cognitive cycle
type OrchestratorConfig struct {
	// CycleInterval is the period of the background cognitive cycle
	CycleInterval time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`

	// RequestsPerSecond gates Process when > 0
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`

	HistorySize           int           `mapstructure:"history_size" yaml:"history_size"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheSize             int           `mapstructure:"cache_size" yaml:"cache_size"`
	AutoExecuteConfidence float64       `mapstructure:"auto_execute_confidence" yaml:"auto_execute_confidence"`
	CommandQueueSize      int           `mapstructure:"command_queue_size" yaml:"command_queue_size"`

	// ReflectEvery writes a performance reflection every n cycle ticks
	ReflectEvery int `mapstructure:"reflect_every" yaml:"reflect_every"`
}

// UnderstandingConfig configures context understanding
type UnderstandingConfig struct {
	MinActivation float64 `mapstructure:"min_activation" yaml:"min_activation"`
	DistanceDecay float64 `mapstructure:"distance_decay" yaml:"distance_decay"`
	MaxConcepts   int     `mapstructure:"max_concepts" yaml:"max_concepts"`
}

// ReasoningConfig configures the reasoning engine
type ReasoningConfig struct {
	DefaultReliability float64 `mapstructure:"default_reliability" yaml:"default_reliability"`
	MaxCausalDepth     int     `mapstructure:"max_causal_depth" yaml:"max_causal_depth"`
	MaxIterations      int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	MinSupport         float64 `mapstructure:"min_support" yaml:"min_support"`
	SuccessThreshold   float64 `mapstructure:"success_threshold" yaml:"success_threshold"`
}

// DecisionConfig configures the decision engine
type DecisionConfig struct {
	Simulations          int                `mapstructure:"simulations" yaml:"simulations"`
	Exploration          float64            `mapstructure:"exploration" yaml:"exploration"`
	Seed                 uint64             `mapstructure:"seed" yaml:"seed"`
	EthicalFloor         float64            `mapstructure:"ethical_floor" yaml:"ethical_floor"`
	EthicsWeights        map[string]float64 `mapstructure:"ethics_weights" yaml:"ethics_weights"`
	DefaultRiskTolerance float64            `mapstructure:"default_risk_tolerance" yaml:"default_risk_tolerance"`
	CheckpointContinue   float64            `mapstructure:"checkpoint_continue" yaml:"checkpoint_continue"`
	CheckpointAbort      float64            `mapstructure:"checkpoint_abort" yaml:"checkpoint_abort"`
}

// PlanningConfig configures the planning engine
type PlanningConfig struct {
	MaxDepth            int           `mapstructure:"max_depth" yaml:"max_depth"`
	MaxExpansions       int           `mapstructure:"max_expansions" yaml:"max_expansions"`
	ReplanningThreshold float64       `mapstructure:"replanning_threshold" yaml:"replanning_threshold"`
	MaxAdaptations      int           `mapstructure:"max_adaptations" yaml:"max_adaptations"`
	StepCost            float64       `mapstructure:"step_cost" yaml:"step_cost"`
	MonitorInterval     time.Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
	Samples             int           `mapstructure:"samples" yaml:"samples"`
	Seed                uint64        `mapstructure:"seed" yaml:"seed"`
}

// CreativityConfig configures the creativity engine
type CreativityConfig struct {
	Seed             uint64  `mapstructure:"seed" yaml:"seed"`
	MaxIdeas         int     `mapstructure:"max_ideas" yaml:"max_ideas"`
	NoveltyThreshold float64 `mapstructure:"novelty_threshold" yaml:"novelty_threshold"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold" yaml:"cluster_threshold"`
	FeasibilityFloor float64 `mapstructure:"feasibility_floor" yaml:"feasibility_floor"`
}

// LearningConfig configures continual learning and consolidation
type LearningConfig struct {
	LearningRate          float64       `mapstructure:"learning_rate" yaml:"learning_rate"`
	EWCLambda             float64       `mapstructure:"ewc_lambda" yaml:"ewc_lambda"`
	ReplaySamples         int           `mapstructure:"replay_samples" yaml:"replay_samples"`
	Seed                  uint64        `mapstructure:"seed" yaml:"seed"`
	ConsolidationInterval time.Duration `mapstructure:"consolidation_interval" yaml:"consolidation_interval"`
	MergeThreshold        float64       `mapstructure:"merge_threshold" yaml:"merge_threshold"`
	PruneImportance       float64       `mapstructure:"prune_importance" yaml:"prune_importance"`
	CurriculumWindow      int           `mapstructure:"curriculum_window" yaml:"curriculum_window"`
	CurriculumAdvance     float64       `mapstructure:"curriculum_advance" yaml:"curriculum_advance"`
}

// MemoryConfig configures the memory arena and its optional mirrors
type MemoryConfig struct {
	WorkingCapacity     int    `mapstructure:"working_capacity" yaml:"working_capacity"`
	MaxEpisodes         int    `mapstructure:"max_episodes" yaml:"max_episodes"`
	MaxReflections      int    `mapstructure:"max_reflections" yaml:"max_reflections"`
	RedisURL            string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisPassword       string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB             int    `mapstructure:"redis_db" yaml:"redis_db"`
	DgraphURL           string `mapstructure:"dgraph_url" yaml:"dgraph_url"`
	BadgerPath          string `mapstructure:"badger_path" yaml:"badger_path"`
	RetentionDays       int    `mapstructure:"retention_days" yaml:"retention_days"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions" yaml:"embedding_dimensions"`
}

// WorkersConfig sizes the shared worker pool
type WorkersConfig struct {
	Workers       int `mapstructure:"workers" yaml:"workers"`
	QueueSize     int `mapstructure:"queue_size" yaml:"queue_size"`
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// AuditConfig configures the SQLite task log
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Default returns a working configuration with every mirror disabled
func Default() *Config {
	dec := decision.DefaultConfig()
	pl := planning.DefaultConfig()
	cr := creativity.DefaultConfig()
	le := learning.DefaultConfig()
	re := reasoning.DefaultConfig()
	un := understanding.DefaultConfig()
	mem := memory.DefaultConfig()
	wk := workers.DefaultConfig()

	return &Config{
		Orchestrator: OrchestratorConfig{
			CycleInterval:         time.Second,
			Burst:                 10,
			HistorySize:           100,
			CacheTTL:              5 * time.Minute,
			CacheSize:             256,
			AutoExecuteConfidence: 0.8,
			CommandQueueSize:      64,
			ReflectEvery:          10,
		},
		Understanding: UnderstandingConfig{
			MinActivation: un.MinActivation,
			DistanceDecay: un.DistanceDecay,
			MaxConcepts:   un.MaxConcepts,
		},
		Reasoning: ReasoningConfig{
			DefaultReliability: re.DefaultReliability,
			MaxCausalDepth:     re.MaxCausalDepth,
			MaxIterations:      re.MaxIterations,
			MinSupport:         re.MinSupport,
			SuccessThreshold:   re.SuccessThreshold,
		},
		Decision: DecisionConfig{
			Simulations:          dec.Simulations,
			Exploration:          dec.Exploration,
			Seed:                 dec.Seed,
			EthicalFloor:         dec.EthicalFloor,
			EthicsWeights:        dec.EthicsWeights,
			DefaultRiskTolerance: dec.DefaultRiskTolerance,
			CheckpointContinue:   dec.CheckpointContinue,
			CheckpointAbort:      dec.CheckpointAbort,
		},
		Planning: PlanningConfig{
			MaxDepth:            pl.MaxDepth,
			MaxExpansions:       pl.MaxExpansions,
			ReplanningThreshold: pl.ReplanningThreshold,
			MaxAdaptations:      pl.MaxAdaptations,
			StepCost:            pl.StepCost,
			Samples:             pl.Samples,
			Seed:                pl.Seed,
		},
		Creativity: CreativityConfig{
			Seed:             cr.Seed,
			MaxIdeas:         cr.MaxIdeas,
			NoveltyThreshold: cr.NoveltyThreshold,
			ClusterThreshold: cr.ClusterThreshold,
			FeasibilityFloor: cr.FeasibilityFloor,
		},
		Learning: LearningConfig{
			LearningRate:          le.LearningRate,
			EWCLambda:             le.EWCLambda,
			ReplaySamples:         le.ReplaySamples,
			Seed:                  le.Seed,
			ConsolidationInterval: le.ConsolidationInterval,
			MergeThreshold:        le.MergeThreshold,
			PruneImportance:       le.PruneImportance,
			CurriculumWindow:      le.CurriculumWindow,
			CurriculumAdvance:     le.CurriculumAdvance,
		},
		Memory: MemoryConfig{
			WorkingCapacity:     mem.WorkingCapacity,
			MaxEpisodes:         mem.MaxEpisodes,
			MaxReflections:      mem.MaxReflections,
			RetentionDays:       mem.RetentionDays,
			EmbeddingDimensions: mem.EmbeddingDimensions,
		},
		Workers: WorkersConfig{
			Workers:       wk.Workers,
			QueueSize:     wk.QueueSize,
			MaxConcurrent: wk.MaxConcurrent,
		},
		Audit: AuditConfig{
			Path: "~/.cognicore/audit.db",
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultPath returns ~/.cognicore/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cognicore", "config.yaml"), nil
}

// Load reads the configuration from the default path
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration at path, writing the defaults first
// when the file does not exist
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: COGNICORE_PLANNING_MAX_DEPTH
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Audit.Path = expandPath(cfg.Audit.Path)
	cfg.Memory.BadgerPath = expandPath(cfg.Memory.BadgerPath)
	return cfg, nil
}

// SaveToPath writes the configuration as yaml
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Watch reloads the file at path on every write and hands each valid
// configuration to fn. Invalid reloads are logged and skipped.
func Watch(path string, log zerolog.Logger, fn func(*Config)) error {
	path = expandPath(path)
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			log.Warn().Err(err).Str("file", ev.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", ev.Name).Msg("Config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	o := c.Orchestrator
	if o.CycleInterval <= 0 {
		return fmt.Errorf("orchestrator.cycle_interval must be positive")
	}
	if o.RequestsPerSecond < 0 {
		return fmt.Errorf("orchestrator.requests_per_second cannot be negative")
	}
	if o.RequestsPerSecond > 0 && o.Burst < 1 {
		return fmt.Errorf("orchestrator.burst must be at least 1 when rate limiting")
	}
	if o.HistorySize < 1 {
		return fmt.Errorf("orchestrator.history_size must be at least 1")
	}
	if err := unit("orchestrator.auto_execute_confidence", o.AutoExecuteConfidence); err != nil {
		return err
	}
	if o.ReflectEvery < 1 {
		return fmt.Errorf("orchestrator.reflect_every must be at least 1")
	}

	if c.Decision.Simulations < 1 {
		return fmt.Errorf("decision.simulations must be at least 1")
	}
	if err := unit("decision.ethical_floor", c.Decision.EthicalFloor); err != nil {
		return err
	}
	for name, w := range c.Decision.EthicsWeights {
		if w < 0 {
			return fmt.Errorf("decision.ethics_weights.%s cannot be negative", name)
		}
	}
	if c.Decision.CheckpointAbort > c.Decision.CheckpointContinue {
		return fmt.Errorf("decision.checkpoint_abort must not exceed checkpoint_continue")
	}

	if c.Planning.MaxDepth < 1 || c.Planning.MaxDepth > 20 {
		return fmt.Errorf("planning.max_depth must be between 1 and 20")
	}
	if err := unit("planning.replanning_threshold", c.Planning.ReplanningThreshold); err != nil {
		return err
	}
	if c.Planning.MaxAdaptations < 0 {
		return fmt.Errorf("planning.max_adaptations cannot be negative")
	}

	if c.Creativity.MaxIdeas < 1 {
		return fmt.Errorf("creativity.max_ideas must be at least 1")
	}
	if err := unit("creativity.novelty_threshold", c.Creativity.NoveltyThreshold); err != nil {
		return err
	}
	if err := unit("creativity.cluster_threshold", c.Creativity.ClusterThreshold); err != nil {
		return err
	}

	if c.Learning.LearningRate <= 0 || c.Learning.LearningRate > 1 {
		return fmt.Errorf("learning.learning_rate must be in (0, 1]")
	}
	if c.Learning.EWCLambda < 0 {
		return fmt.Errorf("learning.ewc_lambda cannot be negative")
	}
	if c.Learning.ConsolidationInterval <= 0 {
		return fmt.Errorf("learning.consolidation_interval must be positive")
	}
	if err := unit("learning.merge_threshold", c.Learning.MergeThreshold); err != nil {
		return err
	}

	if c.Memory.WorkingCapacity < 1 {
		return fmt.Errorf("memory.working_capacity must be at least 1")
	}
	if c.Memory.RetentionDays < 0 {
		return fmt.Errorf("memory.retention_days cannot be negative")
	}
	if c.Workers.Workers < 1 || c.Workers.MaxConcurrent < 1 {
		return fmt.Errorf("workers.workers and workers.max_concurrent must be at least 1")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	return nil
}

func unit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
