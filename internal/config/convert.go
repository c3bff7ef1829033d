package config

import (
	"github.com/quantumflow/cognicore/internal/creativity"
	"github.com/quantumflow/cognicore/internal/decision"
	"github.com/quantumflow/cognicore/internal/learning"
	"github.com/quantumflow/cognicore/internal/memory"
	"github.com/quantumflow/cognicore/internal/planning"
	"github.com/quantumflow/cognicore/internal/reasoning"
	"github.com/quantumflow/cognicore/internal/understanding"
	"github.com/quantumflow/cognicore/internal/workers"
)

// EngineConfig converts the section to the understanding engine config
func (c UnderstandingConfig) EngineConfig() *understanding.Config {
	cfg := understanding.DefaultConfig()
	cfg.MinActivation = c.MinActivation
	cfg.DistanceDecay = c.DistanceDecay
	cfg.MaxConcepts = c.MaxConcepts
	return cfg
}

// EngineConfig converts the section to the reasoning engine config
func (c ReasoningConfig) EngineConfig() *reasoning.Config {
	cfg := reasoning.DefaultConfig()
	cfg.DefaultReliability = c.DefaultReliability
	cfg.MaxCausalDepth = c.MaxCausalDepth
	cfg.MaxIterations = c.MaxIterations
	cfg.MinSupport = c.MinSupport
	cfg.SuccessThreshold = c.SuccessThreshold
	return cfg
}

// EngineConfig converts the section to the decision engine config. Missing
// ethics weights fall back to the defaults.
func (c DecisionConfig) EngineConfig() *decision.Config {
	cfg := decision.DefaultConfig()
	cfg.Simulations = c.Simulations
	cfg.Exploration = c.Exploration
	cfg.Seed = c.Seed
	cfg.EthicalFloor = c.EthicalFloor
	cfg.DefaultRiskTolerance = c.DefaultRiskTolerance
	cfg.CheckpointContinue = c.CheckpointContinue
	cfg.CheckpointAbort = c.CheckpointAbort
	for name, w := range c.EthicsWeights {
		cfg.EthicsWeights[name] = w
	}
	return cfg
}

// EngineConfig converts the section to the planning engine config
func (c PlanningConfig) EngineConfig() *planning.Config {
	cfg := planning.DefaultConfig()
	cfg.MaxDepth = c.MaxDepth
	cfg.MaxExpansions = c.MaxExpansions
	cfg.ReplanningThreshold = c.ReplanningThreshold
	cfg.MaxAdaptations = c.MaxAdaptations
	cfg.StepCost = c.StepCost
	cfg.MonitorInterval = c.MonitorInterval
	cfg.Samples = c.Samples
	cfg.Seed = c.Seed
	return cfg
}

// EngineConfig converts the section to the creativity engine config
func (c CreativityConfig) EngineConfig() *creativity.Config {
	cfg := creativity.DefaultConfig()
	cfg.Seed = c.Seed
	cfg.MaxIdeas = c.MaxIdeas
	cfg.NoveltyThreshold = c.NoveltyThreshold
	cfg.ClusterThreshold = c.ClusterThreshold
	cfg.FeasibilityFloor = c.FeasibilityFloor
	return cfg
}

// EngineConfig converts the section to the learning engine config
func (c LearningConfig) EngineConfig() *learning.Config {
	cfg := learning.DefaultConfig()
	cfg.LearningRate = c.LearningRate
	cfg.EWCLambda = c.EWCLambda
	cfg.ReplaySamples = c.ReplaySamples
	cfg.Seed = c.Seed
	cfg.ConsolidationInterval = c.ConsolidationInterval
	cfg.MergeThreshold = c.MergeThreshold
	cfg.PruneImportance = c.PruneImportance
	cfg.CurriculumWindow = c.CurriculumWindow
	cfg.CurriculumAdvance = c.CurriculumAdvance
	return cfg
}

// SystemConfig converts the section to the memory system config
func (c MemoryConfig) SystemConfig() *memory.Config {
	return &memory.Config{
		WorkingCapacity:     c.WorkingCapacity,
		MaxEpisodes:         c.MaxEpisodes,
		MaxReflections:      c.MaxReflections,
		RedisURL:            c.RedisURL,
		RedisPassword:       c.RedisPassword,
		RedisDB:             c.RedisDB,
		DgraphURL:           c.DgraphURL,
		BadgerPath:          c.BadgerPath,
		RetentionDays:       c.RetentionDays,
		EmbeddingDimensions: c.EmbeddingDimensions,
	}
}

// PoolConfig converts the section to the worker pool config
func (c WorkersConfig) PoolConfig() *workers.Config {
	return &workers.Config{
		Workers:       c.Workers,
		QueueSize:     c.QueueSize,
		MaxConcurrent: c.MaxConcurrent,
	}
}
