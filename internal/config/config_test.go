package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Second, cfg.Orchestrator.CycleInterval)
	assert.Equal(t, 1000, cfg.Decision.Simulations)
	assert.InDelta(t, 1.5, cfg.Decision.EthicsWeights["harm_avoidance"], 1e-9)
	assert.InDelta(t, 0.8, cfg.Decision.EthicsWeights["transparency"], 1e-9)
	assert.InDelta(t, 0.5, cfg.Decision.EthicalFloor, 1e-9)
	assert.Equal(t, 5, cfg.Planning.MaxDepth)
	assert.Equal(t, 7, cfg.Memory.WorkingCapacity)
	assert.Equal(t, time.Hour, cfg.Learning.ConsolidationInterval)
	assert.Equal(t, 10, cfg.Creativity.MaxIdeas)
}

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, Default().Planning, cfg.Planning)
	assert.Equal(t, Default().Orchestrator, cfg.Orchestrator)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Planning.MaxDepth = 8
	cfg.Decision.EthicsWeights["fairness"] = 2
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.SaveToPath(path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Planning.MaxDepth)
	assert.InDelta(t, 2.0, loaded.Decision.EthicsWeights["fairness"], 1e-9)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("COGNICORE_PLANNING_MAX_DEPTH", "3")
	t.Setenv("COGNICORE_LOGGING_LEVEL", "warn")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Planning.MaxDepth)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"cycle interval", func(c *Config) { c.Orchestrator.CycleInterval = 0 }},
		{"burst", func(c *Config) { c.Orchestrator.RequestsPerSecond = 5; c.Orchestrator.Burst = 0 }},
		{"ethical floor", func(c *Config) { c.Decision.EthicalFloor = 1.5 }},
		{"negative weight", func(c *Config) { c.Decision.EthicsWeights["autonomy"] = -1 }},
		{"max depth", func(c *Config) { c.Planning.MaxDepth = 0 }},
		{"novelty", func(c *Config) { c.Creativity.NoveltyThreshold = -0.1 }},
		{"learning rate", func(c *Config) { c.Learning.LearningRate = 0 }},
		{"working capacity", func(c *Config) { c.Memory.WorkingCapacity = 0 }},
		{"audit path", func(c *Config) { c.Audit.Enabled = true; c.Audit.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSectionsConvertToEngineConfigs(t *testing.T) {
	cfg := Default()
	cfg.Decision.EthicsWeights = map[string]float64{"fairness": 3}
	cfg.Planning.MaxDepth = 7
	cfg.Memory.BadgerPath = ":memory:"

	dec := cfg.Decision.EngineConfig()
	assert.InDelta(t, 3.0, dec.EthicsWeights["fairness"], 1e-9)
	assert.InDelta(t, 1.5, dec.EthicsWeights["harm_avoidance"], 1e-9)
	assert.Equal(t, 7, cfg.Planning.EngineConfig().MaxDepth)
	assert.Equal(t, ":memory:", cfg.Memory.SystemConfig().BadgerPath)
	assert.Equal(t, cfg.Workers.MaxConcurrent, cfg.Workers.PoolConfig().MaxConcurrent)
	assert.InDelta(t, 0.3, cfg.Creativity.EngineConfig().NoveltyThreshold, 1e-9)
	assert.Equal(t, time.Hour, cfg.Learning.EngineConfig().ConsolidationInterval)
	assert.Equal(t, 3, cfg.Reasoning.EngineConfig().MaxCausalDepth)
}

func TestWatchReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Default().SaveToPath(path))

	var (
		mu     sync.Mutex
		latest *Config
	)
	require.NoError(t, Watch(path, zerolog.Nop(), func(c *Config) {
		mu.Lock()
		latest = c
		mu.Unlock()
	}))

	cfg := Default()
	cfg.Planning.MaxDepth = 9
	require.NoError(t, cfg.SaveToPath(path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest != nil && latest.Planning.MaxDepth == 9
	}, 3*time.Second, 20*time.Millisecond)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cognicore", "x.db"), expandPath("~/.cognicore/x.db"))
	assert.Equal(t, "/tmp/x.db", expandPath("/tmp/x.db"))
}
