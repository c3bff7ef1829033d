package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/cognicore/internal/models"
)

func newTestSystem(t *testing.T, cfg *Config) *System {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := NewSystem(cfg, Backends{}, zerolog.Nop())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkingMemoryEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingCapacity = 3
	s := newTestSystem(t, cfg)

	for _, c := range []string{"a", "b", "c"} {
		_, evicted := s.PushWorking(c, 1, "test")
		assert.Nil(t, evicted)
	}

	_, evicted := s.PushWorking("d", 1, "test")
	require.NotNil(t, evicted)
	assert.Equal(t, "a", evicted.Content)

	items := s.Working()
	require.Len(t, items, 3)
	assert.Equal(t, "b", items[0].Content)
	assert.Equal(t, "d", items[2].Content)

	s.DecayWorking(0.5)
	assert.InDelta(t, 0.5, s.Working()[0].Attention, 1e-9)
}

func TestEpisodesEvictLeastImportant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEpisodes = 2
	s := newTestSystem(t, cfg)
	ctx := context.Background()

	low := s.AddEpisode(ctx, Episode{TaskType: models.TaskTypeReasoning, Input: "low", Importance: 0.1})
	s.AddEpisode(ctx, Episode{TaskType: models.TaskTypeReasoning, Input: "mid", Importance: 0.5})
	s.AddEpisode(ctx, Episode{TaskType: models.TaskTypePlanning, Input: "high", Importance: 0.9})

	_, ok := s.Episode(low)
	assert.False(t, ok)
	assert.Len(t, s.Episodes(EpisodeFilter{}), 2)
	assert.Len(t, s.Episodes(EpisodeFilter{TaskType: models.TaskTypePlanning}), 1)
	assert.Len(t, s.Episodes(EpisodeFilter{MinImportance: 0.6}), 1)
}

func TestUpdateEpisode(t *testing.T) {
	s := newTestSystem(t, nil)
	ctx := context.Background()

	id := s.AddEpisode(ctx, Episode{TaskType: models.TaskTypeLearning, Input: "study go"})
	require.NoError(t, s.UpdateEpisode(ctx, id, func(ep *Episode) { ep.Replays++ }))

	ep, ok := s.Episode(id)
	require.True(t, ok)
	assert.Equal(t, 1, ep.Replays)
	assert.NotEmpty(t, ep.Embedding)

	assert.Error(t, s.UpdateEpisode(ctx, "missing", func(*Episode) {}))
	assert.True(t, s.DeleteEpisode(ctx, id))
	assert.False(t, s.DeleteEpisode(ctx, id))
}

func TestConceptsAndRelations(t *testing.T) {
	s := newTestSystem(t, nil)
	ctx := context.Background()

	rain := s.UpsertConcept(ctx, "Rain", "condition", nil)
	wet := s.UpsertConcept(ctx, "wet ground", "state", map[string]string{"source": "observation"})
	slip := s.UpsertConcept(ctx, "slipping", "event", nil)

	again := s.UpsertConcept(ctx, "  rain ", "", nil)
	assert.Equal(t, rain, again)
	c, ok := s.ConceptByName("RAIN")
	require.True(t, ok)
	assert.Equal(t, 2, c.Frequency)
	assert.Greater(t, c.Confidence, 0.5)

	relID, err := s.Relate(ctx, rain, wet, "causes", 0.8)
	require.NoError(t, err)
	sameID, err := s.Relate(ctx, rain, wet, "causes", 0.4)
	require.NoError(t, err)
	assert.Equal(t, relID, sameID)

	rels := s.Neighbors(rain)
	require.Len(t, rels, 1)
	assert.InDelta(t, 0.6, rels[0].Strength, 1e-9)
	assert.Equal(t, 2, rels[0].Count)

	_, err = s.Relate(ctx, wet, slip, "causes", 0.7)
	require.NoError(t, err)
	assert.Len(t, s.Incoming(slip), 1)

	assert.Len(t, s.Traverse(rain, 1), 1)
	reach := s.Traverse(rain, 3)
	require.Len(t, reach, 2)
	assert.Equal(t, "slipping", reach[1].Name)

	_, err = s.Relate(ctx, rain, "nope", "causes", 1)
	assert.Error(t, err)
}

func TestMergeSimilarEpisodes(t *testing.T) {
	s := newTestSystem(t, nil)
	ctx := context.Background()

	first := s.AddEpisode(ctx, Episode{TaskType: models.TaskTypePlanning, Input: "plan the launch", Reward: 1, Importance: 0.4})
	s.AddEpisode(ctx, Episode{TaskType: models.TaskTypePlanning, Input: "plan the launch", Reward: 0, Importance: 0.9})
	s.AddEpisode(ctx, Episode{TaskType: models.TaskTypeDecision, Input: "plan the launch", Reward: 1})

	merged, err := s.MergeSimilarEpisodes(ctx, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	ep, ok := s.Episode(first)
	require.True(t, ok)
	assert.Equal(t, 1, ep.Merged)
	assert.InDelta(t, 0.5, ep.Reward, 1e-9)
	assert.InDelta(t, 0.9, ep.Importance, 1e-9)
	assert.Len(t, s.Episodes(EpisodeFilter{}), 2)
}

func TestPruneEpisodes(t *testing.T) {
	s := newTestSystem(t, nil)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.AddEpisode(ctx, Episode{Input: "old weak", Importance: 0.1, Consolidated: true, CreatedAt: base})
	s.AddEpisode(ctx, Episode{Input: "old unconsolidated", Importance: 0.1, CreatedAt: base})
	s.AddEpisode(ctx, Episode{Input: "old strong", Importance: 0.9, Consolidated: true, CreatedAt: base})

	pruned, err := s.PruneEpisodes(ctx, 0.2, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Len(t, s.Episodes(EpisodeFilter{}), 2)

	now := base.Add(2 * time.Hour)
	s.MarkCompacted(now)
	assert.Equal(t, now, s.GetStats().LastCompaction)
}

func TestReflectionsNewestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxReflections = 2
	s := newTestSystem(t, cfg)

	s.AddReflection(Reflection{Topic: "one"})
	s.AddReflection(Reflection{Topic: "two"})
	s.AddReflection(Reflection{Topic: "three"})

	got := s.Reflections(0)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Topic)
	assert.Equal(t, "two", got[1].Topic)
}

func TestSystemMirrorsToBadger(t *testing.T) {
	store, err := NewInMemoryProceduralStore()
	require.NoError(t, err)

	ctx := context.Background()
	s := NewSystem(DefaultConfig(), Backends{Procedural: store}, zerolog.Nop())
	defer s.Close()

	s.UpsertSkill(ctx, Skill{Name: "weekly-review", Kind: SkillKindRoutine, Steps: []string{"collect", "review"}})
	require.NoError(t, s.UpdateSkill(ctx, "weekly-review", func(sk *Skill) {
		sk.Uses++
		sk.Successes++
	}))

	stored, err := store.GetSkill(ctx, "weekly-review")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Uses)
	assert.Equal(t, []string{"collect", "review"}, stored.Steps)

	fresh := NewSystem(DefaultConfig(), Backends{Procedural: store}, zerolog.Nop())
	require.NoError(t, fresh.Load(ctx))
	sk, ok := fresh.Skill("weekly-review")
	require.True(t, ok)
	assert.Equal(t, 1.0, sk.SuccessRate())

	_, err = store.GetSkill(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, int64(0), s.GetStats().PersistErrors)
}

func TestRedisEpisodicStore(t *testing.T) {
	addr := os.Getenv("COGNICORE_REDIS_ADDR")
	if addr == "" {
		t.Skip("COGNICORE_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.RedisURL = addr
	store, err := NewRedisEpisodicStore(cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ep := &Episode{ID: "test-episode", TaskType: models.TaskTypePlanning, Input: "x", Embedding: []float32{0.5, -0.25}}
	require.NoError(t, store.Store(ctx, ep))
	defer store.Delete(ctx, ep.ID)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	var found *Episode
	for _, l := range loaded {
		if l.ID == ep.ID {
			found = l
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, ep.Embedding, found.Embedding)
}

func TestDgraphSemanticStore(t *testing.T) {
	addr := os.Getenv("COGNICORE_DGRAPH_ADDR")
	if addr == "" {
		t.Skip("COGNICORE_DGRAPH_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.DgraphURL = addr
	store, err := NewDgraphSemanticStore(cfg)
	if err != nil {
		t.Skipf("dgraph not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	a := &Concept{ID: "test-a", Name: "a", Kind: "test", UpdatedAt: time.Now()}
	b := &Concept{ID: "test-b", Name: "b", Kind: "test", UpdatedAt: time.Now()}
	require.NoError(t, store.StoreConcept(ctx, a))
	require.NoError(t, store.StoreConcept(ctx, b))
	require.NoError(t, store.StoreRelation(ctx, &Relation{ID: "test-ab", From: "test-a", To: "test-b", Type: "related", Strength: 1, Count: 1}))

	reach, err := store.Traverse(ctx, "test-a", 2)
	require.NoError(t, err)
	require.NotEmpty(t, reach)
	assert.Equal(t, "test-b", reach[0].ID)
}

func TestEmbeddingHelpers(t *testing.T) {
	emb := NewSimpleEmbedding(32)
	v1, err := emb.Generate(context.Background(), "plan the product launch")
	require.NoError(t, err)
	v2, _ := emb.Generate(context.Background(), "plan the product launch")
	v3, _ := emb.Generate(context.Background(), "paint a watercolor")

	assert.InDelta(t, 1.0, CosineSimilarity(v1, v2), 1e-6)
	assert.Less(t, CosineSimilarity(v1, v3), 0.9)
	assert.Equal(t, 0.0, CosineSimilarity(v1, nil))
	assert.Equal(t, v1, deserializeEmbedding(serializeEmbedding(v1)))
}
