package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// System is the four-tier memory arena plus the metacognitive journal.
// Records are addressed by stable ids; every write goes through the system
// lock and is mirrored to the configured backends afterwards.
type System struct {
	config   *Config
	backends Backends
	embedder EmbeddingGenerator
	log      zerolog.Logger
	clock    func() time.Time

	mu            sync.RWMutex
	working       []WorkingItem
	episodes      map[string]*Episode
	episodeOrder  []string
	concepts      map[string]*Concept
	conceptByName map[string]string
	relations     map[string]*Relation
	relationByKey map[string]string
	outgoing      map[string][]string
	incoming      map[string][]string
	skills        map[string]*Skill
	reflections   []Reflection

	lastCompaction time.Time
	persistErrors  atomic.Int64
}

// NewSystem creates an empty memory system
func NewSystem(config *Config, backends Backends, log zerolog.Logger) *System {
	if config == nil {
		config = DefaultConfig()
	}
	if config.WorkingCapacity <= 0 {
		config.WorkingCapacity = 7
	}

	return &System{
		config:        config,
		backends:      backends,
		embedder:      NewSimpleEmbedding(config.EmbeddingDimensions),
		log:           log,
		clock:         time.Now,
		episodes:      make(map[string]*Episode),
		concepts:      make(map[string]*Concept),
		conceptByName: make(map[string]string),
		relations:     make(map[string]*Relation),
		relationByKey: make(map[string]string),
		outgoing:      make(map[string][]string),
		incoming:      make(map[string][]string),
		skills:        make(map[string]*Skill),
	}
}

// SetClock overrides the time source
func (s *System) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Embed returns the embedding for text
func (s *System) Embed(ctx context.Context, text string) []float32 {
	v, err := s.embedder.Generate(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Msg("embedding failed")
		return nil
	}
	return v
}

// Load restores persisted episodes and skills from the backends
func (s *System) Load(ctx context.Context) error {
	if s.backends.Episodic != nil {
		episodes, err := s.backends.Episodic.Load(ctx)
		if err != nil {
			return fmt.Errorf("load episodes: %w", err)
		}
		s.mu.Lock()
		sort.Slice(episodes, func(i, j int) bool { return episodes[i].CreatedAt.Before(episodes[j].CreatedAt) })
		for _, ep := range episodes {
			if _, exists := s.episodes[ep.ID]; !exists {
				s.episodeOrder = append(s.episodeOrder, ep.ID)
			}
			s.episodes[ep.ID] = ep
		}
		s.mu.Unlock()
	}

	if s.backends.Procedural != nil {
		skills, err := s.backends.Procedural.LoadSkills(ctx)
		if err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
		s.mu.Lock()
		for _, sk := range skills {
			s.skills[sk.Name] = sk
		}
		s.mu.Unlock()
	}

	return nil
}

// PushWorking inserts an item into working memory, evicting the oldest
// entry once capacity is reached. It returns the evicted item, if any.
func (s *System) PushWorking(content string, attention float64, source string) (WorkingItem, *WorkingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := WorkingItem{
		ID:        uuid.New().String(),
		Content:   content,
		Attention: attention,
		Source:    source,
		AddedAt:   s.clock(),
	}

	var evicted *WorkingItem
	if len(s.working) >= s.config.WorkingCapacity {
		old := s.working[0]
		evicted = &old
		s.working = append(s.working[:0:0], s.working[1:]...)
	}
	s.working = append(s.working, item)
	return item, evicted
}

// Working returns a copy of working memory, oldest first
func (s *System) Working() []WorkingItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkingItem, len(s.working))
	copy(out, s.working)
	return out
}

// DecayWorking multiplies every attention weight by factor
func (s *System) DecayWorking(factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.working {
		s.working[i].Attention *= factor
	}
}

// AddEpisode stores an episode and returns its id
func (s *System) AddEpisode(ctx context.Context, ep Episode) string {
	if ep.Embedding == nil {
		ep.Embedding = s.Embed(ctx, ep.Input+" "+ep.Outcome)
	}

	s.mu.Lock()
	now := s.clock()
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now
	stored := cloneEpisode(ep)
	if _, exists := s.episodes[ep.ID]; !exists {
		s.episodeOrder = append(s.episodeOrder, ep.ID)
	}
	s.episodes[ep.ID] = &stored

	var evicted []string
	if s.config.MaxEpisodes > 0 && len(s.episodeOrder) > s.config.MaxEpisodes {
		evicted = s.evictLeastImportantLocked(len(s.episodeOrder) - s.config.MaxEpisodes)
	}
	mirror := cloneEpisode(stored)
	s.mu.Unlock()

	s.persistEpisode(ctx, &mirror)
	for _, id := range evicted {
		s.unpersistEpisode(ctx, id)
	}
	return ep.ID
}

// evictLeastImportantLocked drops n episodes with the lowest importance
func (s *System) evictLeastImportantLocked(n int) []string {
	ids := make([]string, len(s.episodeOrder))
	copy(ids, s.episodeOrder)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.episodes[ids[i]].Importance < s.episodes[ids[j]].Importance
	})
	evicted := ids[:n]
	for _, id := range evicted {
		s.removeEpisodeLocked(id)
	}
	return evicted
}

func (s *System) removeEpisodeLocked(id string) bool {
	if _, ok := s.episodes[id]; !ok {
		return false
	}
	delete(s.episodes, id)
	for i, eid := range s.episodeOrder {
		if eid == id {
			s.episodeOrder = append(s.episodeOrder[:i], s.episodeOrder[i+1:]...)
			break
		}
	}
	return true
}

// Episode returns a copy of one episode
func (s *System) Episode(id string) (Episode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.episodes[id]
	if !ok {
		return Episode{}, false
	}
	return cloneEpisode(*ep), true
}

// Episodes returns copies of episodes matching filter, oldest first
func (s *System) Episodes(filter EpisodeFilter) []Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Episode
	for _, id := range s.episodeOrder {
		ep := s.episodes[id]
		if filter.TaskType != "" && ep.TaskType != filter.TaskType {
			continue
		}
		if ep.Importance < filter.MinImportance {
			continue
		}
		out = append(out, cloneEpisode(*ep))
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// UpdateEpisode applies fn to a stored episode under the write lock
func (s *System) UpdateEpisode(ctx context.Context, id string, fn func(*Episode)) error {
	s.mu.Lock()
	ep, ok := s.episodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("episode not found: %s", id)
	}
	fn(ep)
	ep.UpdatedAt = s.clock()
	mirror := cloneEpisode(*ep)
	s.mu.Unlock()

	s.persistEpisode(ctx, &mirror)
	return nil
}

// DeleteEpisode removes an episode
func (s *System) DeleteEpisode(ctx context.Context, id string) bool {
	s.mu.Lock()
	removed := s.removeEpisodeLocked(id)
	s.mu.Unlock()

	if removed {
		s.unpersistEpisode(ctx, id)
	}
	return removed
}

// UpsertConcept creates or reinforces a concept by name and returns its id
func (s *System) UpsertConcept(ctx context.Context, name, kind string, attrs map[string]string) string {
	key := normalizeName(name)

	s.mu.Lock()
	now := s.clock()
	var c *Concept
	if id, ok := s.conceptByName[key]; ok {
		c = s.concepts[id]
		c.Frequency++
		c.Confidence = c.Confidence + (1-c.Confidence)*0.1
		if kind != "" {
			c.Kind = kind
		}
	} else {
		c = &Concept{
			ID:         uuid.New().String(),
			Name:       key,
			Kind:       kind,
			Attributes: make(map[string]string),
			Frequency:  1,
			Confidence: 0.5,
			CreatedAt:  now,
		}
		s.concepts[c.ID] = c
		s.conceptByName[key] = c.ID
	}
	for k, v := range attrs {
		c.Attributes[k] = v
	}
	c.UpdatedAt = now
	mirror := cloneConcept(*c)
	s.mu.Unlock()

	s.persistConcept(ctx, &mirror)
	return mirror.ID
}

// UpdateConcept applies fn to a stored concept under the write lock
func (s *System) UpdateConcept(ctx context.Context, id string, fn func(*Concept)) error {
	s.mu.Lock()
	c, ok := s.concepts[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("concept not found: %s", id)
	}
	fn(c)
	if c.Attributes == nil {
		c.Attributes = make(map[string]string)
	}
	c.UpdatedAt = s.clock()
	mirror := cloneConcept(*c)
	s.mu.Unlock()

	s.persistConcept(ctx, &mirror)
	return nil
}

// Concept returns a copy of a concept by id
func (s *System) Concept(id string) (Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.concepts[id]
	if !ok {
		return Concept{}, false
	}
	return cloneConcept(*c), true
}

// ConceptByName returns a copy of a concept by name
func (s *System) ConceptByName(name string) (Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.conceptByName[normalizeName(name)]
	if !ok {
		return Concept{}, false
	}
	return cloneConcept(*s.concepts[id]), true
}

// Concepts returns copies of every concept ordered by name
func (s *System) Concepts() []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Concept, 0, len(s.concepts))
	for _, c := range s.concepts {
		out = append(out, cloneConcept(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Relate creates or strengthens a typed edge between two concepts.
// Repeated observations move the strength toward the new value.
func (s *System) Relate(ctx context.Context, from, to, relType string, strength float64) (string, error) {
	s.mu.Lock()
	if _, ok := s.concepts[from]; !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("relate: unknown concept %s", from)
	}
	if _, ok := s.concepts[to]; !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("relate: unknown concept %s", to)
	}

	key := from + "|" + relType + "|" + to
	var rel *Relation
	if id, ok := s.relationByKey[key]; ok {
		rel = s.relations[id]
		rel.Count++
		rel.Strength += (strength - rel.Strength) / float64(rel.Count)
	} else {
		rel = &Relation{
			ID:       uuid.New().String(),
			From:     from,
			To:       to,
			Type:     relType,
			Strength: strength,
			Count:    1,
		}
		s.relations[rel.ID] = rel
		s.relationByKey[key] = rel.ID
		s.outgoing[from] = append(s.outgoing[from], rel.ID)
		s.incoming[to] = append(s.incoming[to], rel.ID)
	}
	mirror := *rel
	s.mu.Unlock()

	s.persistRelation(ctx, &mirror)
	return mirror.ID, nil
}

// Neighbors returns the outgoing relations of a concept
func (s *System) Neighbors(id string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Relation, 0, len(s.outgoing[id]))
	for _, rid := range s.outgoing[id] {
		out = append(out, *s.relations[rid])
	}
	return out
}

// Incoming returns the relations pointing at a concept
func (s *System) Incoming(id string) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Relation, 0, len(s.incoming[id]))
	for _, rid := range s.incoming[id] {
		out = append(out, *s.relations[rid])
	}
	return out
}

// Traverse returns concepts reachable from start within depth hops,
// breadth first, excluding start itself.
func (s *System) Traverse(start string, depth int) []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []Concept
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, rid := range s.outgoing[id] {
				to := s.relations[rid].To
				if visited[to] {
					continue
				}
				visited[to] = true
				next = append(next, to)
				out = append(out, cloneConcept(*s.concepts[to]))
			}
		}
		frontier = next
	}
	return out
}

// Skill returns a copy of a skill by name
func (s *System) Skill(name string) (Skill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sk, ok := s.skills[name]
	if !ok {
		return Skill{}, false
	}
	return cloneSkill(*sk), true
}

// Skills returns copies of every skill ordered by name
func (s *System) Skills() []Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Skill, 0, len(s.skills))
	for _, sk := range s.skills {
		out = append(out, cloneSkill(*sk))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UpsertSkill stores or replaces a skill
func (s *System) UpsertSkill(ctx context.Context, skill Skill) {
	s.mu.Lock()
	stored := cloneSkill(skill)
	s.skills[skill.Name] = &stored
	mirror := cloneSkill(stored)
	s.mu.Unlock()

	s.persistSkill(ctx, &mirror)
}

// UpdateSkill applies fn to a stored skill under the write lock
func (s *System) UpdateSkill(ctx context.Context, name string, fn func(*Skill)) error {
	s.mu.Lock()
	sk, ok := s.skills[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("skill not found: %s", name)
	}
	fn(sk)
	mirror := cloneSkill(*sk)
	s.mu.Unlock()

	s.persistSkill(ctx, &mirror)
	return nil
}

// AddReflection appends to the metacognitive journal
func (s *System) AddReflection(r Reflection) Reflection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock()
	}
	s.reflections = append(s.reflections, r)
	if limit := s.config.MaxReflections; limit > 0 && len(s.reflections) > limit {
		s.reflections = append(s.reflections[:0:0], s.reflections[len(s.reflections)-limit:]...)
	}
	return r
}

// Reflections returns up to limit reflections, newest first
func (s *System) Reflections(limit int) []Reflection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.reflections)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Reflection, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.reflections[i])
	}
	return out
}

// GetStats returns memory statistics
func (s *System) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		WorkingCount:    len(s.working),
		WorkingCapacity: s.config.WorkingCapacity,
		EpisodicCount:   len(s.episodes),
		SemanticCount:   len(s.concepts),
		RelationCount:   len(s.relations),
		ProceduralCount: len(s.skills),
		ReflectionCount: len(s.reflections),
		PersistErrors:   s.persistErrors.Load(),
		LastCompaction:  s.lastCompaction,
	}
}

// Close shuts down every configured backend
func (s *System) Close() error {
	var errs []error

	if s.backends.Episodic != nil {
		if err := s.backends.Episodic.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.backends.Semantic != nil {
		if err := s.backends.Semantic.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.backends.Procedural != nil {
		if err := s.backends.Procedural.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing memory system: %v", errs)
	}
	return nil
}

func (s *System) persistEpisode(ctx context.Context, ep *Episode) {
	if s.backends.Episodic == nil {
		return
	}
	if err := s.backends.Episodic.Store(ctx, ep); err != nil {
		s.persistFailed(err, "episode", ep.ID)
	}
}

func (s *System) unpersistEpisode(ctx context.Context, id string) {
	if s.backends.Episodic == nil {
		return
	}
	if err := s.backends.Episodic.Delete(ctx, id); err != nil {
		s.persistFailed(err, "episode", id)
	}
}

func (s *System) persistConcept(ctx context.Context, c *Concept) {
	if s.backends.Semantic == nil {
		return
	}
	if err := s.backends.Semantic.StoreConcept(ctx, c); err != nil {
		s.persistFailed(err, "concept", c.ID)
	}
}

func (s *System) persistRelation(ctx context.Context, r *Relation) {
	if s.backends.Semantic == nil {
		return
	}
	if err := s.backends.Semantic.StoreRelation(ctx, r); err != nil {
		s.persistFailed(err, "relation", r.ID)
	}
}

func (s *System) persistSkill(ctx context.Context, sk *Skill) {
	if s.backends.Procedural == nil {
		return
	}
	if err := s.backends.Procedural.StoreSkill(ctx, sk); err != nil {
		s.persistFailed(err, "skill", sk.Name)
	}
}

func (s *System) persistFailed(err error, kind, id string) {
	s.persistErrors.Add(1)
	s.log.Error().Err(err).Str("kind", kind).Str("id", id).Msg("memory mirror write failed")
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func cloneEpisode(ep Episode) Episode {
	out := ep
	if ep.Context != nil {
		out.Context = make(map[string]interface{}, len(ep.Context))
		for k, v := range ep.Context {
			out.Context[k] = v
		}
	}
	out.Actions = append([]string(nil), ep.Actions...)
	out.Embedding = append([]float32(nil), ep.Embedding...)
	return out
}

func cloneConcept(c Concept) Concept {
	out := c
	out.Attributes = make(map[string]string, len(c.Attributes))
	for k, v := range c.Attributes {
		out.Attributes[k] = v
	}
	return out
}

func cloneSkill(sk Skill) Skill {
	out := sk
	out.Steps = append([]string(nil), sk.Steps...)
	return out
}
